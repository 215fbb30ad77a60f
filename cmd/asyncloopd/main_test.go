// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-asyncloop/internal/runflag"
	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_usage(t *testing.T) {
	var buf syncBuffer
	require.Equal(t, 2, run(nil, &buf, runflag.New(), nil))
	require.Contains(t, buf.String(), `Usage: asyncloopd ENV_OF_CONFIG_PATH`)
}

func TestRun_configMissing(t *testing.T) {
	const env = `ASYNCLOOPD_TEST_CONFIG_MISSING`
	t.Setenv(env, ``)
	var buf syncBuffer
	require.Equal(t, 1, run([]string{env}, &buf, runflag.New(), nil))
	require.Contains(t, buf.String(), `"msg":"asyncloopd: read configuration failed, aborting"`)
}

func TestRun_untilCleared(t *testing.T) {
	const env = `ASYNCLOOPD_TEST_CONFIG`
	path := filepath.Join(t.TempDir(), `config.toml`)
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "trace"
heartbeat_interval = "5ms"
ready_timeout = "1s"

[plc]
device_ip = "127.0.0.1"
device_port = 502
`), 0o600))
	t.Setenv(env, path)

	flag := runflag.New()
	var (
		buf      syncBuffer
		notified bool
		stopped  bool
	)
	done := make(chan int, 1)
	go func() {
		done <- run([]string{env}, &buf, flag, func(*logiface.Logger[logiface.Event]) func() {
			notified = true
			time.AfterFunc(100*time.Millisecond, flag.Clear)
			return func() { stopped = true }
		})
	}()

	select {
	case code := <-done:
		require.Equal(t, 0, code, buf.String())
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after the flag was cleared")
	}
	assert.True(t, notified)
	assert.True(t, stopped)

	out := buf.String()
	for _, msg := range []string{
		`config: loaded`,
		`worker: ready`,
		`asyncloopd: running`,
		`asyncloopd: heartbeat`,
		`asyncloopd: job`,
		`worker: stopped`,
		`asyncloopd: stopped`,
	} {
		assert.True(t, strings.Contains(out, `"msg":"`+msg+`"`), "missing %q in:\n%s", msg, out)
	}
	assert.Contains(t, out, `"addr":"127.0.0.1:502"`)

	// one wakeup per heartbeat at most, plus the one that stops the worker
	heartbeats := logCount(t, out, `heartbeats`)
	assert.NotZero(t, heartbeats)
	assert.LessOrEqual(t, logCount(t, out, `jobs`), heartbeats+1)
}

func logCount(t *testing.T, out, key string) uint64 {
	t.Helper()
	m := regexp.MustCompile(`"` + regexp.QuoteMeta(key) + `":"?(\d+)`).FindStringSubmatch(out)
	require.NotNil(t, m, "missing %q in:\n%s", key, out)
	n, err := strconv.ParseUint(m[1], 10, 64)
	require.NoError(t, err)
	return n
}
