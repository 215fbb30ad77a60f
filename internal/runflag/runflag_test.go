// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runflag

import (
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFlag_Clear(t *testing.T) {
	f := New()
	require.True(t, f.Running())
	select {
	case <-f.Done():
		t.Fatal("done before clear")
	default:
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Clear()
		}()
	}
	wg.Wait()

	require.False(t, f.Running())
	select {
	case <-f.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestFlag_Notify(t *testing.T) {
	f := New()
	stop := f.Notify(nil, syscall.SIGUSR1)
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("flag not cleared by signal")
	}
	require.False(t, f.Running())
}

func TestFlag_Notify_stop(t *testing.T) {
	f := New()
	stop := f.Notify(nil, syscall.SIGUSR2)
	stop()
	stop()
	require.True(t, f.Running())
}
