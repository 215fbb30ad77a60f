// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Command asyncloopd runs an event loop worker alongside periodic main-thread
// work, until it receives SIGINT or SIGTERM.
//
// Usage:
//
//	asyncloopd ENV_OF_CONFIG_PATH
//
// The single argument names the environment variable that holds the path of
// the TOML configuration file, see package config.
package main

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-asyncloop/internal/config"
	"github.com/joeycumines/go-asyncloop/internal/runflag"
	"github.com/joeycumines/go-asyncloop/worker"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	_ "go.uber.org/automaxprocs"
)

func main() {
	flag := runflag.New()
	os.Exit(run(os.Args[1:], os.Stderr, flag, func(logger *logiface.Logger[logiface.Event]) func() {
		return flag.Notify(logger)
	}))
}

func newLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

// run is the body of the daemon, returning the exit code. The notify
// function (optional) is called once the worker is ready, and must arrange
// for the flag to be cleared on termination.
func run(
	args []string,
	stderr io.Writer,
	flag *runflag.Flag,
	notify func(logger *logiface.Logger[logiface.Event]) (stop func()),
) int {
	if len(args) != 1 {
		_, _ = fmt.Fprintln(stderr, `Usage: asyncloopd ENV_OF_CONFIG_PATH`)
		return 2
	}

	cfg, err := config.LoadFromEnv(args[0])
	if err != nil {
		newLogger(stderr, logiface.LevelInformational).Err().
			Err(err).
			Log(`asyncloopd: read configuration failed, aborting`)
		return 1
	}

	logger := newLogger(stderr, cfg.Level())
	cfg.Log(logger)

	var jobs atomic.Uint64
	w, err := worker.New(
		worker.WithLogger(logger),
		worker.WithWakeupHandler(func() {
			logger.Trace().
				Uint64(`job`, jobs.Add(1)).
				Log(`asyncloopd: job`)
		}),
	)
	if err != nil {
		logger.Crit().
			Err(err).
			Log(`asyncloopd: worker initialization failed, aborting`)
		return 1
	}

	if err := w.Start(); err != nil {
		logger.Crit().
			Err(err).
			Log(`asyncloopd: worker start failed, aborting`)
		return 1
	}

	if cfg.ReadyTimeout > 0 {
		if err := w.WaitForReadyTimeout(cfg.ReadyTimeout); err != nil {
			logger.Crit().
				Err(err).
				Dur(`ready_timeout`, cfg.ReadyTimeout).
				Log(`asyncloopd: worker did not become ready, aborting`)
			return 1
		}
	} else {
		w.WaitForReady()
	}

	if notify != nil {
		stop := notify(logger)
		defer stop()
	}

	logger.Info().
		Stringer(`worker_id`, w.ID()).
		Log(`asyncloopd: running`)

	exitCode := 0

	ticker := time.NewTicker(cfg.HeartbeatInterval)
	defer ticker.Stop()
	var heartbeats uint64
	for flag.Running() {
		select {
		case <-flag.Done():
		case <-ticker.C:
			heartbeats++
			n := heartbeats
			// Submit also wakes the worker, which runs its job
			if err := w.Submit(func() {
				logger.Debug().
					Uint64(`heartbeat`, n).
					Log(`asyncloopd: heartbeat`)
			}); err != nil {
				logger.Err().
					Err(err).
					Log(`asyncloopd: heartbeat submit failed, shutting down`)
				exitCode = 1
				flag.Clear()
				continue
			}
		}
	}

	logger.Info().
		Uint64(`heartbeats`, heartbeats).
		Log(`asyncloopd: shutting down`)

	if err := w.StopAndJoin(); err != nil {
		logger.Err().
			Err(err).
			Log(`asyncloopd: worker exited with error`)
		exitCode = 1
	}

	logger.Info().
		Uint64(`jobs`, jobs.Load()).
		Log(`asyncloopd: stopped`)

	return exitCode
}
