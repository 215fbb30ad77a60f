// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package runflag implements the process-wide running flag, which is set at
// startup, and cleared (once) on receipt of a termination signal.
package runflag

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/joeycumines/logiface"
)

// Flag is a running flag, readable without blocking, from any goroutine.
type Flag struct {
	running atomic.Bool
	done    chan struct{}
	once    sync.Once
}

// New returns a set flag.
func New() *Flag {
	f := &Flag{done: make(chan struct{})}
	f.running.Store(true)
	return f
}

// Running reports whether the flag is still set.
func (f *Flag) Running() bool {
	return f.running.Load()
}

// Done returns a channel that is closed once the flag is cleared.
func (f *Flag) Done() <-chan struct{} {
	return f.done
}

// Clear clears the flag. It is idempotent.
func (f *Flag) Clear() {
	f.once.Do(func() {
		f.running.Store(false)
		close(f.done)
	})
}

// Notify clears f on receipt of any of the given signals, defaulting to
// SIGINT and SIGTERM. The returned function stops signal delivery, and must
// be called to release resources.
func (f *Flag) Notify(logger *logiface.Logger[logiface.Event], signals ...os.Signal) (stop func()) {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)

	exit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case sig := <-ch:
			logger.Info().
				Stringer(`signal`, sig).
				Log(`runflag: received termination signal`)
			f.Clear()
		case <-exit:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(exit)
			wg.Wait()
		})
	}
}
