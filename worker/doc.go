// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package worker runs an event loop on a dedicated goroutine, with a
// startup/shutdown handshake built on [slot.Slot].
//
// The owner creates a [Worker], starts it, then waits for it to signal
// readiness, prior to requesting any wakeup:
//
//	w, err := worker.New(worker.WithLogger(logger))
//	if err != nil {
//	    return err // initialization failure is fatal
//	}
//	if err := w.Start(); err != nil {
//	    return err
//	}
//	w.WaitForReady()
//
//	_ = w.Submit(func() { /* runs on the worker */ })
//
//	if err := w.StopAndJoin(); err != nil {
//	    return err
//	}
//
// The ready signal is a unit slot that is filled exactly once, and read
// (never taken) by waiters, so any number of goroutines may wait on it.
package worker
