// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package loop provides a minimal event loop, with a cross-goroutine wakeup
// notification, intended to be driven by a dedicated goroutine.
//
// # Architecture
//
// A [Loop] alternates between running submitted tasks, and parking on a wakeup
// file descriptor (eventfd on Linux, a self-pipe on Darwin). [Loop.Wake] writes
// to that descriptor, and may be called from any goroutine. Calls made while a
// notification is already pending are coalesced: the loop is guaranteed to
// observe at least one wakeup after the most recent call, but not one per
// call. Each observed wakeup runs the handler configured via
// [WithWakeupHandler].
//
// Termination is two-phase. [Loop.Stop] only records the request, a parked
// loop observes it once woken:
//
//	l.Stop()
//	_ = l.Wake()
//
// # Usage
//
//	l, err := loop.New(loop.WithWakeupHandler(func() {
//	    // runs on the loop goroutine
//	}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	done := make(chan error, 1)
//	go func() { done <- l.Run(context.Background()) }()
//
//	_ = l.Submit(func() { fmt.Println("hello from the loop") })
//
//	l.Stop()
//	_ = l.Wake()
//	if err := <-done; err != nil {
//	    log.Fatal(err)
//	}
//
// # Platform Support
//
// Linux and Darwin.
package loop
