// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package worker

import (
	"sync/atomic"
)

// State is the lifecycle state of a [Worker].
//
// Transitions:
//
//	Initialized -> Running   (Start)
//	Initialized -> Stopped   (StopAndJoin, never started)
//	Running     -> Stopping  (StopAndJoin)
//	Stopping    -> Stopped   (loop joined)
type State uint32

const (
	// StateUninitialized is the zero value, a worker not created via New.
	StateUninitialized State = iota
	// StateInitialized indicates the event loop and ready slot are allocated.
	StateInitialized
	// StateRunning indicates the worker goroutine has been spawned.
	StateRunning
	// StateStopping indicates stop has been requested, and the worker is
	// being joined.
	StateStopping
	// StateStopped is terminal.
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateInitialized:
		return "Initialized"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

type atomicState struct {
	v atomic.Uint32
}

func (s *atomicState) load() State { return State(s.v.Load()) }

func (s *atomicState) store(state State) { s.v.Store(uint32(state)) }

func (s *atomicState) tryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
