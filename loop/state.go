// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loop

import (
	"sync/atomic"
)

// State represents the current state of a Loop.
//
// State Machine:
//
//	StateAwake → StateRunning              [Run()]
//	StateAwake → StateTerminating          [Stop() before Run()]
//	StateRunning → StateSleeping           [poll() via CAS]
//	StateSleeping → StateRunning           [poll() wake via CAS]
//	StateRunning|StateSleeping → StateTerminating [Stop()]
//	StateTerminating → StateTerminated     [shutdown complete]
//	StateAwake → StateTerminated           [Close() before Run()]
//	StateTerminated → (terminal)
//
// Use tryTransition (CAS) for the temporary states (Running, Sleeping), and
// store only for the terminal state.
type State uint32

const (
	// StateAwake indicates the loop has been created but not started.
	StateAwake State = iota
	// StateRunning indicates the loop is actively processing tasks.
	StateRunning
	// StateSleeping indicates the loop is blocked in poll, waiting for a wakeup.
	StateSleeping
	// StateTerminating indicates a stop has been requested, but not completed.
	StateTerminating
	// StateTerminated indicates the loop has stopped, and released its resources.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine.
type fastState struct {
	v atomic.Uint32
}

func (s *fastState) load() State {
	return State(s.v.Load())
}

func (s *fastState) store(state State) {
	s.v.Store(uint32(state))
}

func (s *fastState) tryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// transitionAny attempts each of validFrom in turn, returning the state that
// was replaced, if any.
func (s *fastState) transitionAny(validFrom []State, to State) (State, bool) {
	for _, from := range validFrom {
		if s.v.CompareAndSwap(uint32(from), uint32(to)) {
			return from, true
		}
	}
	return 0, false
}
