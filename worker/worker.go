// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/go-asyncloop/loop"
	"github.com/joeycumines/go-asyncloop/slot"
	"github.com/joeycumines/logiface"
)

var (
	// ErrInit is returned by New if the worker's resources could not be
	// allocated. Callers should treat it as fatal.
	ErrInit = errors.New("worker: initialization failed")

	// ErrAlreadyStarted is returned by Start if the worker was started
	// previously.
	ErrAlreadyStarted = errors.New("worker: already started")

	// ErrStopped is returned by operations on a stopped (or stopping) worker.
	ErrStopped = errors.New("worker: stopped")
)

// EventLoop models the event loop run by a Worker. All methods except Run
// must be safe to call from any goroutine.
type EventLoop interface {
	// Run blocks until Stop is observed, or ctx is done.
	Run(ctx context.Context) error
	// Stop requests termination, without waking a parked loop.
	Stop()
	// Wake interrupts a parked loop, coalescing with any pending wakeup.
	Wake() error
	// Submit enqueues fn to be run on the loop goroutine.
	Submit(fn func()) error
}

var _ EventLoop = (*loop.Loop)(nil)

// Worker owns an event loop, run on a dedicated goroutine, and the handshake
// used to coordinate its startup and shutdown with the owner.
type Worker struct {
	// Prevent copying
	_ [0]func()

	logger    *logiface.Logger[logiface.Event]
	loop      EventLoop
	readyHook func()

	// filled once, by the worker goroutine, prior to running the loop
	ready *slot.Slot[slot.Unit]
	// holds the result of EventLoop.Run, taken by StopAndJoin
	result *slot.Slot[error]

	state atomicState
	id    uuid.UUID
}

// New allocates a worker, including its event loop. Failure to allocate the
// loop is returned, wrapping ErrInit.
func New(opts ...Option) (*Worker, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}

	w := &Worker{
		readyHook: cfg.readyHook,
		ready:     slot.NewUnit(),
		result:    slot.New[error](),
		id:        uuid.New(),
	}
	w.logger = cfg.logger.Clone().
		Str(`worker_id`, w.id.String()).
		Logger()

	w.loop = cfg.loop
	if w.loop == nil {
		onWakeup := cfg.onWakeup
		if onWakeup == nil {
			onWakeup = w.defaultJob
		}
		l, err := loop.New(
			loop.WithLogger(w.logger),
			loop.WithWakeupHandler(onWakeup),
		)
		if err != nil {
			w.logger.Err().
				Err(err).
				Log(`worker: failed to allocate event loop`)
			return nil, fmt.Errorf("%w: %w", ErrInit, err)
		}
		w.loop = l
	}

	w.state.store(StateInitialized)

	w.logger.Debug().
		Log(`worker: initialized`)

	return w, nil
}

// ID returns the unique identifier of the worker, used for log correlation.
func (w *Worker) ID() uuid.UUID {
	return w.id
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	return w.state.load()
}

// Start spawns the worker goroutine. It returns immediately, use
// WaitForReady to wait for the worker to begin running its loop.
func (w *Worker) Start() error {
	if !w.state.tryTransition(StateInitialized, StateRunning) {
		switch w.state.load() {
		case StateUninitialized:
			panic(`worker: uninitialized worker, use worker.New`)
		case StateRunning:
			return ErrAlreadyStarted
		default:
			return ErrStopped
		}
	}
	go w.run()
	return nil
}

// run is the body of the worker goroutine.
func (w *Worker) run() {
	if w.readyHook != nil {
		w.readyHook()
	}

	w.ready.Put(slot.Unit{})

	w.logger.Info().
		Log(`worker: ready`)

	err := w.loop.Run(context.Background())

	w.logger.Debug().
		Err(err).
		Log(`worker: loop exited`)

	w.result.Put(err)
}

// defaultJob is the wakeup handler used in the absence of WithWakeupHandler.
func (w *Worker) defaultJob() {
	w.logger.Trace().
		Log(`worker: job not implemented`)
}

// WaitForReady blocks until the worker goroutine has started. It must be
// called (and have returned) before the owner requests any wakeup. Safe to
// call from multiple goroutines, and after the worker has stopped.
func (w *Worker) WaitForReady() {
	w.ready.Read()
}

// WaitForReadyTimeout is WaitForReady, bounded by timeout. Returns an error
// wrapping slot.ErrTimeout if the worker did not become ready in time.
func (w *Worker) WaitForReadyTimeout(timeout time.Duration) error {
	if _, err := w.ready.TimedRead(timeout); err != nil {
		return fmt.Errorf("worker: wait for ready: %w", err)
	}
	return nil
}

// Ready reports whether the worker has signalled readiness, without blocking.
func (w *Worker) Ready() bool {
	return w.ready.Full()
}

// Wake sends a wakeup notification to the worker's loop, which runs the
// configured job. Safe to call from any goroutine.
func (w *Worker) Wake() error {
	return w.loop.Wake()
}

// Submit enqueues fn to be run on the worker goroutine.
func (w *Worker) Submit(fn func()) error {
	return w.loop.Submit(fn)
}

// StopAndJoin requests that the worker stop, wakes it, then blocks until the
// worker goroutine has exited, returning the result of its loop. The wait is
// unbounded.
//
// It waits for readiness first, so a stop requested immediately after Start
// cannot be lost. A worker that was never started releases its loop, if the
// loop implements io.Closer, and returns nil.
func (w *Worker) StopAndJoin() error {
	if w.state.tryTransition(StateInitialized, StateStopped) {
		w.logger.Debug().
			Log(`worker: stopped without being started`)
		if c, ok := w.loop.(io.Closer); ok {
			if err := c.Close(); err != nil && !errors.Is(err, loop.ErrLoopTerminated) {
				return err
			}
		}
		return nil
	}

	if !w.state.tryTransition(StateRunning, StateStopping) {
		if w.state.load() == StateUninitialized {
			panic(`worker: uninitialized worker, use worker.New`)
		}
		return ErrStopped
	}

	w.WaitForReady()

	w.logger.Debug().
		Log(`worker: stopping`)

	w.loop.Stop()
	if err := w.loop.Wake(); err != nil && !errors.Is(err, loop.ErrLoopTerminated) {
		// the loop may have already exited, the join below still completes
		w.logger.Warning().
			Err(err).
			Log(`worker: failed to wake loop for stop`)
	}

	err := w.result.Take()

	w.state.store(StateStopped)

	w.logger.Info().
		Err(err).
		Log(`worker: stopped`)

	return err
}
