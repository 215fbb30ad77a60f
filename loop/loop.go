// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loop

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Standard errors.
var (
	// ErrLoopAlreadyRunning is returned when Run() is called on a loop that is already running.
	ErrLoopAlreadyRunning = errors.New("loop: loop is already running")

	// ErrLoopTerminated is returned when operations are attempted on a terminated loop.
	ErrLoopTerminated = errors.New("loop: loop has been terminated")

	errWakeFdInvalid = errors.New("loop: wake fd invalid")
)

// Loop is a minimal event loop, consisting of a task queue, and a wakeup
// notification mechanism that may be signalled from any goroutine.
//
// Run blocks the calling goroutine (locked to its OS thread) until Stop is
// observed. Stop only requests termination, a parked loop observes the request
// once woken, see Wake.
type Loop struct {
	// Prevent copying
	_ [0]func()

	logger   *logiface.Logger[logiface.Event]
	onWakeup func()

	// limits logging of recovered panics, nil if unlimited
	panicLimiter     *catrate.Limiter
	panicsSuppressed atomic.Uint64

	state fastState

	// Task queue, guarded by tasksMu. Termination is decided under the same
	// lock, so no task may be accepted after the final drain.
	tasksMu sync.Mutex
	tasks   []func()
	taskBuf []func()

	// Wake-up mechanism. The fds are guarded by fdMu, to prevent a write to a
	// closed (and possibly reused) fd.
	fdMu        sync.RWMutex
	fdClosed    bool
	wakeFd      int
	wakeWriteFd int
	wakeBuf     [8]byte
	wakePending atomic.Uint32

	wakeups atomic.Uint64

	// called between draining the wakeup fd and clearing the pending flag
	testHookWakeDrained func()

	id uint64
}

var loopIDCounter atomic.Uint64

// New creates a new loop, allocating its wakeup file descriptor(s).
func New(opts ...Option) (*Loop, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	var panicLimiter *catrate.Limiter
	if len(cfg.panicLogRates) != 0 {
		if panicLimiter, err = newLimiter(cfg.panicLogRates); err != nil {
			return nil, err
		}
	}

	wakeFd, wakeWriteFd, err := createWakeFd()
	if err != nil {
		return nil, err
	}

	l := &Loop{
		id:           loopIDCounter.Add(1),
		logger:       cfg.logger,
		onWakeup:     cfg.onWakeup,
		panicLimiter: panicLimiter,
		wakeFd:       wakeFd,
		wakeWriteFd:  wakeWriteFd,
	}

	l.logger.Trace().
		Uint64(`loop_id`, l.id).
		Int(`wake_fd`, wakeFd).
		Log(`loop: created`)

	return l, nil
}

// ID returns the process-unique identifier of the loop.
func (l *Loop) ID() uint64 {
	return l.id
}

// State returns the current loop state.
func (l *Loop) State() State {
	return l.state.load()
}

// Wakeups returns the number of wakeup notifications the loop has processed.
// Coalesced Wake calls count once.
func (l *Loop) Wakeups() uint64 {
	return l.wakeups.Load()
}

// Run runs the event loop on the calling goroutine, and blocks until it is
// stopped, or ctx is done.
//
// A loop that was stopped prior to Run will shut down immediately, returning
// nil. A terminated loop cannot be restarted.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.tryTransition(StateAwake, StateRunning) {
		switch l.state.load() {
		case StateTerminating:
			l.shutdown()
			return nil
		case StateTerminated:
			return ErrLoopTerminated
		default:
			return ErrLoopAlreadyRunning
		}
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	// wake the loop on cancellation
	ctxDone := make(chan struct{})
	defer close(ctxDone)
	go func() {
		select {
		case <-ctx.Done():
			l.Stop()
			_ = l.Wake()
		case <-ctxDone:
		}
	}()

	l.logger.Debug().
		Uint64(`loop_id`, l.id).
		Log(`loop: running`)

	err := l.run()

	l.shutdown()

	if err == nil {
		err = ctx.Err()
	}

	l.logger.Debug().
		Uint64(`loop_id`, l.id).
		Err(err).
		Log(`loop: finished`)

	return err
}

// Stop requests that the loop terminate. It does not wake a parked loop, call
// Wake after Stop to guarantee prompt termination. Safe to call from any
// goroutine, and idempotent.
func (l *Loop) Stop() {
	if from, ok := l.state.transitionAny(
		[]State{StateRunning, StateSleeping, StateAwake},
		StateTerminating,
	); ok {
		l.logger.Trace().
			Uint64(`loop_id`, l.id).
			Stringer(`from`, from).
			Log(`loop: stop requested`)
	}
}

// Wake sends a wakeup notification to the loop, interrupting a parked Run.
// Safe to call from any goroutine. While a notification is pending, further
// calls are coalesced, the loop will observe at least one wakeup after the
// most recent call.
//
// Returns ErrLoopTerminated if the loop has terminated.
func (l *Loop) Wake() error {
	if l.state.load() == StateTerminated {
		return ErrLoopTerminated
	}

	if !l.wakePending.CompareAndSwap(0, 1) {
		return nil
	}

	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)

	l.fdMu.RLock()
	defer l.fdMu.RUnlock()

	if l.fdClosed {
		return ErrLoopTerminated
	}

	if _, err := writeFD(l.wakeWriteFd, buf[:]); err != nil {
		// allow future calls to retry
		l.wakePending.Store(0)
		return err
	}

	return nil
}

// Submit enqueues fn to be run on the loop goroutine, and wakes the loop.
//
// Tasks submitted prior to termination are guaranteed to run, either by the
// running loop, or during shutdown. If the task was queued, but the wakeup
// could not be sent, the error from Wake is returned (wrapped), and the task
// will run on the next wakeup, or during shutdown.
func (l *Loop) Submit(fn func()) error {
	if fn == nil {
		return nil
	}

	l.tasksMu.Lock()
	if l.state.load() == StateTerminated {
		l.tasksMu.Unlock()
		return ErrLoopTerminated
	}
	l.tasks = append(l.tasks, fn)
	l.tasksMu.Unlock()

	if err := l.Wake(); err != nil && !errors.Is(err, ErrLoopTerminated) {
		l.logger.Warning().
			Uint64(`loop_id`, l.id).
			Err(err).
			Log(`loop: submit failed to wake loop`)
		return fmt.Errorf("loop: submit: task queued, but wake failed: %w", err)
	}

	return nil
}

// Close releases the resources of a loop that was never run. For a running
// loop, it is equivalent to Stop followed by Wake.
func (l *Loop) Close() error {
	if l.state.tryTransition(StateAwake, StateTerminated) {
		l.closeFDs()
		return nil
	}
	if l.state.load() == StateTerminated {
		return ErrLoopTerminated
	}
	l.Stop()
	if err := l.Wake(); err != nil && !errors.Is(err, ErrLoopTerminated) {
		return err
	}
	return nil
}

// run is the main loop, it returns on stop, or if polling fails.
func (l *Loop) run() error {
	for {
		if l.state.load() == StateTerminating {
			return nil
		}

		l.runTasks()

		if err := l.poll(); err != nil {
			l.logger.Crit().
				Uint64(`loop_id`, l.id).
				Err(err).
				Log(`loop: poll failed, terminating`)
			l.Stop()
			return err
		}
	}
}

// poll parks until the wakeup fd becomes readable, then dispatches it.
func (l *Loop) poll() error {
	if !l.state.tryTransition(StateRunning, StateSleeping) {
		return nil
	}

	// tasks may have arrived since they were drained, without a wakeup
	// having been required, as the loop was still running
	l.tasksMu.Lock()
	pending := len(l.tasks) != 0
	l.tasksMu.Unlock()

	var (
		ready bool
		err   error
	)
	if !pending && l.state.load() != StateTerminating {
		ready, err = pollReadable(l.wakeFd, -1)
	}

	l.state.tryTransition(StateSleeping, StateRunning)

	if err != nil {
		return err
	}
	if ready {
		l.drainWakeUp()
	}
	return nil
}

// drainWakeUp consumes pending notifications, then runs the wakeup handler.
func (l *Loop) drainWakeUp() {
	l.consumeWakeUp()

	n := l.wakeups.Add(1)

	if l.onWakeup == nil {
		l.logger.Trace().
			Uint64(`loop_id`, l.id).
			Uint64(`wakeups`, n).
			Log(`loop: wakeup received, no handler configured`)
		return
	}

	l.safeExecute(l.onWakeup)
}

// consumeWakeUp drains the wakeup fd, then clears the pending flag. A Wake
// between the two is coalesced into this wakeup. The flag must never be left
// set while the fd is empty, or all later Wake calls are lost.
func (l *Loop) consumeWakeUp() {
	for {
		if _, err := readFD(l.wakeFd, l.wakeBuf[:]); err != nil {
			break
		}
	}
	if l.testHookWakeDrained != nil {
		l.testHookWakeDrained()
	}
	l.wakePending.Store(0)
}

// runTasks runs all queued tasks, swapping buffers to avoid allocation.
func (l *Loop) runTasks() {
	l.tasksMu.Lock()
	if len(l.tasks) == 0 {
		l.tasksMu.Unlock()
		return
	}
	tasks := l.tasks
	l.tasks = l.taskBuf[:0]
	l.taskBuf = tasks[:0]
	l.tasksMu.Unlock()

	for i, fn := range tasks {
		l.safeExecute(fn)
		tasks[i] = nil
	}
}

// shutdown marks the loop terminated, runs any remaining tasks, then releases
// the wakeup fd(s).
func (l *Loop) shutdown() {
	l.tasksMu.Lock()
	l.state.store(StateTerminated)
	tasks := l.tasks
	l.tasks = nil
	l.tasksMu.Unlock()

	for _, fn := range tasks {
		l.safeExecute(fn)
	}

	l.closeFDs()
}

// safeExecute executes a function with panic recovery.
func (l *Loop) safeExecute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logPanic(r)
		}
	}()
	fn()
}

func (l *Loop) logPanic(r any) {
	if l.panicLimiter != nil {
		if _, ok := l.panicLimiter.Allow(panicLogCategory{}); !ok {
			l.panicsSuppressed.Add(1)
			return
		}
	}
	b := l.logger.Err().
		Uint64(`loop_id`, l.id).
		Any(`panic`, r)
	if n := l.panicsSuppressed.Swap(0); n != 0 {
		b = b.Uint64(`suppressed`, n)
	}
	b.Log(`loop: task panicked`)
}

type panicLogCategory struct{}

// newLimiter is catrate.NewLimiter, returning invalid rates as an error.
func newLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loop: invalid panic log rates: %v", r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

// DefaultPanicLogRates are the rates at which recovered task panics are
// logged, see WithPanicLogRates.
var DefaultPanicLogRates = map[time.Duration]int{
	time.Second: 10,
	time.Minute: 100,
}

// closeFDs closes file descriptors, it is idempotent.
func (l *Loop) closeFDs() {
	l.fdMu.Lock()
	defer l.fdMu.Unlock()
	if l.fdClosed {
		return
	}
	l.fdClosed = true
	_ = closeFD(l.wakeFd)
	if l.wakeWriteFd != l.wakeFd {
		_ = closeFD(l.wakeWriteFd)
	}
}
