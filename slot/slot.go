// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package slot

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

type (
	// Slot is a single-element mailbox, holding at most one value of type T.
	//
	// The zero value is not usable, use New or NewUnit.
	Slot[T any] struct {
		// Prevent copying
		_ [0]func()

		// sem is the lock, modeled as a weighted semaphore of size 1, so
		// acquisition may be bounded by a context
		sem *semaphore.Weighted

		notFull  waitQueue
		notEmpty waitQueue

		value T
		full  bool
	}

	// Unit is the payload type of a slot used purely as a flag.
	Unit = struct{}
)

// New initializes a new, empty Slot.
func New[T any]() *Slot[T] {
	return &Slot[T]{sem: semaphore.NewWeighted(1)}
}

// NewUnit initializes a new, empty Slot carrying no payload.
func NewUnit() *Slot[Unit] {
	return New[Unit]()
}

// Full returns true if a value is currently resident. The result is a
// snapshot, and may be stale by the time it is observed.
func (s *Slot[T]) Full() bool {
	s.lock()
	defer s.unlock()
	return s.full
}

// Put blocks until the slot is empty, then stores v.
func (s *Slot[T]) Put(v T) {
	_ = s.PutContext(context.Background(), v)
}

// Read blocks until the slot is full, then returns the value, without
// emptying the slot.
func (s *Slot[T]) Read() T {
	v, _ := s.ReadContext(context.Background())
	return v
}

// Take blocks until the slot is full, then returns the value, emptying the
// slot.
func (s *Slot[T]) Take() T {
	v, _ := s.TakeContext(context.Background())
	return v
}

// TimedPut is Put, bounded by a deadline of now plus timeout.
// Returns ErrTimeout if the value could not be stored in time.
func (s *Slot[T]) TimedPut(timeout time.Duration, v T) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.PutContext(ctx, v)
}

// TimedRead is Read, bounded by a deadline of now plus timeout.
// Returns ErrTimeout if no value became available in time.
func (s *Slot[T]) TimedRead(timeout time.Duration) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.ReadContext(ctx)
}

// TimedTake is Take, bounded by a deadline of now plus timeout.
// Returns ErrTimeout if no value became available in time.
func (s *Slot[T]) TimedTake(timeout time.Duration) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.TakeContext(ctx)
}

// PutContext is Put, bounded by ctx. If the deadline of ctx is exceeded,
// ErrTimeout will be returned, otherwise ctx.Err() will be returned, if ctx
// is canceled prior to completion.
func (s *Slot[T]) PutContext(ctx context.Context, v T) error {
	if err := s.lockContext(ctx); err != nil {
		return contextError(err)
	}
	defer s.unlock()
	if err := s.await(ctx, &s.notFull, s.isEmpty); err != nil {
		return contextError(err)
	}
	s.store(v)
	return nil
}

// ReadContext is Read, bounded by ctx, see also PutContext.
func (s *Slot[T]) ReadContext(ctx context.Context) (v T, err error) {
	if err = s.lockContext(ctx); err != nil {
		return v, contextError(err)
	}
	defer s.unlock()
	if err = s.await(ctx, &s.notEmpty, s.isFull); err != nil {
		return v, contextError(err)
	}
	// still full, so pass the wakeup on, to the next reader or taker
	s.notEmpty.signal()
	return s.value, nil
}

// TakeContext is Take, bounded by ctx, see also PutContext.
func (s *Slot[T]) TakeContext(ctx context.Context) (v T, err error) {
	if err = s.lockContext(ctx); err != nil {
		return v, contextError(err)
	}
	defer s.unlock()
	if err = s.await(ctx, &s.notEmpty, s.isFull); err != nil {
		return v, contextError(err)
	}
	return s.load(), nil
}

// TryPut stores v if the slot is empty, and the lock is immediately
// available, otherwise it returns ErrBusy.
func (s *Slot[T]) TryPut(v T) error {
	if !s.tryLock() {
		return ErrBusy
	}
	defer s.unlock()
	if s.full {
		return ErrBusy
	}
	s.store(v)
	return nil
}

// TryRead returns the value if the slot is full, and the lock is immediately
// available, otherwise it returns ErrBusy. The slot is not emptied.
func (s *Slot[T]) TryRead() (v T, err error) {
	if !s.tryLock() {
		return v, ErrBusy
	}
	defer s.unlock()
	if !s.full {
		return v, ErrBusy
	}
	return s.value, nil
}

// TryTake returns the value if the slot is full, and the lock is immediately
// available, otherwise it returns ErrBusy. The slot is emptied.
func (s *Slot[T]) TryTake() (v T, err error) {
	if !s.tryLock() {
		return v, ErrBusy
	}
	defer s.unlock()
	if !s.full {
		return v, ErrBusy
	}
	return s.load(), nil
}

// store installs v, and releases one waiter blocked on not-empty.
// The lock must be held, and the slot must be empty.
func (s *Slot[T]) store(v T) {
	if s.full {
		panic(`slot: store while full`)
	}
	s.value = v
	s.full = true
	s.notEmpty.signal()
}

// load removes the value, and releases one waiter blocked on not-full.
// The lock must be held, and the slot must be full.
func (s *Slot[T]) load() T {
	if !s.full {
		panic(`slot: load while empty`)
	}
	v := s.value
	var zero T
	s.value = zero
	s.full = false
	s.notFull.signal()
	return v
}

func (s *Slot[T]) isFull() bool { return s.full }

func (s *Slot[T]) isEmpty() bool { return !s.full }

// await parks on q until ready returns true, or ctx is done. The lock must be
// held on entry, and is held on return, regardless of the outcome.
//
// After ctx is done, the lock is re-acquired, and ready is checked exactly
// once more, before the error is reported.
func (s *Slot[T]) await(ctx context.Context, q *waitQueue, ready func() bool) error {
	for !ready() {
		if err := ctx.Err(); err != nil {
			return err
		}

		ch := q.enqueue()
		s.unlock()

		select {
		case <-ch:
			s.lock()

		case <-ctx.Done():
			s.lock()
			// a concurrent signal may have already dequeued us, which is
			// fine, as it's only sent on a transition that makes us ready,
			// and either we observe that, or someone else consumed it
			q.remove(ch)
			if ready() {
				return nil
			}
			return ctx.Err()
		}
	}
	return nil
}

func (s *Slot[T]) lock() {
	s.mustInit()
	_ = s.sem.Acquire(context.Background(), 1)
}

// lockContext attempts to acquire the lock, bounded by ctx. An immediately
// available lock is always acquired, even if ctx is already done.
func (s *Slot[T]) lockContext(ctx context.Context) error {
	s.mustInit()
	if s.sem.TryAcquire(1) {
		return nil
	}
	return s.sem.Acquire(ctx, 1)
}

func (s *Slot[T]) tryLock() bool {
	s.mustInit()
	return s.sem.TryAcquire(1)
}

func (s *Slot[T]) unlock() {
	s.sem.Release(1)
}

func (s *Slot[T]) mustInit() {
	if s == nil || s.sem == nil {
		panic(`slot: uninitialized slot, use slot.New`)
	}
}
