// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package slot

// waitQueue is a condition variable, supporting bounded waits. It must only
// be accessed while holding the lock of the owning Slot.
type waitQueue struct {
	waiters []chan struct{}
}

// enqueue registers a new waiter. The returned channel receives at most one
// value, sent by signal.
func (q *waitQueue) enqueue() chan struct{} {
	ch := make(chan struct{}, 1)
	q.waiters = append(q.waiters, ch)
	return ch
}

// signal releases (at most) one waiter.
func (q *waitQueue) signal() {
	if len(q.waiters) == 0 {
		return
	}
	ch := q.waiters[0]
	q.waiters[0] = nil
	q.waiters = q.waiters[1:]
	ch <- struct{}{}
}

// remove deregisters ch, returning false if it was already signalled.
func (q *waitQueue) remove(ch chan struct{}) bool {
	for i, w := range q.waiters {
		if w == ch {
			copy(q.waiters[i:], q.waiters[i+1:])
			q.waiters[len(q.waiters)-1] = nil
			q.waiters = q.waiters[:len(q.waiters)-1]
			return true
		}
	}
	return false
}

// len returns the number of parked waiters.
func (q *waitQueue) len() int {
	return len(q.waiters)
}
