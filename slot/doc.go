// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package slot implements [Slot], a single-element, goroutine-safe mailbox,
// with blocking, deadline-bounded, and non-blocking operations.
//
// A Slot is either full (holding exactly one value) or empty. [Slot.Put]
// blocks while full, [Slot.Take] blocks while empty and empties the slot, and
// [Slot.Read] blocks while empty but leaves the value in place. This allows
// the same primitive to act as a single-assignment future (put once, read
// many) or as a rendezvous channel (put, take, put, take).
//
// # Variants
//
// Each operation has three forms:
//   - Blocking: [Slot.Put], [Slot.Read], [Slot.Take]
//   - Bounded: [Slot.TimedPut], [Slot.TimedRead], [Slot.TimedTake], and the
//     context-aware equivalents ([Slot.PutContext] etc), failing with
//     [ErrTimeout] once the deadline passes
//   - Non-blocking: [Slot.TryPut], [Slot.TryRead], [Slot.TryTake], failing
//     with [ErrBusy] if the lock is contended, or the slot is in the wrong
//     state
//
// The deadline of a bounded operation is computed once, on entry, and also
// bounds acquisition of the internal lock.
//
// # Unit slots
//
// [NewUnit] returns a Slot[Unit], which carries no payload, and is intended
// for use as a one-shot readiness flag.
//
// # Fairness
//
// Exactly one blocked waiter is released per state transition. Which waiter
// is released is not guaranteed. The primitive targets single producer,
// single consumer, or single-shot use.
package slot
