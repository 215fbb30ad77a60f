// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package slot

import (
	"context"
	"errors"
)

var (
	// ErrBusy is returned by the Try* methods, if the lock is contended, or
	// the slot is not in the required state. It is always safe to retry.
	ErrBusy = errors.New("slot: busy")

	// ErrTimeout is returned by the Timed* methods, and by the *Context
	// methods when the context deadline is exceeded, if the operation could
	// not complete before the deadline.
	ErrTimeout = errors.New("slot: timeout")
)

// contextError maps ctx errors to the package errors. Cancellation (as opposed
// to an elapsed deadline) is passed through as-is.
func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
