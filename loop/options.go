// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loop

import (
	"time"

	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger        *logiface.Logger[logiface.Event]
	onWakeup      func()
	panicLogRates map[time.Duration]int
}

// --- Loop Options ---

// Option configures a Loop instance.
type Option interface {
	applyLoop(*loopOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (o *optionImpl) applyLoop(opts *loopOptions) error {
	return o.applyLoopFunc(opts)
}

// WithLogger configures the structured logger used by the loop.
// A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithWakeupHandler configures a callback, run on the loop goroutine, after
// each wakeup notification is received. Multiple Wake calls made while a
// notification is pending are coalesced into a single call.
func WithWakeupHandler(fn func()) Option {
	return &optionImpl{func(opts *loopOptions) error {
		opts.onWakeup = fn
		return nil
	}}
}

// WithPanicLogRates configures the sliding window rates (max events per
// window) at which recovered task panics are logged. Panics exceeding the
// rates are counted, and reported with the next logged panic. An empty map
// disables limiting. Defaults to DefaultPanicLogRates.
//
// Invalid rates (see catrate.NewLimiter) cause New to fail.
func WithPanicLogRates(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *loopOptions) error {
		opts.panicLogRates = rates
		return nil
	}}
}

// resolveOptions applies Option instances to loopOptions.
func resolveOptions(opts []Option) (*loopOptions, error) {
	cfg := &loopOptions{panicLogRates: DefaultPanicLogRates}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
