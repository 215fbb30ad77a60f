// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package worker

import (
	"github.com/joeycumines/logiface"
)

type workerOptions struct {
	logger    *logiface.Logger[logiface.Event]
	loop      EventLoop
	onWakeup  func()
	readyHook func()
}

// Option configures a Worker instance.
type Option interface {
	applyWorker(*workerOptions) error
}

type optionImpl struct {
	applyWorkerFunc func(*workerOptions) error
}

func (o *optionImpl) applyWorker(opts *workerOptions) error {
	return o.applyWorkerFunc(opts)
}

// WithLogger configures the structured logger used by the worker, and by the
// default event loop. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *workerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithEventLoop configures the event loop run by the worker, in place of the
// default [loop.Loop]. The worker takes ownership of the loop.
func WithEventLoop(l EventLoop) Option {
	return &optionImpl{func(opts *workerOptions) error {
		opts.loop = l
		return nil
	}}
}

// WithWakeupHandler configures the job run on the worker goroutine, per
// wakeup notification. It applies only to the default event loop.
func WithWakeupHandler(fn func()) Option {
	return &optionImpl{func(opts *workerOptions) error {
		opts.onWakeup = fn
		return nil
	}}
}

// WithReadyHook configures a callback run on the worker goroutine,
// immediately prior to the ready signal being published.
func WithReadyHook(fn func()) Option {
	return &optionImpl{func(opts *workerOptions) error {
		opts.readyHook = fn
		return nil
	}}
}

func resolveOptions(opts []Option) (*workerOptions, error) {
	cfg := &workerOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyWorker(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
