// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

// Package retry wraps fallible I/O with exponential backoff.
//
// The pipeline prefers to wedge and log over crashing on a transient
// upstream outage, so the default executor retries forever (MaxElapsed = 0).
// Cancellation is cooperative: the executor stops between sleeps when the
// caller's context is done.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/openkino/searchsync/internal/logging"
	"github.com/openkino/searchsync/internal/metrics"
)

// Options tunes an Executor.
type Options struct {
	// InitialInterval is the first retry delay.
	InitialInterval time.Duration

	// MaxInterval caps the exponential delay growth.
	MaxInterval time.Duration

	// MaxElapsed bounds the total retry time. Zero retries forever.
	MaxElapsed time.Duration
}

// DefaultOptions returns production defaults: half-second initial delay,
// 30s cap, unbounded attempts.
func DefaultOptions() Options {
	return Options{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		MaxElapsed:      0,
	}
}

// Executor retries operations with exponential backoff. An Executor is
// immutable and safe for concurrent use; each Do call gets its own backoff
// state.
type Executor struct {
	opts Options
}

// New creates an Executor with the given options. Zero-valued fields fall
// back to DefaultOptions.
func New(opts Options) *Executor {
	def := DefaultOptions()
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = def.InitialInterval
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = def.MaxInterval
	}
	return &Executor{opts: opts}
}

// Do runs op, retrying on error until it succeeds, the context is
// canceled, or MaxElapsed is exceeded. The component label tags retry
// metrics and log lines.
//
// Wrap an error in Permanent to stop retrying immediately.
func (e *Executor) Do(ctx context.Context, component string, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.opts.InitialInterval
	bo.MaxInterval = e.opts.MaxInterval
	bo.MaxElapsedTime = e.opts.MaxElapsed
	bo.Reset()

	notify := func(err error, next time.Duration) {
		metrics.RetryAttempts.WithLabelValues(component).Inc()
		logging.Warn().
			Err(err).
			Str("component", component).
			Dur("backoff", next).
			Msg("operation failed, retrying")
	}

	return backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify)
}

// Permanent marks err as non-retryable; Do returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
