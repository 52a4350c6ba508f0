// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

// Package singleton prevents two pipeline processes from running against
// the same catalog concurrently. Two writers would race on checkpoints and
// double every bulk upsert.
//
// The guard is an exclusive advisory lock on a well-known file. The
// operating system releases the lock on process termination, so no cleanup
// path is needed for crashes.
package singleton

import (
	"fmt"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another process holds the lock.
var ErrAlreadyRunning = fmt.Errorf("singleton: another instance is already running")

// Guard holds the process-wide advisory lock.
type Guard struct {
	lock *flock.Flock
}

// Acquire takes the exclusive lock at path without blocking. It returns
// ErrAlreadyRunning when the lock is held by another process; the caller
// is expected to log and exit non-zero.
func Acquire(path string) (*Guard, error) {
	lock := flock.New(path)

	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("singleton: lock %s: %w", path, err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	return &Guard{lock: lock}, nil
}

// Release drops the lock. Optional: the OS releases it at process exit
// anyway; explicit release exists for tests and orderly shutdown.
func (g *Guard) Release() error {
	return g.lock.Unlock()
}

// Path returns the lock file path.
func (g *Guard) Path() string {
	return g.lock.Path()
}
