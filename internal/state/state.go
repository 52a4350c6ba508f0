// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openkino/searchsync/internal/logging"
	"github.com/openkino/searchsync/internal/metrics"
	"github.com/openkino/searchsync/internal/retry"
)

// State is the Coordinator's view of checkpoint storage. It owns the
// checkpoint payload format and retries storage operations under backoff,
// so transient backend loss never surfaces to the cycle as anything but
// latency.
type State struct {
	storage Storage
	exec    *retry.Executor
}

// New wraps a Storage backend with checkpoint semantics.
func New(storage Storage, exec *retry.Executor) *State {
	return &State{storage: storage, exec: exec}
}

// Checkpoint loads the persisted checkpoint for table. On cold start (no
// value stored) it seeds {epoch, 0}. A corrupt payload is also re-seeded
// rather than wedging the drain; the overwrite is logged.
func (s *State) Checkpoint(ctx context.Context, table string, epoch time.Time) (Checkpoint, error) {
	var payload string
	err := s.exec.Do(ctx, "state", func() error {
		var getErr error
		payload, getErr = s.storage.Get(ctx, table)
		if errors.Is(getErr, ErrNotFound) {
			return retry.Permanent(getErr)
		}
		return getErr
	})
	if errors.Is(err, ErrNotFound) {
		return NewCheckpoint(epoch, 0), nil
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("load checkpoint for %s: %w", table, err)
	}

	cp, err := DecodeCheckpoint(payload)
	if err != nil {
		logging.Error().
			Err(err).
			Str("table", table).
			Msg("corrupt checkpoint payload, reseeding from epoch")
		return NewCheckpoint(epoch, 0), nil
	}
	return cp, nil
}

// SetCheckpoint persists the checkpoint for table.
func (s *State) SetCheckpoint(ctx context.Context, table string, cp Checkpoint) error {
	payload, err := cp.Encode()
	if err != nil {
		return err
	}

	err = s.exec.Do(ctx, "state", func() error {
		return s.storage.Set(ctx, table, payload)
	})
	if err != nil {
		return fmt.Errorf("persist checkpoint for %s: %w", table, err)
	}

	if date, timeErr := cp.Time(); timeErr == nil {
		metrics.ObserveCheckpoint(table, date, cp.Offset)
	}
	return nil
}

// Close releases the underlying storage backend.
func (s *State) Close() error {
	return s.storage.Close()
}
