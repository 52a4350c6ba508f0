// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package state

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Storage.Get when a key was never set.
var ErrNotFound = errors.New("state: key not found")

// Storage is a durable string key-value store. The pipeline uses one key
// per watched source table; the value is an opaque payload owned by the
// Coordinator (the JSON checkpoint).
//
// Set must persist atomically: once it returns, a crash-restart sees the
// value.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}
