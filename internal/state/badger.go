// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package state

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStorage keeps checkpoints in an embedded Badger database. It is the
// single-node alternative to Redis (STATE_BACKEND=badger): no extra service
// to run, same checkpoint payload, synchronous writes so a crash after Set
// returns cannot lose the value.
type BadgerStorage struct {
	db *badger.DB
}

// NewBadgerStorage opens (or creates) the store at path.
func NewBadgerStorage(path string) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithSyncWrites(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store %s: %w", path, err)
	}
	return &BadgerStorage{db: db}, nil
}

// Get returns the stored value for key, or ErrNotFound.
func (s *BadgerStorage) Get(_ context.Context, key string) (string, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("badger get %q: %w", key, err)
	}
	return value, nil
}

// Set persists value under key.
func (s *BadgerStorage) Set(_ context.Context, key, value string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("badger set %q: %w", key, err)
	}
	return nil
}

// Close flushes and closes the database.
func (s *BadgerStorage) Close() error {
	return s.db.Close()
}
