// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openkino/searchsync/internal/retry"
)

// memStorage is an in-memory Storage for tests. failures injects transient
// errors before operations start succeeding.
type memStorage struct {
	mu       sync.Mutex
	values   map[string]string
	failures int
}

func newMemStorage() *memStorage {
	return &memStorage{values: make(map[string]string)}
}

func (m *memStorage) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return "", errors.New("transient storage failure")
	}
	val, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

func (m *memStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("transient storage failure")
	}
	m.values[key] = value
	return nil
}

func (m *memStorage) Close() error { return nil }

func testState(storage Storage) *State {
	exec := retry.New(retry.Options{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})
	return New(storage, exec)
}

func TestCheckpointRoundTrip(t *testing.T) {
	date := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	cp := NewCheckpoint(date, 300)

	payload, err := cp.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if payload != `{"date":"2024-01-02 03:04:05","offset":300}` {
		t.Errorf("Encode() = %s", payload)
	}

	decoded, err := DecodeCheckpoint(payload)
	if err != nil {
		t.Fatalf("DecodeCheckpoint() error: %v", err)
	}
	if decoded != cp {
		t.Errorf("round trip mismatch: %+v != %+v", decoded, cp)
	}

	parsed, err := decoded.Time()
	if err != nil {
		t.Fatalf("Time() error: %v", err)
	}
	if !parsed.Equal(date) {
		t.Errorf("Time() = %v, want %v", parsed, date)
	}
}

func TestDecodeCheckpointRejectsGarbage(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "offset=3"},
		{"bad date", `{"date":"01/02/2024","offset":0}`},
		{"negative offset", `{"date":"2024-01-02 03:04:05","offset":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeCheckpoint(tt.payload); err == nil {
				t.Errorf("DecodeCheckpoint(%q) should fail", tt.payload)
			}
		})
	}
}

func TestCheckpointColdStartSeedsEpoch(t *testing.T) {
	st := testState(newMemStorage())
	epoch := time.Date(2021, 6, 13, 0, 0, 0, 0, time.UTC)

	cp, err := st.Checkpoint(context.Background(), "film_work", epoch)
	if err != nil {
		t.Fatalf("Checkpoint() error: %v", err)
	}
	if cp.Date != "2021-06-13 00:00:00" {
		t.Errorf("cold start date = %q, want epoch", cp.Date)
	}
	if cp.Offset != 0 {
		t.Errorf("cold start offset = %d, want 0", cp.Offset)
	}
}

func TestSetThenGetCheckpoint(t *testing.T) {
	st := testState(newMemStorage())
	ctx := context.Background()
	epoch := time.Date(2021, 6, 13, 0, 0, 0, 0, time.UTC)

	want := NewCheckpoint(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), 200)
	if err := st.SetCheckpoint(ctx, "person", want); err != nil {
		t.Fatalf("SetCheckpoint() error: %v", err)
	}

	got, err := st.Checkpoint(ctx, "person", epoch)
	if err != nil {
		t.Fatalf("Checkpoint() error: %v", err)
	}
	if got != want {
		t.Errorf("Checkpoint() = %+v, want %+v", got, want)
	}
}

func TestCheckpointRetriesTransientFailures(t *testing.T) {
	storage := newMemStorage()
	storage.failures = 2
	st := testState(storage)

	epoch := time.Date(2021, 6, 13, 0, 0, 0, 0, time.UTC)
	if _, err := st.Checkpoint(context.Background(), "genre", epoch); err != nil {
		t.Fatalf("Checkpoint() should survive transient failures: %v", err)
	}
}

func TestCorruptCheckpointReseeds(t *testing.T) {
	storage := newMemStorage()
	storage.values["genre"] = "{{{not json"
	st := testState(storage)

	epoch := time.Date(2021, 6, 13, 0, 0, 0, 0, time.UTC)
	cp, err := st.Checkpoint(context.Background(), "genre", epoch)
	if err != nil {
		t.Fatalf("Checkpoint() error: %v", err)
	}
	if cp != NewCheckpoint(epoch, 0) {
		t.Errorf("corrupt payload should reseed from epoch, got %+v", cp)
	}
}

func TestBadgerStorageRoundTrip(t *testing.T) {
	storage, err := NewBadgerStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadgerStorage() error: %v", err)
	}
	defer storage.Close()

	ctx := context.Background()
	if _, err := storage.Get(ctx, "film_work"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get on empty store = %v, want ErrNotFound", err)
	}

	payload := `{"date":"2024-01-02 03:04:05","offset":100}`
	if err := storage.Set(ctx, "film_work", payload); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, err := storage.Get(ctx, "film_work")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got != payload {
		t.Errorf("Get() = %q, want %q", got, payload)
	}
}
