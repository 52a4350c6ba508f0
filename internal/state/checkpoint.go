// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package state

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/openkino/searchsync/internal/config"
)

// Checkpoint marks drain progress for one watched table.
//
// The contract: all rows with modified < Date are done; within rows at
// modified == Date, the first Offset have been emitted. After a full drain
// the checkpoint becomes {date: cycle start, offset: 0}.
//
// Both fields are required because ties on `modified` are broken by
// unspecified database row order; tracking the offset avoids skipping rows
// that share a modified tick with the last emitted row.
type Checkpoint struct {
	Date   string `json:"date"`
	Offset int    `json:"offset"`
}

// NewCheckpoint builds a checkpoint from a timestamp and offset.
func NewCheckpoint(date time.Time, offset int) Checkpoint {
	return Checkpoint{
		Date:   date.Format(config.TimeLayout),
		Offset: offset,
	}
}

// Time parses the checkpoint date.
func (c Checkpoint) Time() (time.Time, error) {
	t, err := time.Parse(config.TimeLayout, c.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed checkpoint date %q: %w", c.Date, err)
	}
	return t, nil
}

// Encode serializes the checkpoint to its stored JSON form.
func (c Checkpoint) Encode() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode checkpoint: %w", err)
	}
	return string(raw), nil
}

// DecodeCheckpoint parses a stored checkpoint payload.
func DecodeCheckpoint(payload string) (Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Checkpoint{}, fmt.Errorf("decode checkpoint %q: %w", payload, err)
	}
	if _, err := c.Time(); err != nil {
		return Checkpoint{}, err
	}
	if c.Offset < 0 {
		return Checkpoint{}, fmt.Errorf("negative checkpoint offset %d", c.Offset)
	}
	return c, nil
}
