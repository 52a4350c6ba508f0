// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package etl

import (
	"context"
	"time"

	"github.com/openkino/searchsync/internal/models"
	"github.com/openkino/searchsync/internal/sink"
	"github.com/openkino/searchsync/internal/source"
	"github.com/openkino/searchsync/internal/state"
)

// Pager yields pages of modified-id rows; (nil, nil) means the stream
// is exhausted. Offset is the scan position after the last yielded
// page, persisted mid-drain.
type Pager interface {
	Next(ctx context.Context) ([]models.ModifiedRow, error)
	Offset() int
}

// Source is the Coordinator's view of the relational catalog.
type Source interface {
	StreamModifiedIDs(table string, since time.Time, limit, offset int) Pager
	FilmIDsFor(ctx context.Context, table string, ids []string) ([]string, error)
	FilmRows(ctx context.Context, filmIDs []string) ([]models.FilmRow, error)
	PersonRows(ctx context.Context, personIDs []string) ([]models.PersonRow, error)
	GenreRows(ctx context.Context, genreIDs []string) ([]models.GenreRow, error)
}

// Sink is the Coordinator's view of the search backend.
type Sink interface {
	Upsert(ctx context.Context, index string, docs []sink.Document) error
}

// Checkpoints is the Coordinator's view of checkpoint storage.
type Checkpoints interface {
	Checkpoint(ctx context.Context, table string, epoch time.Time) (state.Checkpoint, error)
	SetCheckpoint(ctx context.Context, table string, cp state.Checkpoint) error
}

// AdaptReader lifts a concrete source.Reader into the Source interface.
// Needed only because StreamModifiedIDs returns the concrete pager
// type.
func AdaptReader(r *source.Reader) Source { return readerSource{r} }

type readerSource struct {
	r *source.Reader
}

func (a readerSource) StreamModifiedIDs(table string, since time.Time, limit, offset int) Pager {
	return a.r.StreamModifiedIDs(table, since, limit, offset)
}

func (a readerSource) FilmIDsFor(ctx context.Context, table string, ids []string) ([]string, error) {
	return a.r.FilmIDsFor(ctx, table, ids)
}

func (a readerSource) FilmRows(ctx context.Context, filmIDs []string) ([]models.FilmRow, error) {
	return a.r.FilmRows(ctx, filmIDs)
}

func (a readerSource) PersonRows(ctx context.Context, personIDs []string) ([]models.PersonRow, error) {
	return a.r.PersonRows(ctx, personIDs)
}

func (a readerSource) GenreRows(ctx context.Context, genreIDs []string) ([]models.GenreRow, error) {
	return a.r.GenreRows(ctx, genreIDs)
}
