// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openkino/searchsync/internal/config"
	"github.com/openkino/searchsync/internal/logging"
	"github.com/openkino/searchsync/internal/metrics"
	"github.com/openkino/searchsync/internal/models"
	"github.com/openkino/searchsync/internal/sink"
	"github.com/openkino/searchsync/internal/state"
	"github.com/openkino/searchsync/internal/transform"
)

// drainOrder fixes the per-cycle table order. Dependent tables come
// first so films touched by a modified person or genre are refreshed
// within the same cycle; film_work last catches pure film edits.
var drainOrder = []string{models.TableGenre, models.TablePerson, models.TableFilmWork}

// Coordinator runs the replication loop: drain each watched table in
// order, sleep the restart interval, repeat. It implements
// suture.Service and runs until its context is cancelled.
type Coordinator struct {
	src   Source
	sink  Sink
	state Checkpoints
	cfg   config.ETLConfig
	epoch time.Time
	now   func() time.Time
}

// NewCoordinator wires the pipeline stages together.
func NewCoordinator(src Source, snk Sink, st Checkpoints, cfg config.ETLConfig) (*Coordinator, error) {
	epoch, err := cfg.EpochTime()
	if err != nil {
		return nil, fmt.Errorf("etl: epoch: %w", err)
	}
	return &Coordinator{
		src:   src,
		sink:  snk,
		state: st,
		cfg:   cfg,
		epoch: epoch,
		now:   time.Now,
	}, nil
}

// Serve runs replication cycles until ctx is cancelled. A failed cycle
// is logged and retried after the restart interval; only cancellation
// ends the loop.
func (c *Coordinator) Serve(ctx context.Context) error {
	logging.Info().
		Int("chunk_size", c.cfg.ChunkSize).
		Dur("restart_interval", c.cfg.RestartInterval()).
		Time("epoch", c.epoch).
		Msg("coordinator started")

	for {
		start := c.now()
		cycleID := uuid.NewString()
		if err := c.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Error().Err(err).Str("cycle_id", cycleID).Msg("replication cycle aborted")
		} else {
			metrics.ObserveCycle(start)
			logging.Info().
				Str("cycle_id", cycleID).
				Dur("elapsed", c.now().Sub(start)).
				Msg("replication cycle complete")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.RestartInterval()):
		}
	}
}

func (c *Coordinator) String() string { return "etl.Coordinator" }

// cycle drains all watched tables once, in drain order.
func (c *Coordinator) cycle(ctx context.Context) error {
	for _, table := range drainOrder {
		if err := c.drainTable(ctx, table); err != nil {
			metrics.CycleErrors.WithLabelValues(table).Inc()
			return fmt.Errorf("drain %s: %w", table, err)
		}
	}
	return nil
}

// drainTable replays one table's modified rows from its checkpoint.
//
// The checkpoint date is frozen for the whole drain; only the offset
// advances per page. A crash mid-drain therefore resumes inside the
// same tie-group, re-upserting at most the pages already emitted. When
// the stream ends the checkpoint jumps to {cycle_date, 0}, where
// cycle_date was captured before the first page query so rows modified
// during the drain are picked up next cycle.
func (c *Coordinator) drainTable(ctx context.Context, table string) error {
	cp, err := c.state.Checkpoint(ctx, table, c.epoch)
	if err != nil {
		return err
	}
	since, err := cp.Time()
	if err != nil {
		return err
	}

	cycleDate := c.now()
	pager := c.src.StreamModifiedIDs(table, since, c.cfg.ChunkSize, cp.Offset)

	pages := 0
	for {
		page, err := pager.Next(ctx)
		if err != nil {
			return err
		}
		if page == nil {
			break
		}
		pages++

		ids := make([]string, len(page))
		for i, row := range page {
			ids[i] = row.ID
		}
		if err := c.processPage(ctx, table, ids); err != nil {
			return err
		}

		// Date stays put mid-drain; only the offset moves.
		if err := c.state.SetCheckpoint(ctx, table, state.Checkpoint{Date: cp.Date, Offset: pager.Offset()}); err != nil {
			return err
		}
	}

	logging.Info().
		Str("table", table).
		Int("pages", pages).
		Time("since", since).
		Msg("table drain complete")
	return c.state.SetCheckpoint(ctx, table, state.NewCheckpoint(cycleDate, 0))
}

// processPage projects one page of modified ids into the indices.
// Dependent tables additionally refresh their own index and fan out to
// the films they touch.
func (c *Coordinator) processPage(ctx context.Context, table string, ids []string) error {
	filmIDs := ids

	switch table {
	case models.TablePerson:
		rows, err := c.src.PersonRows(ctx, ids)
		if err != nil {
			return err
		}
		if err := c.sink.Upsert(ctx, sink.IndexPersons, asDocuments(transform.Persons(rows))); err != nil {
			return err
		}
		if filmIDs, err = c.src.FilmIDsFor(ctx, table, ids); err != nil {
			return err
		}

	case models.TableGenre:
		if c.cfg.GenresIndexEnabled {
			rows, err := c.src.GenreRows(ctx, ids)
			if err != nil {
				return err
			}
			if err := c.sink.Upsert(ctx, sink.IndexGenres, asDocuments(transform.Genres(rows))); err != nil {
				return err
			}
		}
		var err error
		if filmIDs, err = c.src.FilmIDsFor(ctx, table, ids); err != nil {
			return err
		}
	}

	// The fan-out from a dependent page is unbounded: one genre can
	// touch thousands of films. Film fetches and upserts are re-batched
	// at the chunk size so a single bulk request never balloons.
	for start := 0; start < len(filmIDs); start += c.cfg.ChunkSize {
		end := min(start+c.cfg.ChunkSize, len(filmIDs))
		films, err := c.src.FilmRows(ctx, filmIDs[start:end])
		if err != nil {
			return err
		}
		if err := c.sink.Upsert(ctx, sink.IndexMovies, asDocuments(transform.Films(films))); err != nil {
			return err
		}
	}
	return nil
}

// asDocuments widens a concrete document slice to the sink's interface.
func asDocuments[D sink.Document](in []D) []sink.Document {
	out := make([]sink.Document, len(in))
	for i, d := range in {
		out[i] = d
	}
	return out
}
