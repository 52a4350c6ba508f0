// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

// Package main is the entry point for the SearchSync daemon.
//
// SearchSync continuously replicates a relational film catalog into
// Elasticsearch: it watches the genre, person and film_work tables for
// modified rows, denormalizes them into search documents, and bulk-
// upserts them into the movies and persons indices. Per-table
// checkpoints in Redis (or embedded Badger) make restarts resume where
// the last run stopped.
//
// # Startup order
//
//  1. Configuration: environment variables over config.yaml over
//     built-in defaults (Koanf v2)
//  2. Singleton guard: advisory file lock; a second instance exits
//     non-zero immediately
//  3. Checkpoint storage: Redis or embedded Badger
//  4. Source catalog connection (pgx pool) and search backend client
//  5. Index creation with bundled mappings (tolerates existing)
//  6. Supervision tree: replication coordinator + ops HTTP server
//
// # Configuration
//
//	POSTGRES_{DB,USER,PASSWORD,HOST,PORT}  source connection
//	ELASTIC_{HOST,PORT,USER,PASSWORD}      sink connection
//	REDIS_{HOST,PORT}                      checkpoint store
//	CHUNK_SIZE                             page and bulk batch size (100)
//	RESTART_INTERVAL_SECONDS               sleep between cycles (60)
//	EPOCH_DEFAULT                          checkpoint seed timestamp
//	ENABLE_GENRES_INDEX                    also maintain a genres index
//
// # Signal handling
//
// SIGINT and SIGTERM cancel the run context; in-flight bulk writes
// finish, checkpoints persist, and the process exits 0.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/openkino/searchsync/internal/api"
	"github.com/openkino/searchsync/internal/config"
	"github.com/openkino/searchsync/internal/etl"
	"github.com/openkino/searchsync/internal/logging"
	"github.com/openkino/searchsync/internal/retry"
	"github.com/openkino/searchsync/internal/singleton"
	"github.com/openkino/searchsync/internal/sink"
	"github.com/openkino/searchsync/internal/source"
	"github.com/openkino/searchsync/internal/state"
	"github.com/openkino/searchsync/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	guard, err := singleton.Acquire(cfg.ETL.LockFile)
	if err != nil {
		if errors.Is(err, singleton.ErrAlreadyRunning) {
			logging.Error().Str("lock_file", cfg.ETL.LockFile).Msg("another instance is already running")
			os.Exit(1)
		}
		logging.Fatal().Err(err).Msg("failed to acquire singleton lock")
	}
	defer func() {
		if err := guard.Release(); err != nil {
			logging.Error().Err(err).Msg("error releasing singleton lock")
		}
	}()

	logging.Info().
		Str("state_backend", cfg.State.Backend).
		Int("chunk_size", cfg.ETL.ChunkSize).
		Bool("genres_index", cfg.ETL.GenresIndexEnabled).
		Msg("starting searchsync")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exec := retry.New(retry.Options{
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		MaxElapsed:      cfg.Retry.MaxElapsed,
	})

	storage, err := newStorage(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open checkpoint storage")
	}
	checkpoints := state.New(storage, exec)
	defer func() {
		if err := checkpoints.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing checkpoint storage")
		}
	}()

	reader, err := source.New(ctx, cfg.Postgres, exec)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to source catalog")
	}
	defer reader.Close()
	logging.Info().Str("host", cfg.Postgres.Host).Msg("source catalog connected")

	writer, err := sink.New(ctx, cfg.Elastic, exec)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to search backend")
	}

	indices := []string{sink.IndexMovies, sink.IndexPersons}
	if cfg.ETL.GenresIndexEnabled {
		indices = append(indices, sink.IndexGenres)
	}
	if err := writer.EnsureIndices(ctx, indices); err != nil {
		logging.Fatal().Err(err).Msg("failed to create search indices")
	}
	logging.Info().Strs("indices", indices).Msg("search indices ready")

	coordinator, err := etl.NewCoordinator(etl.AdaptReader(reader), writer, checkpoints, cfg.ETL)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build coordinator")
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(coordinator)
	if cfg.Ops.Enabled {
		tree.AddOpsService(api.NewServer(cfg.Ops, map[string]api.ReadyChecker{
			"postgres":      reader.Ping,
			"elasticsearch": writer.Ping,
		}))
	}

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor tree terminated")
		os.Exit(1)
	}
	logging.Info().Msg("shutdown complete")
}

// newStorage opens the configured checkpoint backend.
func newStorage(ctx context.Context, cfg *config.Config) (state.Storage, error) {
	switch cfg.State.Backend {
	case "badger":
		return state.NewBadgerStorage(cfg.State.Path)
	default:
		return state.NewRedisStorage(ctx, cfg.Redis)
	}
}
