// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openkino/searchsync/internal/config"
	"github.com/openkino/searchsync/internal/logging"
	"github.com/openkino/searchsync/internal/metrics"
	"github.com/openkino/searchsync/internal/models"
	"github.com/openkino/searchsync/internal/retry"
)

// querier is the subset of pgxpool.Pool the Reader needs. Narrowed for
// tests.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Reader issues paged and join-expanded queries against the source
// catalog. All reads are wrapped in the backoff executor; on a connection
// error the Reader additionally pings the pool and retries the statement
// exactly once before surfacing the failure to backoff.
type Reader struct {
	pool querier
	exec *retry.Executor
}

// New connects to the source catalog and verifies the connection.
func New(ctx context.Context, cfg config.PostgresConfig, exec *retry.Executor) (*Reader, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("source: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("source: ping: %w", err)
	}
	return &Reader{pool: pool, exec: exec}, nil
}

// Ping verifies the source connection. Used by readiness probes.
func (r *Reader) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the connection pool. Only valid for Readers built with
// New.
func (r *Reader) Close() {
	if pool, ok := r.pool.(*pgxpool.Pool); ok {
		pool.Close()
	}
}

// StreamModifiedIDs returns a pager over `SELECT id, modified ... WHERE
// modified >= since ORDER BY modified` pages. The stream is finite: it
// ends at the first short page.
func (r *Reader) StreamModifiedIDs(table string, since time.Time, limit, offset int) *ModifiedPager {
	return &ModifiedPager{
		fetch: func(ctx context.Context, off int) ([]models.ModifiedRow, error) {
			return r.modifiedIDs(ctx, table, since, limit, off)
		},
		limit:  limit,
		offset: offset,
	}
}

// modifiedIDs fetches one page of the modified-id scan.
func (r *Reader) modifiedIDs(ctx context.Context, table string, since time.Time, limit, offset int) ([]models.ModifiedRow, error) {
	sql, err := modifiedIDsQuery(table)
	if err != nil {
		return nil, err
	}

	var page []models.ModifiedRow
	err = r.exec.Do(ctx, "source", func() error {
		rows, qErr := r.query(ctx, "modified_ids", sql, since, limit, offset)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()

		page = page[:0]
		for rows.Next() {
			var row models.ModifiedRow
			if scanErr := rows.Scan(&row.ID, &row.Modified); scanErr != nil {
				return scanErr
			}
			page = append(page, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("source: modified ids for %s: %w", table, err)
	}

	metrics.RowsRead.WithLabelValues(table).Add(float64(len(page)))
	return page, nil
}

// FilmIDsFor resolves the set of film ids connected to the given
// dependent-table ids (genre or person), ordered by film modification
// time ascending. An empty id list short-circuits: the underlying
// `= ANY(...)` would be valid SQL, but there is nothing to ask.
func (r *Reader) FilmIDsFor(ctx context.Context, table string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sql, err := filmIDsQuery(table)
	if err != nil {
		return nil, err
	}

	var filmIDs []string
	err = r.exec.Do(ctx, "source", func() error {
		rows, qErr := r.query(ctx, "film_ids_for", sql, ids)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()

		filmIDs = filmIDs[:0]
		for rows.Next() {
			var id string
			if scanErr := rows.Scan(&id); scanErr != nil {
				return scanErr
			}
			filmIDs = append(filmIDs, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("source: film ids for %s: %w", table, err)
	}
	return filmIDs, nil
}

// FilmRows fetches the join-expanded cross-product rows for the given
// film ids.
func (r *Reader) FilmRows(ctx context.Context, filmIDs []string) ([]models.FilmRow, error) {
	if len(filmIDs) == 0 {
		return nil, nil
	}

	var result []models.FilmRow
	err := r.exec.Do(ctx, "source", func() error {
		rows, qErr := r.query(ctx, "film_rows", filmRowsQuery, filmIDs)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()

		result = result[:0]
		for rows.Next() {
			var row models.FilmRow
			if scanErr := rows.Scan(
				&row.FilmID, &row.Title, &row.Description, &row.Rating, &row.Type,
				&row.Created, &row.Modified,
				&row.Role, &row.PersonID, &row.PersonName,
				&row.GenreID, &row.GenreName,
			); scanErr != nil {
				return scanErr
			}
			result = append(result, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("source: film rows: %w", err)
	}
	return result, nil
}

// PersonRows fetches one row per (person x film x role) combination.
func (r *Reader) PersonRows(ctx context.Context, personIDs []string) ([]models.PersonRow, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}

	var result []models.PersonRow
	err := r.exec.Do(ctx, "source", func() error {
		rows, qErr := r.query(ctx, "person_rows", personRowsQuery, personIDs)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()

		result = result[:0]
		for rows.Next() {
			var row models.PersonRow
			if scanErr := rows.Scan(&row.PersonID, &row.FullName, &row.Role, &row.FilmWorkID); scanErr != nil {
				return scanErr
			}
			result = append(result, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("source: person rows: %w", err)
	}
	return result, nil
}

// GenreRows fetches one row per (genre x film) combination.
func (r *Reader) GenreRows(ctx context.Context, genreIDs []string) ([]models.GenreRow, error) {
	if len(genreIDs) == 0 {
		return nil, nil
	}

	var result []models.GenreRow
	err := r.exec.Do(ctx, "source", func() error {
		rows, qErr := r.query(ctx, "genre_rows", genreRowsQuery, genreIDs)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()

		result = result[:0]
		for rows.Next() {
			var row models.GenreRow
			if scanErr := rows.Scan(&row.GenreID, &row.Name, &row.Description, &row.FilmWorkID); scanErr != nil {
				return scanErr
			}
			result = append(result, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("source: genre rows: %w", err)
	}
	return result, nil
}

// query runs one statement, retrying exactly once after a ping when the
// failure looks like a dropped connection. Anything past that single
// reconnect attempt is the backoff executor's problem.
func (r *Reader) query(ctx context.Context, operation, sql string, args ...any) (pgx.Rows, error) {
	start := time.Now()
	defer func() {
		metrics.SourceQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	rows, err := r.pool.Query(ctx, sql, args...)
	if err == nil || !isConnectionError(err) {
		return rows, err
	}

	logging.Error().Err(err).Str("operation", operation).Msg("source connection lost, reconnecting")
	if pingErr := r.pool.Ping(ctx); pingErr != nil {
		return nil, fmt.Errorf("reconnect ping: %w", pingErr)
	}
	return r.pool.Query(ctx, sql, args...)
}

// isConnectionError classifies failures that warrant a reconnect attempt
// rather than an immediate surface to backoff.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
