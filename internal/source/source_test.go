// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package source

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openkino/searchsync/internal/models"
	"github.com/openkino/searchsync/internal/retry"
)

func TestModifiedIDsQueryValidatesTable(t *testing.T) {
	for _, table := range []string{models.TableGenre, models.TablePerson, models.TableFilmWork} {
		sql, err := modifiedIDsQuery(table)
		if err != nil {
			t.Errorf("modifiedIDsQuery(%s) error: %v", table, err)
		}
		if !strings.Contains(sql, "FROM content."+table) {
			t.Errorf("query for %s targets wrong table: %s", table, sql)
		}
		if !strings.Contains(sql, "ORDER BY modified") {
			t.Errorf("query for %s must order by modified: %s", table, sql)
		}
	}

	if _, err := modifiedIDsQuery("users; DROP TABLE users"); err == nil {
		t.Error("modifiedIDsQuery must reject unwatched tables")
	}
}

func TestFilmIDsQueryValidatesTable(t *testing.T) {
	sql, err := filmIDsQuery(models.TableGenre)
	if err != nil {
		t.Fatalf("filmIDsQuery(genre) error: %v", err)
	}
	if !strings.Contains(sql, "content.genre_film_work") {
		t.Errorf("genre fan-out must join genre_film_work: %s", sql)
	}
	if !strings.Contains(sql, "ORDER BY fw.modified") {
		t.Errorf("fan-out must order by film modification time: %s", sql)
	}

	sql, err = filmIDsQuery(models.TablePerson)
	if err != nil {
		t.Fatalf("filmIDsQuery(person) error: %v", err)
	}
	if !strings.Contains(sql, "content.person_film_work") {
		t.Errorf("person fan-out must join person_film_work: %s", sql)
	}

	// film_work has no link table of its own
	if _, err := filmIDsQuery(models.TableFilmWork); err == nil {
		t.Error("filmIDsQuery(film_work) should fail")
	}
}

func TestFilmRowsQueryShape(t *testing.T) {
	for _, join := range []string{
		"LEFT JOIN content.person_film_work",
		"LEFT JOIN content.person",
		"LEFT JOIN content.genre_film_work",
		"LEFT JOIN content.genre",
	} {
		if !strings.Contains(filmRowsQuery, join) {
			t.Errorf("film query missing %q", join)
		}
	}
}

// TestEmptyIDShortCircuit verifies that empty id lists never reach the
// database.
func TestEmptyIDShortCircuit(t *testing.T) {
	r := &Reader{pool: nil, exec: testExecutor()} // nil pool: any query would panic
	ctx := context.Background()

	if ids, err := r.FilmIDsFor(ctx, models.TableGenre, nil); err != nil || ids != nil {
		t.Errorf("FilmIDsFor(empty) = %v, %v; want nil, nil", ids, err)
	}
	if rows, err := r.FilmRows(ctx, nil); err != nil || rows != nil {
		t.Errorf("FilmRows(empty) = %v, %v; want nil, nil", rows, err)
	}
	if rows, err := r.PersonRows(ctx, nil); err != nil || rows != nil {
		t.Errorf("PersonRows(empty) = %v, %v; want nil, nil", rows, err)
	}
	if rows, err := r.GenreRows(ctx, nil); err != nil || rows != nil {
		t.Errorf("GenreRows(empty) = %v, %v; want nil, nil", rows, err)
	}
}

func testExecutor() *retry.Executor {
	return retry.New(retry.Options{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsed:      50 * time.Millisecond,
	})
}

// pagerFromPages builds a ModifiedPager over a canned page sequence.
func pagerFromPages(limit int, pages ...[]models.ModifiedRow) *ModifiedPager {
	call := 0
	return &ModifiedPager{
		fetch: func(_ context.Context, _ int) ([]models.ModifiedRow, error) {
			if call >= len(pages) {
				return nil, nil
			}
			page := pages[call]
			call++
			return page, nil
		},
		limit: limit,
	}
}

func modRow(id string) models.ModifiedRow {
	return models.ModifiedRow{ID: id, Modified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestPagerStopsAtShortPage(t *testing.T) {
	pager := pagerFromPages(2,
		[]models.ModifiedRow{modRow("a"), modRow("b")},
		[]models.ModifiedRow{modRow("c")},
	)
	ctx := context.Background()

	page1, err := pager.Next(ctx)
	if err != nil || len(page1) != 2 {
		t.Fatalf("page1 = %v, %v", page1, err)
	}
	if pager.Offset() != 2 {
		t.Errorf("offset after page1 = %d, want 2", pager.Offset())
	}

	page2, err := pager.Next(ctx)
	if err != nil || len(page2) != 1 {
		t.Fatalf("page2 = %v, %v", page2, err)
	}
	if pager.Offset() != 4 {
		t.Errorf("offset after page2 = %d, want 4", pager.Offset())
	}

	// Short page ended the stream; no further fetches.
	page3, err := pager.Next(ctx)
	if err != nil || page3 != nil {
		t.Errorf("page3 = %v, %v; want nil, nil", page3, err)
	}
}

func TestPagerEmptyFirstPage(t *testing.T) {
	pager := pagerFromPages(2)

	page, err := pager.Next(context.Background())
	if err != nil || page != nil {
		t.Errorf("Next() on empty stream = %v, %v; want nil, nil", page, err)
	}
	if pager.Offset() != 0 {
		t.Errorf("offset = %d, want 0 for empty stream", pager.Offset())
	}
}

func TestPagerPropagatesErrors(t *testing.T) {
	boom := errors.New("connection reset")
	pager := &ModifiedPager{
		fetch: func(_ context.Context, _ int) ([]models.ModifiedRow, error) {
			return nil, boom
		},
		limit: 2,
	}

	if _, err := pager.Next(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Next() error = %v, want %v", err, boom)
	}
}

func TestPagerResumesFromOffset(t *testing.T) {
	var gotOffsets []int
	pager := &ModifiedPager{
		fetch: func(_ context.Context, off int) ([]models.ModifiedRow, error) {
			gotOffsets = append(gotOffsets, off)
			if off >= 6 {
				return nil, nil
			}
			return []models.ModifiedRow{modRow("x"), modRow("y")}, nil
		},
		limit:  2,
		offset: 4, // crash-resume mid-drain
	}

	ctx := context.Background()
	for {
		page, err := pager.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if page == nil {
			break
		}
	}

	if len(gotOffsets) != 2 || gotOffsets[0] != 4 || gotOffsets[1] != 6 {
		t.Errorf("fetch offsets = %v, want [4 6]", gotOffsets)
	}
}

func TestIsConnectionError(t *testing.T) {
	if isConnectionError(nil) {
		t.Error("nil is not a connection error")
	}
	if !isConnectionError(errOnlyNet{}) {
		t.Error("net.Error should classify as connection error")
	}
	if isConnectionError(errors.New("syntax error at or near")) {
		t.Error("plain SQL errors must not trigger reconnect")
	}
}

// errOnlyNet is a minimal net.Error.
type errOnlyNet struct{}

func (errOnlyNet) Error() string   { return "broken pipe" }
func (errOnlyNet) Timeout() bool   { return false }
func (errOnlyNet) Temporary() bool { return true }
