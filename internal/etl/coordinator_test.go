// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package etl

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/openkino/searchsync/internal/config"
	"github.com/openkino/searchsync/internal/models"
	"github.com/openkino/searchsync/internal/sink"
	"github.com/openkino/searchsync/internal/state"
)

const testEpoch = "2021-06-13 00:00:00"

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) // "2024-05-01 12:00:00"

// fakePager serves LIMIT/OFFSET pages over a fixed row slice, with the
// same short-page termination as the real pager.
type fakePager struct {
	rows   []models.ModifiedRow
	limit  int
	offset int
	done   bool
}

func (p *fakePager) Next(context.Context) ([]models.ModifiedRow, error) {
	if p.done {
		return nil, nil
	}
	if p.offset >= len(p.rows) {
		p.done = true
		return nil, nil
	}
	end := p.offset + p.limit
	if end > len(p.rows) {
		end = len(p.rows)
	}
	page := p.rows[p.offset:end]
	p.offset += p.limit
	if len(page) < p.limit {
		p.done = true
	}
	return page, nil
}

func (p *fakePager) Offset() int { return p.offset }

// fakeSource serves a fixed dataset.
type fakeSource struct {
	modified map[string][]models.ModifiedRow
	links    map[string][]string // "<table>/<id>" -> film ids
	films    map[string][]models.FilmRow
	persons  map[string][]models.PersonRow
	genres   map[string][]models.GenreRow
}

func (f *fakeSource) StreamModifiedIDs(table string, _ time.Time, limit, offset int) Pager {
	return &fakePager{rows: f.modified[table], limit: limit, offset: offset}
}

func (f *fakeSource) FilmIDsFor(_ context.Context, table string, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		out = append(out, f.links[table+"/"+id]...)
	}
	return out, nil
}

func (f *fakeSource) FilmRows(_ context.Context, filmIDs []string) ([]models.FilmRow, error) {
	var out []models.FilmRow
	for _, id := range filmIDs {
		out = append(out, f.films[id]...)
	}
	return out, nil
}

func (f *fakeSource) PersonRows(_ context.Context, personIDs []string) ([]models.PersonRow, error) {
	var out []models.PersonRow
	for _, id := range personIDs {
		out = append(out, f.persons[id]...)
	}
	return out, nil
}

func (f *fakeSource) GenreRows(_ context.Context, genreIDs []string) ([]models.GenreRow, error) {
	var out []models.GenreRow
	for _, id := range genreIDs {
		out = append(out, f.genres[id]...)
	}
	return out, nil
}

// fakeSink records every upsert in order. With rejectAll set it mirrors
// the writer's behavior for item-level bulk rejections: the documents
// are dropped and counted, but the call still succeeds.
type fakeSink struct {
	upserts   []upsert
	fail      error
	rejectAll bool
	rejected  int
}

type upsert struct {
	index string
	docs  []sink.Document
}

func (f *fakeSink) Upsert(_ context.Context, index string, docs []sink.Document) error {
	if f.fail != nil {
		return f.fail
	}
	if len(docs) == 0 {
		return nil
	}
	if f.rejectAll {
		f.rejected++
		return nil
	}
	f.upserts = append(f.upserts, upsert{index: index, docs: docs})
	return nil
}

func (f *fakeSink) docsFor(index string) []sink.Document {
	var out []sink.Document
	for _, u := range f.upserts {
		if u.index == index {
			out = append(out, u.docs...)
		}
	}
	return out
}

// fakeState is an in-memory checkpoint store recording every persist.
type fakeState struct {
	values  map[string]state.Checkpoint
	history map[string][]state.Checkpoint
}

func newFakeState() *fakeState {
	return &fakeState{
		values:  make(map[string]state.Checkpoint),
		history: make(map[string][]state.Checkpoint),
	}
}

func (f *fakeState) Checkpoint(_ context.Context, table string, epoch time.Time) (state.Checkpoint, error) {
	if cp, ok := f.values[table]; ok {
		return cp, nil
	}
	return state.NewCheckpoint(epoch, 0), nil
}

func (f *fakeState) SetCheckpoint(_ context.Context, table string, cp state.Checkpoint) error {
	f.values[table] = cp
	f.history[table] = append(f.history[table], cp)
	return nil
}

func strp(s string) *string { return &s }

func floatp(f float64) *float64 { return &f }

// s1Source is the cold-start dataset: one film, one actor, one genre.
func s1Source() *fakeSource {
	mod := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &fakeSource{
		modified: map[string][]models.ModifiedRow{
			models.TableGenre:    {{ID: "G1", Modified: mod}},
			models.TablePerson:   {{ID: "P1", Modified: mod}},
			models.TableFilmWork: {{ID: "F1", Modified: mod}},
		},
		links: map[string][]string{
			"genre/G1":  {"F1"},
			"person/P1": {"F1"},
		},
		films: map[string][]models.FilmRow{
			"F1": {
				{
					FilmID: "F1", Title: "A", Rating: floatp(7.5), Type: "movie",
					Role: strp("actor"), PersonID: strp("P1"), PersonName: strp("Ann"),
					GenreID: strp("G1"), GenreName: strp("Drama"),
				},
			},
		},
		persons: map[string][]models.PersonRow{
			"P1": {{PersonID: "P1", FullName: "Ann", Role: strp("actor"), FilmWorkID: strp("F1")}},
		},
		genres: map[string][]models.GenreRow{
			"G1": {{GenreID: "G1", Name: "Drama", FilmWorkID: strp("F1")}},
		},
	}
}

func testCoordinator(t *testing.T, src Source, snk Sink, st Checkpoints, chunk int, genresIndex bool) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(src, snk, st, config.ETLConfig{
		ChunkSize:              chunk,
		RestartIntervalSeconds: 1,
		EpochDefault:           testEpoch,
		LockFile:               "/tmp/etl-test.lock",
		GenresIndexEnabled:     genresIndex,
	})
	if err != nil {
		t.Fatal(err)
	}
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestCycleColdStart(t *testing.T) {
	src := s1Source()
	snk := &fakeSink{}
	st := newFakeState()
	c := testCoordinator(t, src, snk, st, 100, false)

	if err := c.cycle(context.Background()); err != nil {
		t.Fatalf("cycle() error: %v", err)
	}

	persons := snk.docsFor(sink.IndexPersons)
	if len(persons) != 1 {
		t.Fatalf("persons upserts = %d, want 1", len(persons))
	}
	person := persons[0].(*models.PersonDocument)
	if person.ID != "P1" || person.Name != "Ann" {
		t.Errorf("person = %+v", person)
	}
	if !reflect.DeepEqual(person.Role, []string{"actor"}) || !reflect.DeepEqual(person.FilmIDs, []string{"F1"}) {
		t.Errorf("person sets = %v %v", person.Role, person.FilmIDs)
	}

	movies := snk.docsFor(sink.IndexMovies)
	if len(movies) == 0 {
		t.Fatal("no movies upserted")
	}
	// F1 is re-emitted once per drain that touches it; every copy must
	// be identical (idempotent upserts).
	for _, doc := range movies {
		film := doc.(*models.FilmDocument)
		if film.ID != "F1" || film.Title != "A" || film.IMDBRating != 7.5 {
			t.Errorf("film scalars = %+v", film)
		}
		if !reflect.DeepEqual(film.ActorsNames, []string{"Ann"}) {
			t.Errorf("actors_names = %v", film.ActorsNames)
		}
		if !reflect.DeepEqual(film.GenresNames, []string{"Drama"}) {
			t.Errorf("genres_names = %v", film.GenresNames)
		}
		if len(film.Writers) != 0 || len(film.Directors) != 0 {
			t.Errorf("unexpected role entries: %+v", film)
		}
	}

	// Every table ends the cycle at {cycle_date, 0}.
	want := state.NewCheckpoint(fixedNow, 0)
	for _, table := range drainOrder {
		if got := st.values[table]; got != want {
			t.Errorf("final checkpoint for %s = %+v, want %+v", table, got, want)
		}
	}
}

func TestCheckpointSequenceDuringDrain(t *testing.T) {
	mod := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{
		modified: map[string][]models.ModifiedRow{
			models.TableFilmWork: {{ID: "F1", Modified: mod}, {ID: "F2", Modified: mod}, {ID: "F3", Modified: mod}},
		},
		films: map[string][]models.FilmRow{
			"F1": {{FilmID: "F1", Title: "A", Type: "movie"}},
			"F2": {{FilmID: "F2", Title: "B", Type: "movie"}},
			"F3": {{FilmID: "F3", Title: "C", Type: "movie"}},
		},
	}
	snk := &fakeSink{}
	st := newFakeState()
	c := testCoordinator(t, src, snk, st, 2, false)

	if err := c.cycle(context.Background()); err != nil {
		t.Fatalf("cycle() error: %v", err)
	}

	// Three rows at chunk 2: full page, short page, then the cycle-end
	// reset. The date is frozen at the epoch until the reset.
	want := []state.Checkpoint{
		{Date: testEpoch, Offset: 2},
		{Date: testEpoch, Offset: 4},
		state.NewCheckpoint(fixedNow, 0),
	}
	if got := st.history[models.TableFilmWork]; !reflect.DeepEqual(got, want) {
		t.Errorf("checkpoint sequence = %+v, want %+v", got, want)
	}
}

func TestResumeFromMidDrainOffset(t *testing.T) {
	mod := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{
		modified: map[string][]models.ModifiedRow{
			models.TableFilmWork: {{ID: "F1", Modified: mod}, {ID: "F2", Modified: mod}, {ID: "F3", Modified: mod}},
		},
		films: map[string][]models.FilmRow{
			"F1": {{FilmID: "F1", Title: "A", Type: "movie"}},
			"F2": {{FilmID: "F2", Title: "B", Type: "movie"}},
			"F3": {{FilmID: "F3", Title: "C", Type: "movie"}},
		},
	}
	snk := &fakeSink{}
	st := newFakeState()
	// Crash happened after persisting {epoch, 2}: F1 and F2 already
	// emitted, F3 pending.
	st.values[models.TableFilmWork] = state.Checkpoint{Date: testEpoch, Offset: 2}
	c := testCoordinator(t, src, snk, st, 2, false)

	if err := c.cycle(context.Background()); err != nil {
		t.Fatalf("cycle() error: %v", err)
	}

	movies := snk.docsFor(sink.IndexMovies)
	if len(movies) != 1 {
		t.Fatalf("movies upserts = %d, want only the pending film", len(movies))
	}
	if got := movies[0].(*models.FilmDocument).ID; got != "F3" {
		t.Errorf("resumed film = %s, want F3", got)
	}
}

func TestGenresIndexGate(t *testing.T) {
	for _, enabled := range []bool{false, true} {
		src := s1Source()
		snk := &fakeSink{}
		st := newFakeState()
		c := testCoordinator(t, src, snk, st, 100, enabled)

		if err := c.cycle(context.Background()); err != nil {
			t.Fatalf("cycle() error: %v", err)
		}

		genres := snk.docsFor(sink.IndexGenres)
		if enabled && len(genres) != 1 {
			t.Errorf("genres index enabled but got %d upserts", len(genres))
		}
		if !enabled && len(genres) != 0 {
			t.Errorf("genres index disabled but got %d upserts", len(genres))
		}
	}
}

// TestDrainAdvancesPastRejectedBatches pins the liveness rule: batches
// whose documents get rejected item-by-item still count as delivered,
// so the drain completes and the checkpoint advances instead of
// replaying the same poisoned page forever.
func TestDrainAdvancesPastRejectedBatches(t *testing.T) {
	src := s1Source()
	snk := &fakeSink{rejectAll: true}
	st := newFakeState()
	c := testCoordinator(t, src, snk, st, 100, false)

	if err := c.cycle(context.Background()); err != nil {
		t.Fatalf("cycle() error: %v", err)
	}
	if snk.rejected == 0 {
		t.Fatal("fixture produced no rejected batches")
	}

	want := state.NewCheckpoint(fixedNow, 0)
	for _, table := range drainOrder {
		if got := st.values[table]; got != want {
			t.Errorf("checkpoint for %s = %+v, want %+v despite rejections", table, got, want)
		}
	}
}

// TestFanOutBatchedByChunkSize: a dependent page can touch more films
// than the chunk size; the movies upserts must be re-batched.
func TestFanOutBatchedByChunkSize(t *testing.T) {
	mod := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	filmIDs := []string{"F1", "F2", "F3", "F4", "F5"}
	films := make(map[string][]models.FilmRow, len(filmIDs))
	for _, id := range filmIDs {
		films[id] = []models.FilmRow{{FilmID: id, Title: "T-" + id, Type: "movie"}}
	}
	src := &fakeSource{
		modified: map[string][]models.ModifiedRow{
			models.TableGenre: {{ID: "G1", Modified: mod}},
		},
		links: map[string][]string{"genre/G1": filmIDs},
		films: films,
	}
	snk := &fakeSink{}
	st := newFakeState()
	c := testCoordinator(t, src, snk, st, 2, false)

	if err := c.cycle(context.Background()); err != nil {
		t.Fatalf("cycle() error: %v", err)
	}

	seen := map[string]bool{}
	for _, u := range snk.upserts {
		if u.index != sink.IndexMovies {
			continue
		}
		if len(u.docs) > 2 {
			t.Errorf("movies batch of %d documents exceeds chunk size 2", len(u.docs))
		}
		for _, doc := range u.docs {
			seen[doc.DocumentID()] = true
		}
	}
	if len(seen) != len(filmIDs) {
		t.Errorf("re-batching lost films: saw %d of %d", len(seen), len(filmIDs))
	}
}

func TestCycleAbortsOnSinkFailure(t *testing.T) {
	src := s1Source()
	snk := &fakeSink{fail: errors.New("cluster red")}
	st := newFakeState()
	c := testCoordinator(t, src, snk, st, 100, false)

	if err := c.cycle(context.Background()); err == nil {
		t.Fatal("cycle() must surface sink failure")
	}
	// The failed table never reached its cycle-end reset.
	if len(st.history[models.TableGenre]) != 0 {
		t.Errorf("checkpoints persisted despite failed drain: %+v", st.history[models.TableGenre])
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	src := s1Source()
	snk := &fakeSink{}
	st := newFakeState()
	c := testCoordinator(t, src, snk, st, 100, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not stop on cancel")
	}
}
