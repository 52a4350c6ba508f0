// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

// Package models defines the source row shapes read from the relational
// catalog and the denormalized document shapes written to the search
// backend.
//
// Source tables live under schema `content`:
//   - film_work, genre, person
//   - genre_film_work, person_film_work (many-to-many links)
//
// Search documents are keyed by entity id and upserted; they are never
// deleted by this pipeline.
package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Source role values in person_film_work.role.
//
// The source value `producer` lands in the film document's writers fields.
// This mismatch is a hard contract with index consumers; do not rename.
const (
	RoleActor    = "actor"
	RoleWriter   = "producer"
	RoleDirector = "director"
)

// Watched source tables, in drain order. Dependent tables come first so
// that films touched by a modified person or genre are re-indexed within
// the same cycle.
const (
	TableGenre    = "genre"
	TablePerson   = "person"
	TableFilmWork = "film_work"
)

// ModifiedRow is one element of a modified-id scan page.
type ModifiedRow struct {
	ID       string
	Modified time.Time
}

// FilmRow is one raw row of the join-expanded film query: a single
// (film x person-role x genre) combination. Left joins preserve films with
// no persons or genres, so the join-side fields are nullable.
type FilmRow struct {
	FilmID      string `validate:"required"`
	Title       string `validate:"required"`
	Description *string
	Rating      *float64
	Type        string `validate:"required"`
	Created     time.Time
	Modified    time.Time
	Role        *string
	PersonID    *string
	PersonName  *string
	GenreID     *string
	GenreName   *string
}

// PersonRow is one raw row of the person query: a (person x film x role)
// combination. Join-side fields are nullable for persons with no films.
type PersonRow struct {
	PersonID   string `validate:"required"`
	FullName   string `validate:"required"`
	Role       *string
	FilmWorkID *string
}

// GenreRow is one raw row of the genre query: a (genre x film) combination.
type GenreRow struct {
	GenreID     string `validate:"required"`
	Name        string `validate:"required"`
	Description *string
	FilmWorkID  *string
}

// rowValidator validates raw rows before they enter a transform. A single
// instance is safe for concurrent use.
var rowValidator = validator.New()

// Validate reports whether the row carries the required scalar fields.
func (r *FilmRow) Validate() error { return rowValidator.Struct(r) }

// Validate reports whether the row carries the required scalar fields.
func (r *PersonRow) Validate() error { return rowValidator.Struct(r) }

// Validate reports whether the row carries the required scalar fields.
func (r *GenreRow) Validate() error { return rowValidator.Struct(r) }

// PersonRef is an embedded {id, name} pair inside a film document.
type PersonRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GenreRef is an embedded {id, name} pair inside a film document.
type GenreRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FilmDocument is the denormalized `movies` index document.
//
// Deduplication inside the role lists is keyed by the person's full name,
// not the id: two distinct persons sharing a name collapse into one entry.
// Downstream consumers depend on this shape, lossy as it is.
type FilmDocument struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	IMDBRating     float64     `json:"imdb_rating"`
	Actors         []PersonRef `json:"actors"`
	ActorsNames    []string    `json:"actors_names"`
	Writers        []PersonRef `json:"writers"`
	WritersNames   []string    `json:"writers_names"`
	Directors      []PersonRef `json:"directors"`
	DirectorsNames []string    `json:"directors_names"`
	Genres         []GenreRef  `json:"genres"`
	GenresNames    []string    `json:"genres_names"`
}

// DocumentID implements sink.Document.
func (d *FilmDocument) DocumentID() string { return d.ID }

// NewFilmDocument initializes a film document from the scalar fields of a
// validated raw row. All list fields start empty (never nil) so that the
// serialized document always carries [] rather than null.
func NewFilmDocument(r *FilmRow) *FilmDocument {
	doc := &FilmDocument{
		ID:             r.FilmID,
		Title:          r.Title,
		Actors:         []PersonRef{},
		ActorsNames:    []string{},
		Writers:        []PersonRef{},
		WritersNames:   []string{},
		Directors:      []PersonRef{},
		DirectorsNames: []string{},
		Genres:         []GenreRef{},
		GenresNames:    []string{},
	}
	if r.Description != nil {
		doc.Description = *r.Description
	}
	if r.Rating != nil {
		doc.IMDBRating = *r.Rating
	}
	return doc
}

// PersonDocument is the `persons` index document. Role and FilmIDs are
// sets: repeats collapse, order is sorted for deterministic output.
type PersonDocument struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Role    []string `json:"role"`
	FilmIDs []string `json:"film_ids"`
}

// DocumentID implements sink.Document.
func (d *PersonDocument) DocumentID() string { return d.ID }

// GenreDocument is the future `genres` index document. The transform is
// fully defined; the index itself ships behind ENABLE_GENRES_INDEX.
type GenreDocument struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	FilmIDs     []string `json:"film_ids"`
}

// DocumentID implements sink.Document.
func (d *GenreDocument) DocumentID() string { return d.ID }
