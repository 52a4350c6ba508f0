// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package transform

import (
	"github.com/openkino/searchsync/internal/logging"
	"github.com/openkino/searchsync/internal/metrics"
	"github.com/openkino/searchsync/internal/models"
)

// Films folds join-expanded film rows into denormalized film documents.
// Documents come out in first-seen row order, so output is deterministic
// for a given result set.
//
// Dedup inside the role lists is keyed by full name, not person id: two
// distinct persons named "Ann" collapse into one entry. Index consumers
// rely on this shape.
func Films(rows []models.FilmRow) []*models.FilmDocument {
	byID := make(map[string]*models.FilmDocument, len(rows))
	var order []string

	for i := range rows {
		row := &rows[i]
		if err := row.Validate(); err != nil {
			metrics.RowsSkipped.WithLabelValues("validation").Inc()
			logging.Warn().Err(err).Str("film_id", row.FilmID).Msg("skipping invalid film row")
			continue
		}

		doc, ok := byID[row.FilmID]
		if !ok {
			doc = models.NewFilmDocument(row)
			byID[row.FilmID] = doc
			order = append(order, row.FilmID)
		}

		if row.GenreName != nil && !contains(doc.GenresNames, *row.GenreName) {
			doc.GenresNames = append(doc.GenresNames, *row.GenreName)
			doc.Genres = append(doc.Genres, models.GenreRef{ID: deref(row.GenreID), Name: *row.GenreName})
		}

		if row.Role == nil || row.PersonName == nil {
			continue
		}
		ref := models.PersonRef{ID: deref(row.PersonID), Name: *row.PersonName}
		switch *row.Role {
		case models.RoleActor:
			if !contains(doc.ActorsNames, ref.Name) {
				doc.ActorsNames = append(doc.ActorsNames, ref.Name)
				doc.Actors = append(doc.Actors, ref)
			}
		case models.RoleWriter:
			if !contains(doc.WritersNames, ref.Name) {
				doc.WritersNames = append(doc.WritersNames, ref.Name)
				doc.Writers = append(doc.Writers, ref)
			}
		case models.RoleDirector:
			if !contains(doc.DirectorsNames, ref.Name) {
				doc.DirectorsNames = append(doc.DirectorsNames, ref.Name)
				doc.Directors = append(doc.Directors, ref)
			}
		default:
			metrics.RowsSkipped.WithLabelValues("unknown_role").Inc()
		}
	}

	docs := make([]*models.FilmDocument, 0, len(order))
	for _, id := range order {
		docs = append(docs, byID[id])
	}
	return docs
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
