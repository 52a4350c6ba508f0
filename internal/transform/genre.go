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

// Genres folds (genre x film) rows into genre documents. The genres
// index ships behind a flag, but the fold is complete either way.
func Genres(rows []models.GenreRow) []*models.GenreDocument {
	type acc struct {
		name        string
		description string
		filmIDs     map[string]bool
	}
	byID := make(map[string]*acc, len(rows))
	var order []string

	for i := range rows {
		row := &rows[i]
		if err := row.Validate(); err != nil {
			metrics.RowsSkipped.WithLabelValues("validation").Inc()
			logging.Warn().Err(err).Str("genre_id", row.GenreID).Msg("skipping invalid genre row")
			continue
		}

		a, ok := byID[row.GenreID]
		if !ok {
			a = &acc{name: row.Name, filmIDs: make(map[string]bool)}
			if row.Description != nil {
				a.description = *row.Description
			}
			byID[row.GenreID] = a
			order = append(order, row.GenreID)
		}
		if row.FilmWorkID != nil {
			a.filmIDs[*row.FilmWorkID] = true
		}
	}

	docs := make([]*models.GenreDocument, 0, len(order))
	for _, id := range order {
		a := byID[id]
		docs = append(docs, &models.GenreDocument{
			ID:          id,
			Name:        a.name,
			Description: a.description,
			FilmIDs:     sortedKeys(a.filmIDs),
		})
	}
	return docs
}
