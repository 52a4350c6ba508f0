// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package transform

import (
	"sort"

	"github.com/openkino/searchsync/internal/logging"
	"github.com/openkino/searchsync/internal/metrics"
	"github.com/openkino/searchsync/internal/models"
)

// Persons folds (person x film x role) rows into person documents. Role
// and FilmIDs are sets, sorted for deterministic bodies so repeated
// cycles over a quiescent source upsert identical documents.
func Persons(rows []models.PersonRow) []*models.PersonDocument {
	type acc struct {
		name    string
		roles   map[string]bool
		filmIDs map[string]bool
	}
	byID := make(map[string]*acc, len(rows))
	var order []string

	for i := range rows {
		row := &rows[i]
		if err := row.Validate(); err != nil {
			metrics.RowsSkipped.WithLabelValues("validation").Inc()
			logging.Warn().Err(err).Str("person_id", row.PersonID).Msg("skipping invalid person row")
			continue
		}

		a, ok := byID[row.PersonID]
		if !ok {
			a = &acc{
				name:    row.FullName,
				roles:   make(map[string]bool),
				filmIDs: make(map[string]bool),
			}
			byID[row.PersonID] = a
			order = append(order, row.PersonID)
		}
		if row.Role != nil {
			a.roles[*row.Role] = true
		}
		if row.FilmWorkID != nil {
			a.filmIDs[*row.FilmWorkID] = true
		}
	}

	docs := make([]*models.PersonDocument, 0, len(order))
	for _, id := range order {
		a := byID[id]
		docs = append(docs, &models.PersonDocument{
			ID:      id,
			Name:    a.name,
			Role:    sortedKeys(a.roles),
			FilmIDs: sortedKeys(a.filmIDs),
		})
	}
	return docs
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
