// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package source

import (
	"fmt"

	"github.com/openkino/searchsync/internal/models"
)

// Table names are interpolated into SQL, so only the watched tables are
// accepted. Everything else is a programming error, not a query.
var watchedTables = map[string]bool{
	models.TableGenre:    true,
	models.TablePerson:   true,
	models.TableFilmWork: true,
}

// dependentTables have a <table>_film_work link table used by the fan-out
// query.
var dependentTables = map[string]bool{
	models.TableGenre:  true,
	models.TablePerson: true,
}

// modifiedIDsQuery pages ids by modification time. Ordering is
// non-decreasing by modified; ties are broken by unspecified database row
// order, which is why the caller's checkpoint carries an offset.
func modifiedIDsQuery(table string) (string, error) {
	if !watchedTables[table] {
		return "", fmt.Errorf("source: unwatched table %q", table)
	}
	return fmt.Sprintf(
		`SELECT id, modified
		 FROM content.%s
		 WHERE modified >= $1
		 ORDER BY modified
		 LIMIT $2 OFFSET $3`, table), nil
}

// filmIDsQuery resolves the films touched by modified dependent-entity
// rows, ordered by film modification time.
func filmIDsQuery(table string) (string, error) {
	if !dependentTables[table] {
		return "", fmt.Errorf("source: table %q has no film link", table)
	}
	return fmt.Sprintf(
		`SELECT fw.id
		 FROM content.film_work fw
		 LEFT JOIN content.%[1]s_film_work tfw ON tfw.film_work_id = fw.id
		 WHERE tfw.%[1]s_id = ANY($1)
		 ORDER BY fw.modified`, table), nil
}

// filmRowsQuery is the join-expanded film fetch: one row per
// (film x person-role x genre) combination. Left joins preserve films with
// no persons or genres.
const filmRowsQuery = `SELECT fw.id, fw.title, fw.description, fw.rating, fw.type,
       fw.created, fw.modified,
       pfw.role, p.id, p.full_name,
       g.id, g.name
FROM content.film_work fw
LEFT JOIN content.person_film_work pfw ON pfw.film_work_id = fw.id
LEFT JOIN content.person p ON p.id = pfw.person_id
LEFT JOIN content.genre_film_work gfw ON gfw.film_work_id = fw.id
LEFT JOIN content.genre g ON g.id = gfw.genre_id
WHERE fw.id = ANY($1)`

// personRowsQuery fetches one row per (person x film x role) combination.
const personRowsQuery = `SELECT p.id, p.full_name, pfw.role, pfw.film_work_id
FROM content.person p
LEFT JOIN content.person_film_work pfw ON pfw.person_id = p.id
WHERE p.id = ANY($1)`

// genreRowsQuery fetches one row per (genre x film) combination.
const genreRowsQuery = `SELECT g.id, g.name, g.description, gfw.film_work_id
FROM content.genre g
LEFT JOIN content.genre_film_work gfw ON gfw.genre_id = g.id
WHERE g.id = ANY($1)`
