// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

// Package source reads the relational film catalog (read-only).
//
// Three operations drive the replication cycle:
//
//   - StreamModifiedIDs: paged scan of `{id, modified}` rows past a
//     checkpoint timestamp, ordered by modified
//   - FilmIDsFor: fan-out resolution from modified genre/person rows to
//     the films they touch
//   - FilmRows / PersonRows / GenreRows: join-expanded row fetches that
//     feed the transforms
//
// All reads go through the backoff executor; connection drops get one
// immediate ping-and-retry before backoff takes over.
package source
