// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

// Package etl is the replication coordinator: it drains modified rows
// from the watched catalog tables (genre, then person, then film_work),
// folds them into search documents, upserts them, and persists
// per-table checkpoints so a restart resumes where the last run left
// off.
package etl
