// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

// Package transform holds the pure folds from join-expanded source rows
// to search documents. No I/O, no state across invocations: invalid rows
// are skipped with a counter bump, everything else is grouping and
// dedup.
package transform
