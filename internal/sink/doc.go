// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

// Package sink writes denormalized documents to the search backend.
//
// Documents are bulk-upserted keyed by (_index, _id), so replaying a
// batch after a crash or a retry converges to the same index state.
// Index mappings (including the ru_en analyzer stack) are bundled here
// and created on startup; nothing in this package ever deletes a
// document.
package sink
