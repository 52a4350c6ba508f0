// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

// Package supervisor builds the suture supervision tree that keeps the
// replication coordinator and the ops HTTP server running, restarting
// either independently on failure.
package supervisor
