// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

// Package metrics exposes Prometheus collectors for the replication
// pipeline. Collectors are package-level and registered via promauto at
// import time; the ops server serves them on /metrics.
package metrics
