// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

// Package api serves the operational HTTP surface: /healthz liveness,
// /readyz dependency probes, and /metrics for Prometheus scrapes.
package api
