// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

// Package state provides durable checkpoint storage for the replication
// pipeline.
//
// Each watched source table maps to one key whose value is the JSON
// checkpoint {"date": "YYYY-MM-DD HH:MM:SS", "offset": N}. Two backends
// implement the Storage interface:
//
//   - RedisStorage (default): shared store for multi-host deployments
//   - BadgerStorage: embedded store for single-node deployments
//
// The State wrapper owns payload encoding, cold-start seeding from
// EPOCH_DEFAULT, and retry-under-backoff for transient backend loss.
package state
