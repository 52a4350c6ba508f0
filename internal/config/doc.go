// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

// Package config loads and validates the daemon configuration.
//
// Configuration is layered via Koanf v2 (highest priority wins):
//
//  1. Built-in defaults
//  2. Optional YAML config file (CONFIG_PATH or the standard search paths)
//  3. Environment variables
//
// The environment surface is deliberately flat and enumerated
// (POSTGRES_*, ELASTIC_*, REDIS_*, CHUNK_SIZE, RESTART_INTERVAL_SECONDS,
// EPOCH_DEFAULT, ...); see envTransformFunc for the full mapping.
package config
