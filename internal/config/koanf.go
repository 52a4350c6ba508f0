// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/searchsync/config.yaml",
	"/etc/searchsync/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Postgres: PostgresConfig{
			Port: 5432,
		},
		Elastic: ElasticConfig{
			Port: 9200,
		},
		Redis: RedisConfig{
			Port: 6379,
		},
		State: StateConfig{
			Backend: "redis",
			Path:    "/data/searchsync/state",
		},
		ETL: ETLConfig{
			ChunkSize:              100,
			RestartIntervalSeconds: 60,
			EpochDefault:           "2021-06-13 00:00:00",
			LockFile:               "/tmp/searchsync.lock",
			GenresIndexEnabled:     false,
		},
		Retry: RetryConfig{
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     30 * time.Second,
			MaxElapsed:      0, // retry forever
		},
		Ops: OpsConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8787,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the effective configuration from layered sources
// (highest priority wins):
//
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps flat environment variable names to koanf config
// paths. Unmapped variables return "" and are skipped, which keeps random
// environment noise out of the configuration.
//
// Examples:
//   - POSTGRES_DB -> postgres.db
//   - CHUNK_SIZE -> etl.chunk_size
//   - RESTART_INTERVAL_SECONDS -> etl.restart_interval_seconds
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Source database
		"postgres_db":       "postgres.db",
		"postgres_user":     "postgres.user",
		"postgres_password": "postgres.password",
		"postgres_host":     "postgres.host",
		"postgres_port":     "postgres.port",

		// Search backend
		"elastic_host":     "elastic.host",
		"elastic_port":     "elastic.port",
		"elastic_user":     "elastic.user",
		"elastic_password": "elastic.password",

		// Checkpoint store
		"redis_host":    "redis.host",
		"redis_port":    "redis.port",
		"state_backend": "state.backend",
		"state_path":    "state.path",

		// Replication cycle
		"chunk_size":               "etl.chunk_size",
		"restart_interval_seconds": "etl.restart_interval_seconds",
		"epoch_default":            "etl.epoch_default",
		"lock_file":                "etl.lock_file",
		"enable_genres_index":      "etl.genres_index_enabled",

		// Backoff executor
		"retry_initial_interval": "retry.initial_interval",
		"retry_max_interval":     "retry.max_interval",
		"retry_max_elapsed":      "retry.max_elapsed",

		// Ops endpoint
		"ops_enabled": "ops.enabled",
		"http_host":   "ops.host",
		"http_port":   "ops.port",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
