// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// TimeLayout is the timestamp layout used for checkpoint dates and the
// EPOCH_DEFAULT seed. It matches the source database's second-resolution
// `modified` column formatting.
const TimeLayout = "2006-01-02 15:04:05"

// Config is the root configuration for the SearchSync daemon.
type Config struct {
	Postgres PostgresConfig `koanf:"postgres"`
	Elastic  ElasticConfig  `koanf:"elastic"`
	Redis    RedisConfig    `koanf:"redis"`
	State    StateConfig    `koanf:"state"`
	ETL      ETLConfig      `koanf:"etl"`
	Retry    RetryConfig    `koanf:"retry"`
	Ops      OpsConfig      `koanf:"ops"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// PostgresConfig describes the read-only source catalog connection.
type PostgresConfig struct {
	DB       string `koanf:"db" validate:"required"`
	User     string `koanf:"user" validate:"required"`
	Password string `koanf:"password"`
	Host     string `koanf:"host" validate:"required"`
	Port     int    `koanf:"port" validate:"gt=0,lte=65535"`
}

// DSN returns a pgx-compatible connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s",
		c.User, c.Password, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)), c.DB)
}

// ElasticConfig describes the search backend connection.
type ElasticConfig struct {
	Host     string `koanf:"host" validate:"required"`
	Port     int    `koanf:"port" validate:"gt=0,lte=65535"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
}

// Address returns the HTTP endpoint of the search backend.
func (c ElasticConfig) Address() string {
	return "http://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RedisConfig describes the checkpoint store connection.
// Only consulted when State.Backend is "redis".
type RedisConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"gte=0,lte=65535"`
}

// Addr returns the host:port address of the Redis server.
func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// StateConfig selects the checkpoint storage backend.
type StateConfig struct {
	// Backend is the checkpoint storage implementation: redis or badger.
	Backend string `koanf:"backend" validate:"oneof=redis badger"`

	// Path is the on-disk directory for the badger backend.
	Path string `koanf:"path"`
}

// ETLConfig drives the replication cycle.
type ETLConfig struct {
	// ChunkSize is the page size for modified-id scans and the bulk-upsert
	// batch size.
	ChunkSize int `koanf:"chunk_size" validate:"gt=0"`

	// RestartIntervalSeconds is the sleep between full cycles.
	// Kept as whole seconds to match the RESTART_INTERVAL_SECONDS contract.
	RestartIntervalSeconds int `koanf:"restart_interval_seconds" validate:"gt=0"`

	// EpochDefault seeds the checkpoint date when a table has never been
	// drained. Layout: TimeLayout.
	EpochDefault string `koanf:"epoch_default" validate:"required"`

	// LockFile is the advisory-lock path for the process singleton guard.
	LockFile string `koanf:"lock_file" validate:"required"`

	// GenresIndexEnabled wires the genres index into the cycle. Off by
	// default until downstream consumers declare the index.
	GenresIndexEnabled bool `koanf:"genres_index_enabled"`
}

// RestartInterval returns the inter-cycle sleep as a duration.
func (c ETLConfig) RestartInterval() time.Duration {
	return time.Duration(c.RestartIntervalSeconds) * time.Second
}

// EpochTime parses the configured epoch seed.
func (c ETLConfig) EpochTime() (time.Time, error) {
	return time.Parse(TimeLayout, c.EpochDefault)
}

// RetryConfig tunes the backoff executor wrapped around all fallible I/O.
type RetryConfig struct {
	// InitialInterval is the first retry delay.
	InitialInterval time.Duration `koanf:"initial_interval"`

	// MaxInterval caps the exponential delay growth.
	MaxInterval time.Duration `koanf:"max_interval"`

	// MaxElapsed bounds the total retry time. Zero means retry forever;
	// the pipeline prefers to wedge and log over crashing on a transient
	// upstream outage.
	MaxElapsed time.Duration `koanf:"max_elapsed"`
}

// OpsConfig configures the operational HTTP endpoint (health + metrics).
// This is not the catalog's read-side API; it only serves liveness signals.
type OpsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port" validate:"gte=0,lte=65535"`
}

// Addr returns the listen address of the ops server.
func (c OpsConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LoggingConfig mirrors internal/logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks structural constraints (struct tags) plus the rules the
// tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := c.ETL.EpochTime(); err != nil {
		return fmt.Errorf("invalid ETL epoch_default %q (want layout %q): %w",
			c.ETL.EpochDefault, TimeLayout, err)
	}

	switch c.State.Backend {
	case "redis":
		if c.Redis.Host == "" {
			return fmt.Errorf("state backend is redis but REDIS_HOST is empty")
		}
	case "badger":
		if c.State.Path == "" {
			return fmt.Errorf("state backend is badger but STATE_PATH is empty")
		}
	}

	if c.Retry.InitialInterval <= 0 {
		return fmt.Errorf("retry initial_interval must be positive, got %s", c.Retry.InitialInterval)
	}
	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("retry max_interval %s is below initial_interval %s",
			c.Retry.MaxInterval, c.Retry.InitialInterval)
	}

	return nil
}
