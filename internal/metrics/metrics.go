// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the replication pipeline:
// - Source read volume and latency
// - Transform drops (poisoned rows)
// - Sink bulk throughput and rejections
// - Checkpoint progress per watched table
// - Retry and circuit breaker activity

var (
	// Source metrics
	RowsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchsync_rows_read_total",
			Help: "Total number of modified rows read from the source catalog",
		},
		[]string{"table"},
	)

	SourceQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searchsync_source_query_duration_seconds",
			Help:    "Duration of source catalog queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Transform metrics
	RowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchsync_rows_skipped_total",
			Help: "Total number of raw rows dropped during transform",
		},
		[]string{"reason"}, // "validation", "unknown_role"
	)

	// Sink metrics
	DocumentsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchsync_documents_upserted_total",
			Help: "Total number of documents sent to the search backend",
		},
		[]string{"index"},
	)

	BulkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchsync_bulk_errors_total",
			Help: "Total number of rejected bulk items or failed bulk requests",
		},
		[]string{"index"},
	)

	BulkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searchsync_bulk_duration_seconds",
			Help:    "Duration of bulk upsert requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"index"},
	)

	// Cycle metrics
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "searchsync_cycle_duration_seconds",
			Help:    "Duration of a full replication cycle in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	CyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "searchsync_cycles_total",
			Help: "Total number of completed replication cycles",
		},
	)

	CycleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchsync_cycle_errors_total",
			Help: "Total number of aborted table drains",
		},
		[]string{"table"},
	)

	// Checkpoint metrics
	CheckpointTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "searchsync_checkpoint_timestamp",
			Help: "Unix timestamp of the persisted checkpoint date per table",
		},
		[]string{"table"},
	)

	CheckpointOffset = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "searchsync_checkpoint_offset",
			Help: "In-drain row offset of the persisted checkpoint per table",
		},
		[]string{"table"},
	)

	// Retry metrics
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchsync_retry_attempts_total",
			Help: "Total number of backoff retry attempts",
		},
		[]string{"component"},
	)

	// Circuit breaker metrics (search backend)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "searchsync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchsync_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Liveness: last successful cycle completion
	LastCycleSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "searchsync_last_cycle_success_timestamp",
			Help: "Unix timestamp of the last fully completed cycle",
		},
	)
)

// ObserveCycle records one completed cycle.
func ObserveCycle(start time.Time) {
	CycleDuration.Observe(time.Since(start).Seconds())
	CyclesTotal.Inc()
	LastCycleSuccess.SetToCurrentTime()
}

// ObserveCheckpoint records the persisted checkpoint position for a table.
func ObserveCheckpoint(table string, date time.Time, offset int) {
	CheckpointTimestamp.WithLabelValues(table).Set(float64(date.Unix()))
	CheckpointOffset.WithLabelValues(table).Set(float64(offset))
}
