// Package metrics provides Prometheus metrics for the willow batch jobs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsScanned tracks raw rows pulled from each source.
	RowsScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "willow",
			Subsystem: "pipeline",
			Name:      "rows_scanned_total",
			Help:      "Raw rows fetched from external sources",
		},
		[]string{"job", "source"},
	)

	// RowsResolved tracks resolution outcomes.
	RowsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "willow",
			Subsystem: "pipeline",
			Name:      "rows_resolved_total",
			Help:      "Candidates resolved, by outcome (new, existing, ambiguous)",
		},
		[]string{"job", "outcome"},
	)

	// RowsSkipped tracks rows skipped with a reason.
	RowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "willow",
			Subsystem: "pipeline",
			Name:      "rows_skipped_total",
			Help:      "Rows skipped, by reason",
		},
		[]string{"job", "reason"},
	)

	// RowsDeduplicated tracks raw records dropped as lower-scoring duplicates.
	RowsDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "willow",
			Subsystem: "pipeline",
			Name:      "rows_deduplicated_total",
			Help:      "Raw records dropped in favor of a higher-scoring duplicate",
		},
		[]string{"job"},
	)

	// WindowsTruncated counts sub-windows whose row count hit the request cap.
	WindowsTruncated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "willow",
			Subsystem: "pipeline",
			Name:      "windows_truncated_total",
			Help:      "Range sub-windows flagged as possibly truncated",
		},
		[]string{"job"},
	)

	// OutboundRequests tracks outbound HTTP requests by host and status.
	OutboundRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "willow",
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"host", "status_code"},
	)

	// OutboundRequestDuration tracks outbound HTTP request duration.
	OutboundRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "willow",
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"host"},
	)

	// MergeConflicts counts dual-key collisions resolved by the fallback path.
	MergeConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "willow",
			Subsystem: "merge",
			Name:      "key_conflicts_total",
			Help:      "Writes that required the dual unique key collision fallback",
		},
		[]string{"job"},
	)
)
