// Package metrics registers the daemon's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// HTTP
// =============================================================================

var (
	// HTTPRequestsTotal counts API requests by route pattern and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimdex_vision_http_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPDurationSeconds measures API request latency
	HTTPDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "heimdex_vision_http_duration_seconds",
			Help:    "Latency of API requests",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"route"},
	)
)

// =============================================================================
// Analysis
// =============================================================================

var (
	// OperationDurationSeconds measures latency of analysis operations
	OperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "heimdex_vision_operation_duration_seconds",
			Help:    "Latency of analysis operations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"operation"},
	)

	// OperationErrorsTotal counts failed analysis operations by error code
	OperationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimdex_vision_operation_errors_total",
			Help: "Total number of failed analysis operations",
		},
		[]string{"operation", "code"},
	)

	// ShotsSegmentedTotal counts shots produced by the segmenter
	ShotsSegmentedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heimdex_vision_shots_segmented_total",
			Help: "Total number of shots produced by segmentation",
		},
	)

	// ShotsDroppedTotal counts spans shorter than the minimum shot length
	ShotsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heimdex_vision_shots_dropped_total",
			Help: "Total number of candidate shots dropped as too short",
		},
	)
)

// =============================================================================
// Embedding
// =============================================================================

var (
	// EmbeddingRequestsTotal counts embedding calls by outcome
	EmbeddingRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimdex_vision_embedding_requests_total",
			Help: "Total number of embedding provider calls",
		},
		[]string{"status"},
	)

	// EmbeddingFailuresTotal counts tolerated keyframe embedding failures
	EmbeddingFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heimdex_vision_embedding_failures_total",
			Help: "Total number of keyframe embeddings that failed and were skipped",
		},
	)

	// FeatureCacheHitsTotal counts feature cache hits
	FeatureCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heimdex_vision_feature_cache_hits_total",
			Help: "Total number of feature cache hits",
		},
	)

	// FeatureCacheMissesTotal counts feature cache misses
	FeatureCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heimdex_vision_feature_cache_misses_total",
			Help: "Total number of feature cache misses",
		},
	)
)

// =============================================================================
// Jobs
// =============================================================================

var (
	// JobsProcessedTotal counts finished jobs by type and final status
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimdex_vision_jobs_processed_total",
			Help: "Total number of processed background jobs",
		},
		[]string{"type", "status"},
	)

	// JobQueueDepth tracks pending jobs seen at the last poll
	JobQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "heimdex_vision_job_queue_depth",
			Help: "Number of pending jobs at the last runner poll",
		},
	)
)

// ObserveOperation records the latency of op since start.
func ObserveOperation(op string, start time.Time) {
	OperationDurationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
