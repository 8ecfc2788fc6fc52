// Package metrics provides Prometheus metrics for the wiki templates uploader.
// It tracks MediaWiki API calls, page operations, pacing and tool calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const (
	Namespace = "wiki_uploader"
)

var (
	// RequestsTotal counts total MCP tool calls by tool name and status
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "requests_total",
		Help:      "Total number of MCP tool calls",
	}, []string{"tool", "status"})

	// RequestDuration measures tool call latency distribution
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "request_duration_seconds",
		Help:      "Request latency distribution by tool",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"tool"})

	// RequestInFlight tracks currently executing tool calls
	RequestInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "requests_in_flight",
		Help:      "Number of requests currently being processed",
	}, []string{"tool"})

	// APILatency measures MediaWiki API call latency by action
	APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "api_latency_seconds",
		Help:      "MediaWiki API call latency by action",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action"})

	// APIRequestsTotal counts MediaWiki API requests
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_requests_total",
		Help:      "Total MediaWiki API requests by action and status",
	}, []string{"action", "status"})

	// APIErrors counts MediaWiki API errors by error code
	APIErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_errors_total",
		Help:      "MediaWiki API errors by action and error code",
	}, []string{"action", "error_code"})

	// APIRetries counts API request retries
	APIRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_retries_total",
		Help:      "MediaWiki API retry count by action",
	}, []string{"action"})

	// RateLimitWaits counts requests that had to wait for the client semaphore
	RateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "rate_limit_waits_total",
		Help:      "Requests that waited for rate limiter semaphore",
	})

	// AuthFailures counts authentication failures
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "auth_failures_total",
		Help:      "Authentication failure count by reason",
	}, []string{"reason"})

	// TokenFetches counts token requests by type and outcome
	TokenFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "token_fetches_total",
		Help:      "Token fetches by token type and status",
	}, []string{"type", "status"})

	// PageOperations counts write operations by type
	PageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "page_operations_total",
		Help:      "Page operations (save, purge, upload) by status",
	}, []string{"operation", "status"})

	// PagesProcessed counts uploader decisions per page
	PagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "pages_processed_total",
		Help:      "Pages handled by the uploader by action (create, update) and mode (write, dry_run)",
	}, []string{"action", "mode"})

	// PacerWaitSeconds measures time spent pacing between writes
	PacerWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "pacer_wait_seconds",
		Help:      "Time spent waiting between page writes by pacer kind",
		Buckets:   []float64{0, .1, .5, 1, 2, 5, 10, 30},
	}, []string{"pacer"})

	// ChunkUploads counts uploaded file chunks
	ChunkUploads = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "chunk_uploads_total",
		Help:      "File chunks sent to the wiki",
	})

	// ContentSize tracks content sizes processed
	ContentSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "content_size_bytes",
		Help:      "Content size distribution in bytes",
		Buckets:   []float64{100, 1000, 10000, 50000, 100000, 250000, 500000, 1000000, 10000000},
	}, []string{"operation"})

	// CircuitOpen is 1 while the wiki circuit breaker rejects requests
	CircuitOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "circuit_open",
		Help:      "Whether the circuit breaker in front of the wiki API is open",
	})

	// PanicsRecovered counts recovered panics
	PanicsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "panics_recovered_total",
		Help:      "Number of panics recovered in tool handlers",
	}, []string{"tool"})
)

// RecordRequest records a completed tool call with its duration and status
func RecordRequest(tool string, duration float64, success bool) {
	RequestsTotal.WithLabelValues(tool, status(success)).Inc()
	RequestDuration.WithLabelValues(tool).Observe(duration)
}

// RecordAPICall records a MediaWiki API call
func RecordAPICall(action string, duration float64, success bool, errorCode string) {
	APIRequestsTotal.WithLabelValues(action, status(success)).Inc()
	APILatency.WithLabelValues(action).Observe(duration)
	if errorCode != "" {
		APIErrors.WithLabelValues(action, errorCode).Inc()
	}
}

// RecordPage records an uploader decision for one page
func RecordPage(exists, dryRun bool) {
	action := "create"
	if exists {
		action = "update"
	}
	mode := "write"
	if dryRun {
		mode = "dry_run"
	}
	PagesProcessed.WithLabelValues(action, mode).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
