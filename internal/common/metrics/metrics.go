package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_quote_requests_total",
			Help: "Quote requests sent to the pricing API by outcome",
		},
		[]string{"outcome"},
	)

	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricing_quote_duration_seconds",
			Help:    "Round trip time of quote requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	QuoteCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_quote_cache_total",
			Help: "Quote cache lookups by result",
		},
		[]string{"result"},
	)

	PreviewSuperseded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_preview_superseded_total",
			Help: "Quote results discarded because a newer preview was issued",
		},
	)

	PreviewDebounced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_preview_debounced_total",
			Help: "Selection changes that replaced a pending debounce timer",
		},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)

// Outcome labels for QuoteRequests and QuoteDuration.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)
