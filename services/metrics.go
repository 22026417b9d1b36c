package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RelayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tryon_relay_requests_total",
			Help: "Total number of generation requests handled by the relay, by outcome",
		},
		[]string{"outcome"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tryon_upstream_request_duration_seconds",
			Help:    "Duration of upstream generation calls in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"status"},
	)

	TryOnJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tryon_jobs_total",
			Help: "Total number of try-on jobs, by outcome",
		},
		[]string{"outcome"},
	)
)

// Relay outcomes.
const (
	OutcomeRelayed       = "relayed"
	OutcomeMissingKey    = "missing_key"
	OutcomeProxyError    = "proxy_error"
	OutcomeUpstreamError = "upstream_error"
)

// Job outcomes.
const (
	OutcomeEnqueued  = "enqueued"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)
