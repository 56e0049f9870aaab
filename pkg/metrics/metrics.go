package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequests counts calls to the GitHub REST API by path template and status class.
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "durolink_upstream_requests_total",
			Help: "Total number of GitHub API requests",
		},
		[]string{"path", "status"},
	)

	// TokenMints counts installation token mints, split by trigger (miss|forced).
	TokenMints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "durolink_token_mints_total",
			Help: "Total number of installation access token mints",
		},
		[]string{"trigger"},
	)

	// DirectorySyncs records bulk installation directory syncs and their outcome (success|failure).
	DirectorySyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "durolink_directory_syncs_total",
			Help: "Total number of installation directory syncs",
		},
		[]string{"result"},
	)

	// Resolutions counts artifact resolutions by entry point (branch|run|artifact) and outcome.
	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "durolink_resolutions_total",
			Help: "Total number of artifact link resolutions",
		},
		[]string{"entry", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "durolink_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
