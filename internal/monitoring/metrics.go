// Package monitoring exposes Prometheus metrics for the gateway's own
// components, grounded in the teacher's internal/monitoring/metrics.go
// counter/gauge/histogram set but trimmed to the dimensions Pollux's
// architecture actually has: queue depth, cooldown heap size, refresh
// latency, and upstream call outcomes. The teacher's admin-dashboard
// slow-query and detailed-metrics collectors have no equivalent here
// (there is no admin dashboard), so they are not carried forward.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pollux_queue_depth",
			Help: "Number of credentials currently queued, by provider and tag",
		},
		[]string{"provider", "tag"},
	)

	CooldownHeapSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pollux_cooldown_heap_size",
			Help: "Number of credentials currently cooling down, by provider",
		},
		[]string{"provider"},
	)

	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pollux_refresh_duration_seconds",
			Help:    "Token refresh latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "outcome"},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollux_upstream_requests_total",
			Help: "Total upstream requests by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pollux_upstream_request_duration_seconds",
			Help:    "Upstream request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollux_http_requests_total",
			Help: "Total HTTP requests handled by the gateway",
		},
		[]string{"method", "path", "status_class"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pollux_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "path", "status_class"},
	)
)
