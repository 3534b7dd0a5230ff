package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheRequests counts served requests by endpoint and cache status
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpcshield_cache_requests_total",
			Help: "Total requests served, labelled by endpoint and cache status",
		},
		[]string{"endpoint", "status"}, // status: HIT|MISS|COALESCE|STALE|BYPASS
	)

	// UpstreamErrors counts retryable upstream failures by endpoint
	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpcshield_upstream_errors_total",
			Help: "Total retryable upstream failures",
		},
		[]string{"endpoint"},
	)

	// PassthroughConnections counts WebSocket passthrough connections
	PassthroughConnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpcshield_passthrough_connections_total",
			Help: "Total WebSocket passthrough connections opened",
		},
		[]string{"endpoint"},
	)
)
