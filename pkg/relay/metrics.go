package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricProxiedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aura_relay_proxied_requests_total",
		Help: "HTTP requests forwarded to the model provider.",
	}, []string{"method"})

	metricBridgeSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aura_relay_bridge_sessions_total",
		Help: "WebSocket sessions bridged to the model provider.",
	})

	metricBridgeActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aura_relay_bridge_active_sessions",
		Help: "Currently open bridged WebSocket sessions.",
	})

	metricRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aura_relay_rate_limited_total",
		Help: "Requests rejected by the per-client rate limit.",
	})

	metricAggregation = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aura_relay_aggregation_requests_total",
		Help: "REST aggregation requests by endpoint and data source.",
	}, []string{"endpoint", "source"})
)
