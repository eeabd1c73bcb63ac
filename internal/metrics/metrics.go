// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PresenceToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendo_presence_toggles_total",
			Help: "Presence toggles by outcome",
		},
		[]string{"result"},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attendo_gateway_request_duration_seconds",
			Help:    "Gateway call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "table", "outcome"},
	)

	AuthEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendo_auth_events_total",
			Help: "Auth state changes received",
		},
		[]string{"kind"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
