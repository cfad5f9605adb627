// Package metrics exposes Prometheus instrumentation for the token layer and
// the stream relay. Everything else in the gateway is a thin forward and gets
// enough observability from request logs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokenRequests counts calls to the downstream token endpoint by grant
	// type and outcome ("ok", "error").
	TokenRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentgate",
		Subsystem: "exchange",
		Name:      "token_requests_total",
		Help:      "Token endpoint requests by grant type and outcome.",
	}, []string{"grant_type", "outcome"})

	// CacheLookups counts token cache reads. A read inside the expiry safety
	// buffer counts as "miss".
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentgate",
		Subsystem: "exchange",
		Name:      "cache_lookups_total",
		Help:      "Token cache lookups by result (hit, miss).",
	}, []string{"result"})

	// ValidationFailures counts SSO token validation failures by kind.
	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentgate",
		Subsystem: "auth",
		Name:      "validation_failures_total",
		Help:      "SSO token validation failures by error kind.",
	}, []string{"kind"})

	// ActiveStreams tracks currently open SSE relays.
	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentgate",
		Subsystem: "proxy",
		Name:      "active_streams",
		Help:      "Currently open upstream event streams.",
	})

	// StreamErrors counts relays that ended with a terminal stream_error.
	StreamErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agentgate",
		Subsystem: "proxy",
		Name:      "stream_errors_total",
		Help:      "Relays terminated by an upstream error.",
	})
)
