package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors. One instance is
// created by the composition root and injected; tests pass their own
// registry to avoid collisions.
type Metrics struct {
	StreamEvents     *prometheus.CounterVec
	StreamMessages   *prometheus.CounterVec
	ProviderRequests *prometheus.CounterVec
	FallbackDepth    *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
}

// New registers and returns the service collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StreamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketdata",
			Name:      "stream_events_total",
			Help:      "Stream connection lifecycle events.",
		}, []string{"event"}),
		StreamMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketdata",
			Name:      "stream_messages_total",
			Help:      "Inbound stream messages by type.",
		}, []string{"type"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketdata",
			Name:      "provider_requests_total",
			Help:      "Upstream provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		FallbackDepth: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marketdata",
			Name:      "fallback_depth",
			Help:      "How many tiers a fallback chain walked before success.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6},
		}, []string{"chain"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketdata",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
	}

	reg.MustRegister(
		m.StreamEvents,
		m.StreamMessages,
		m.ProviderRequests,
		m.FallbackDepth,
		m.CacheLookups,
	)
	return m
}
