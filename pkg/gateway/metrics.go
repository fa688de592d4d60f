package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glossa_explain_requests_total",
		Help: "Explain requests by outcome status",
	}, []string{"status"})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glossa_cache_hits_total",
		Help: "Explanations served from the response cache",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glossa_cache_misses_total",
		Help: "Cache misses that required a provider call",
	})

	providerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "glossa_provider_latency_seconds",
		Help:    "Outbound provider call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	tokensUsedHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "glossa_tokens_used",
		Help:    "Token usage per successful explanation",
		Buckets: []float64{10, 50, 100, 250, 500, 1_000, 2_000, 4_000},
	})

	breakerTrips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glossa_breaker_trips_total",
		Help: "Quota circuit-breaker trips",
	})
)
