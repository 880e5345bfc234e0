package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "detail_cache_hits_total",
			Help: "Total number of detail cache lookups that found an entry",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "detail_cache_misses_total",
			Help: "Total number of detail cache lookups that found nothing",
		},
	)

	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "detail_cache_entries",
			Help: "Number of detail records currently cached",
		},
	)

	PrefetchFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefetch_fetches_total",
			Help: "Total number of background detail fetches by outcome",
		},
		[]string{"outcome"},
	)

	PrefetchInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "prefetch_in_flight",
			Help: "Number of prefetch passes currently running",
		},
	)

	PrefetchPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "prefetch_pass_duration_seconds",
			Help: "Duration of a full prefetch fan-out pass in seconds",
		},
	)

	AlertRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "alert_recompute_duration_seconds",
			Help: "Duration of an alert tally recomputation in seconds",
		},
	)

	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Total number of backend API requests by route and status class",
		},
		[]string{"route", "status"},
	)

	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mutations_total",
			Help: "Total number of mutations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)
