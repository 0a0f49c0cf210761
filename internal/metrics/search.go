package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and backend Prometheus metrics.
var (
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kfsearch",
			Name:      "backend_requests_total",
			Help:      "Total number of requests to the remote search API",
		},
		[]string{"endpoint", "status"}, // status: ok / http_<code> / error
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kfsearch",
			Name:      "backend_request_duration_seconds",
			Help:      "Remote search API request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"endpoint"},
	)

	SearchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kfsearch",
			Name:      "search_cache_total",
			Help:      "Search result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	SearchFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kfsearch",
			Name:      "search_fallback_total",
			Help:      "Searches answered with placeholder results because the backend failed",
		},
		[]string{"kind"},
	)

	SearchStaleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kfsearch",
			Name:      "search_stale_total",
			Help:      "Search responses discarded because a newer search was issued",
		},
		[]string{"mode"},
	)

	SelectionMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kfsearch",
			Name:      "selection_mutations_total",
			Help:      "Selection list mutations by operation and outcome",
		},
		[]string{"op", "outcome"},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers the search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(BackendRequestsTotal)
	prometheus.MustRegister(BackendRequestDuration)
	prometheus.MustRegister(SearchCacheTotal)
	prometheus.MustRegister(SearchFallbackTotal)
	prometheus.MustRegister(SearchStaleTotal)
	prometheus.MustRegister(SelectionMutationsTotal)
	searchMetricsRegistered = true
}
