package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search pipeline stages.
const (
	StageNormalize = "normalize"
	StageEncode    = "encode"
	StageANN       = "ann"
	StageRank      = "rank"
)

// Search Prometheus metrics.
var (
	SearchStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search pipeline stage duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"stage"},
	)

	ANNCandidatesExamined = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ann_candidates_examined",
			Help:      "Leaf entries examined per ANN query",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
		},
	)

	SearchResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_queries_total",
			Help:      "Search queries by outcome",
		},
		[]string{"outcome"}, // "ok" / "empty" / "error"
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchStageDuration)
	prometheus.MustRegister(ANNCandidatesExamined)
	prometheus.MustRegister(SearchResultsTotal)
	searchMetricsRegistered = true
}
