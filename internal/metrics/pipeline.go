package metrics

import "github.com/prometheus/client_golang/prometheus"

// Language model and query pipeline metrics.
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "valdex",
			Name:      "llm_requests_total",
			Help:      "Total number of language model completion requests",
		},
		[]string{"model", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "valdex",
			Name:      "llm_request_duration_seconds",
			Help:      "Language model completion duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"model"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "valdex",
			Name:      "llm_tokens_total",
			Help:      "Total language model tokens consumed",
		},
		[]string{"model", "type"},
	)

	// ValidationParseTotal counts which recovery stage produced the validated filters.
	ValidationParseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "valdex",
			Name:      "validation_parse_total",
			Help:      "Validator outputs by parse stage (direct, extracted, fallback, empty)",
		},
		[]string{"stage"},
	)

	RetrievalCollectionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "valdex",
			Name:      "retrieval_collection_errors_total",
			Help:      "Per-collection search failures dropped from a retrieval",
		},
		[]string{"collection"},
	)

	IndexerRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "valdex",
			Name:      "indexer_records_total",
			Help:      "Records processed by the indexer",
		},
		[]string{"collection", "result"}, // "indexed" / "dropped"
	)

	IndexerDatasetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "valdex",
			Name:      "indexer_datasets_total",
			Help:      "Datasets processed by the indexer",
		},
		[]string{"status"}, // "indexed" / "skipped" / "failed"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers language model, retrieval and indexer metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(LLMTokensTotal)
	prometheus.MustRegister(ValidationParseTotal)
	prometheus.MustRegister(RetrievalCollectionErrorsTotal)
	prometheus.MustRegister(IndexerRecordsTotal)
	prometheus.MustRegister(IndexerDatasetsTotal)
	pipelineMetricsRegistered = true
}
