package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterPipelineMetrics_Idempotent(t *testing.T) {
	RegisterPipelineMetrics()
	RegisterPipelineMetrics()

	ValidationParseTotal.WithLabelValues("direct").Inc()
	if v := testutil.ToFloat64(ValidationParseTotal.WithLabelValues("direct")); v < 1 {
		t.Errorf("expected validation_parse_total{stage=direct} >= 1, got %f", v)
	}
}

func TestRegisterEmbeddingMetrics_Idempotent(t *testing.T) {
	RegisterEmbeddingMetrics()
	RegisterEmbeddingMetrics()

	EmbeddingCacheTotal.WithLabelValues("hit").Inc()
	if v := testutil.ToFloat64(EmbeddingCacheTotal.WithLabelValues("hit")); v < 1 {
		t.Errorf("expected embedding_cache_total{result=hit} >= 1, got %f", v)
	}
}
