package validation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/valdex/internal/domain"
	"github.com/kailas-cloud/valdex/internal/metrics"
)

// NoDataReasoning is returned without calling the model when retrieval found nothing.
const NoDataReasoning = "No matching data was found in any indexed collection."

// Grounding controls post-validation of model output against the retrieval result.
type Grounding string

// Grounding modes.
const (
	GroundingOff   Grounding = "off"
	GroundingStrip Grounding = "strip"
)

// Defaults.
const DefaultMaxTokens = 512

// Config tunes the model call.
type Config struct {
	Temperature float32
	MaxTokens   int
	Grounding   Grounding
}

// Service asks the language model which retrieved values answer the query.
type Service struct {
	llm    Completer
	cfg    Config
	logger *zap.Logger
}

// New creates a validation service.
func New(llm Completer, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Grounding == "" {
		cfg.Grounding = GroundingOff
	}
	return &Service{llm: llm, cfg: cfg, logger: logger}
}

// Validate returns the filters the model selected from rr.
// Malformed model output never fails; an unreachable model does (wrapping domain.ErrLLMUnavailable).
func (s *Service) Validate(
	ctx context.Context, query string, rr domain.RetrievalResult,
) (domain.ValidatedFilters, error) {
	if len(rr) == 0 {
		metrics.ValidationParseTotal.WithLabelValues(string(StageEmpty)).Inc()
		return domain.ValidatedFilters{
			Intent:    query,
			Filters:   domain.FilterValues{},
			Reasoning: NoDataReasoning,
		}, nil
	}

	prompt, err := BuildPrompt(query, rr)
	if err != nil {
		return domain.ValidatedFilters{}, err
	}

	raw, err := s.llm.Complete(ctx, prompt, domain.CompletionOptions{
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		return domain.ValidatedFilters{}, fmt.Errorf("validate filters: %w", err)
	}

	vf, stage := Parse(raw)
	metrics.ValidationParseTotal.WithLabelValues(string(stage)).Inc()
	if stage == StageFallback {
		s.logger.Warn("Model output could not be parsed",
			zap.String("reasoning", vf.Reasoning),
			zap.Int("raw_len", len(raw)),
		)
	}

	if s.cfg.Grounding == GroundingStrip {
		if dropped := Ground(vf.Filters, rr); dropped > 0 {
			s.logger.Info("Dropped ungrounded filter values", zap.Int("dropped", dropped))
		}
	}
	return vf, nil
}

// Ground removes keys absent from rr and values not listed verbatim under their key.
// Keys left without values are removed. It returns the number of dropped values.
func Ground(filters domain.FilterValues, rr domain.RetrievalResult) int {
	dropped := 0
	for key, values := range filters {
		if _, ok := rr[key]; !ok {
			dropped += len(values)
			delete(filters, key)
			continue
		}
		kept := values[:0]
		for _, v := range values {
			if rr.Has(key, v) {
				kept = append(kept, v)
				continue
			}
			dropped++
		}
		if len(kept) == 0 {
			delete(filters, key)
			continue
		}
		filters[key] = kept
	}
	return dropped
}
