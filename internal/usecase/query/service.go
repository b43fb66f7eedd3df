package query

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/valdex/internal/domain"
)

// Service runs the retrieve, validate, suggest pipeline for one query.
type Service struct {
	retriever Retriever
	validator Validator
	suggester Suggester
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a query service.
func New(r Retriever, v Validator, s Suggester, logger *zap.Logger) *Service {
	return &Service{retriever: r, validator: v, suggester: s, logger: logger, now: time.Now}
}

// Answer validates a query against the indexed datasets.
// ProcessingTimeSeconds covers the validator call only.
func (s *Service) Answer(ctx context.Context, query string) (domain.Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Answer{}, fmt.Errorf("%w: query is empty", domain.ErrInvalidQuery)
	}

	retrieval, err := s.retriever.Retrieve(ctx, query)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("retrieve: %w", err)
	}
	if retrieval.Result == nil {
		retrieval.Result = domain.RetrievalResult{}
	}

	start := s.now()
	validated, err := s.validator.Validate(ctx, query, retrieval.Result)
	elapsed := s.now().Sub(start)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("validate: %w", err)
	}
	if validated.Filters == nil {
		validated.Filters = domain.FilterValues{}
	}

	suggestions := s.suggester.Suggest(ctx, retrieval.Vector, retrieval.Result, validated.Filters)
	if suggestions == nil {
		suggestions = domain.Suggestions{}
	}

	s.logger.Debug("Query answered",
		zap.String("query", query),
		zap.Int("collections", len(retrieval.Result)),
		zap.Int("validated", len(validated.Filters)),
		zap.Int("suggested", len(suggestions)),
		zap.String("intent", validated.Intent),
		zap.Duration("validation", elapsed),
	)

	return domain.Answer{
		Query:                 query,
		Retrieval:             retrieval.Result,
		Validated:             validated,
		Suggestions:           suggestions,
		ProcessingTimeSeconds: roundSeconds(elapsed),
		Mode:                  domain.ModeLive,
	}, nil
}

// roundSeconds rounds to two decimals.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
