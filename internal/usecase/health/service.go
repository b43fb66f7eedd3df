package health

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used as Report.Checks keys.
const (
	ComponentIndex     = "vector_index"
	ComponentEmbedding = "embedding"
	ComponentLLM       = "llm"
	ComponentCache     = "cache"
)

const defaultCheckTimeout = 5 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	index     Checker
	embedding Checker
	llm       Checker
	cache     CachePinger
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a Service. embedding, llm and cache can be nil.
func New(index, embedding, llm Checker, cache CachePinger, logger *zap.Logger) *Service {
	return &Service{
		index:     index,
		embedding: embedding,
		llm:       llm,
		cache:     cache,
		timeout:   defaultCheckTimeout,
		logger:    logger,
	}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	s.run(ctx, checks, ComponentIndex, s.index.HealthCheck)
	if s.embedding != nil {
		s.run(ctx, checks, ComponentEmbedding, s.embedding.HealthCheck)
	}
	if s.llm != nil {
		s.run(ctx, checks, ComponentLLM, s.llm.HealthCheck)
	}
	if s.cache != nil {
		s.run(ctx, checks, ComponentCache, s.cache.Ping)
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) run(ctx context.Context, checks map[string]CheckResult, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		s.logger.Warn("Health check failed", zap.String("component", name), zap.Error(err))
		checks[name] = CheckError
		return
	}
	checks[name] = CheckOK
}
