package retrieval

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/valdex/internal/domain"
	"github.com/kailas-cloud/valdex/internal/metrics"
	"github.com/kailas-cloud/valdex/internal/vectorindex"
)

// Defaults.
const (
	DefaultTopK        = 5
	DefaultConcurrency = 4
)

// Config tunes the fan-out.
type Config struct {
	TopK           int
	Concurrency    int
	ScoreThreshold float32 // 0 disables the threshold
}

// Service searches every collection for the values closest to a query.
type Service struct {
	index  Index
	embed  Embedder
	cfg    Config
	logger *zap.Logger
}

// New creates a retrieval service.
func New(index Index, embed Embedder, cfg Config, logger *zap.Logger) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Service{index: index, embed: embed, cfg: cfg, logger: logger}
}

// Retrieve embeds the query once and searches all collections with it.
// A collection that fails to search is dropped from the result; so is one with no hits.
func (s *Service) Retrieve(ctx context.Context, query string) (domain.Retrieval, error) {
	emb, err := s.embed.Embed(ctx, query)
	if err != nil {
		return domain.Retrieval{}, fmt.Errorf("vectorize query: %w", err)
	}

	collections, err := s.index.ListCollections(ctx)
	if err != nil {
		return domain.Retrieval{}, fmt.Errorf("list collections: %w: %w", domain.ErrIndexUnavailable, err)
	}

	result := make(domain.RetrievalResult, len(collections))
	var mu sync.Mutex

	// Ошибки отдельных коллекций не отменяют остальные, поэтому без WithContext.
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, name := range collections {
		g.Go(func() error {
			texts, ok := s.searchOne(ctx, name, emb.Embedding)
			if !ok || len(texts) == 0 {
				return nil
			}
			mu.Lock()
			result[name] = texts
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Debug("Retrieval finished",
		zap.Int("collections", len(collections)),
		zap.Int("matched", len(result)),
	)
	return domain.Retrieval{Vector: emb.Embedding, Result: result}, nil
}

func (s *Service) searchOne(ctx context.Context, name string, vector []float32) ([]string, bool) {
	hits, err := s.index.Search(ctx, name, vector, s.cfg.TopK, vectorindex.SearchOptions{
		ScoreThreshold: s.cfg.ScoreThreshold,
	})
	if err != nil {
		metrics.RetrievalCollectionErrorsTotal.WithLabelValues(name).Inc()
		s.logger.Warn("Collection search failed, skipping",
			zap.String("collection", name),
			zap.Error(err),
		)
		return nil, false
	}

	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Text)
	}
	return texts, true
}
