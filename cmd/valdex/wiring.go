package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/valdex/internal/config"
	dbRedis "github.com/kailas-cloud/valdex/internal/db/redis"
	"github.com/kailas-cloud/valdex/internal/domain"
	"github.com/kailas-cloud/valdex/internal/metrics"
	"github.com/kailas-cloud/valdex/internal/repository/embcache"
	"github.com/kailas-cloud/valdex/internal/transport/fastembed"
	openaiTransport "github.com/kailas-cloud/valdex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/valdex/internal/usecase/embedding"
	"github.com/kailas-cloud/valdex/internal/vectorindex"
	"github.com/kailas-cloud/valdex/internal/vectorindex/memory"
	"github.com/kailas-cloud/valdex/internal/vectorindex/qdrant"
)

// deps are the shared singletons built once per process and injected into services.
type deps struct {
	index     vectorindex.Index
	store     *dbRedis.Store
	base      domain.Embedder
	docEmbed  domain.Embedder
	queryEmb  domain.Embedder
	dimension int
	closers   []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// buildDeps wires the vector index, optional embedding cache and the embedder chain.
func buildDeps(ctx context.Context, cfg config.Config, logger *zap.Logger) (*deps, error) {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	d := &deps{}

	index, err := buildIndex(cfg.VectorIndex, logger)
	if err != nil {
		return nil, err
	}
	d.index = index
	d.closers = append(d.closers, func() { _ = index.Close() })

	if cfg.Cache.Enabled {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("create cache store: %w", err)
		}
		d.closers = append(d.closers, store.Close)
		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			d.Close()
			return nil, fmt.Errorf("cache not ready: %w", err)
		}
		d.store = store
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	base, dim, closeBase, err := buildBaseEmbedder(cfg, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.base = base
	if closeBase != nil {
		d.closers = append(d.closers, closeBase)
	}

	vec := cfg.Embedding.Vectorizer
	d.docEmbed = buildEmbedder(cfg, base, vec.DocumentInstruction, d.store, logger)
	d.queryEmb = buildEmbedder(cfg, base, vec.QueryInstruction, d.store, logger)

	if dim == 0 {
		dim = vec.Dimensions
	}
	if dim == 0 {
		dim, err = embeddinguc.DetectDimension(ctx, d.docEmbed)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("detect embedding dimension: %w", err)
		}
	}
	d.dimension = dim

	logger.Info("Embedders created",
		zap.String("provider", vec.Provider),
		zap.String("model", vec.Model),
		zap.Int("dimensions", dim),
		zap.Bool("cache", d.store != nil),
	)
	return d, nil
}

func buildIndex(cfg config.VectorIndexConfig, logger *zap.Logger) (vectorindex.Index, error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn("Using in-memory vector index, data is lost on exit")
		return memory.New(cfg.UpsertBatchSize), nil
	default:
		idx, err := qdrant.New(qdrant.Config{
			Host:            cfg.Host,
			Port:            cfg.Port,
			APIKey:          cfg.APIKey,
			UseTLS:          cfg.UseTLS,
			MaxMessageSize:  cfg.MaxMessageMB << 20,
			RequestTimeout:  time.Duration(cfg.RequestTimeoutSec) * time.Second,
			UpsertBatchSize: cfg.UpsertBatchSize,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect qdrant: %w", err)
		}
		logger.Info("Connected to qdrant", zap.String("host", cfg.Host), zap.Int("port", cfg.Port))
		return idx, nil
	}
}

// buildBaseEmbedder creates the provider. dim is non-zero when the provider knows it up front.
func buildBaseEmbedder(cfg config.Config, logger *zap.Logger) (domain.Embedder, int, func(), error) {
	vec := cfg.Embedding.Vectorizer
	prov := cfg.Provider()

	switch vec.Provider {
	case "fastembed":
		fe, err := fastembed.New(fastembed.Config{
			Model:     vec.Model,
			CacheDir:  prov.CacheDir,
			MaxLength: prov.MaxLength,
			BatchSize: vec.MaxBatch,
		})
		if err != nil {
			return nil, 0, nil, fmt.Errorf("create fastembed embedder: %w", err)
		}
		return fe, fe.Dimension(), func() { _ = fe.Close() }, nil
	default:
		return openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     prov.APIKey,
			BaseURL:    prov.BaseURL,
			Model:      vec.Model,
			Dimensions: vec.Dimensions,
			Provider:   vec.Provider,
			Logger:     logger,
		}), 0, nil, nil
	}
}

// buildEmbedder assembles the decorator chain: provider -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	cfg config.Config,
	base domain.Embedder,
	instruction string,
	store *dbRedis.Store,
	logger *zap.Logger,
) domain.Embedder {
	vec := cfg.Embedding.Vectorizer

	embedder := base
	if store != nil {
		ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
		embedder = embcache.New(base, store, vec.Provider+"/"+vec.Model, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, vec.Provider, vec.Model, vec.MaxBatch, logger)

	// Instruction prefix is outermost so the cache key includes it
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

// embeddingHealthChecker wraps domain.Embedder to implement health.Checker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
