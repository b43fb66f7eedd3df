//go:build cgo

package fastembed

import (
	"context"
	"fmt"
	"sync"

	fe "github.com/anush008/fastembed-go"

	"github.com/kailas-cloud/valdex/internal/domain"
)

// Embedder runs a local ONNX model. Inference is serialized: the runtime session is not safe
// for concurrent use.
type Embedder struct {
	mu        sync.Mutex
	model     *fe.FlagEmbedding
	name      string
	dimension int
	batchSize int
}

// New loads (and on first use downloads) the model.
func New(cfg Config) (*Embedder, error) {
	cfg.applyDefaults()

	id, ok := canonical[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, cfg.Model)
	}

	showProgress := false
	model, err := fe.NewFlagEmbedding(&fe.InitOptions{
		Model:                fe.EmbeddingModel(id),
		CacheDir:             cfg.CacheDir,
		MaxLength:            cfg.MaxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("init fastembed %q: %w", cfg.Model, err)
	}

	return &Embedder{
		model:     model,
		name:      cfg.Model,
		dimension: dimensions[id],
		batchSize: cfg.BatchSize,
	}, nil
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: res.Embeddings[0]}, nil
}

// BatchEmbed implements domain.BatchEmbedder. Local inference reports no token usage.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	if err := ctx.Err(); err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("fastembed: %w", err)
	}

	e.mu.Lock()
	vectors, err := e.model.Embed(texts, e.batchSize)
	e.mu.Unlock()
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("fastembed %s: %v: %w", e.name, err, domain.ErrEmbeddingProviderError)
	}
	if len(vectors) != len(texts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("fastembed %s: sent %d, got %d: %w",
			e.name, len(texts), len(vectors), domain.ErrEmbeddingProviderError)
	}

	for i := range vectors {
		domain.Normalize(vectors[i])
	}
	return domain.BatchEmbeddingResult{Embeddings: vectors}, nil
}

// Dimension returns the model's embedding size.
func (e *Embedder) Dimension() int { return e.dimension }

// Close releases the ONNX session.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	if err := e.model.Destroy(); err != nil {
		return fmt.Errorf("destroy fastembed: %w", err)
	}
	e.model = nil
	return nil
}
