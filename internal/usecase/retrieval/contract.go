package retrieval

import (
	"context"

	"github.com/kailas-cloud/valdex/internal/domain"
	"github.com/kailas-cloud/valdex/internal/vectorindex"
)

// Index lists and searches collections.
type Index interface {
	ListCollections(ctx context.Context) ([]string, error)
	Search(
		ctx context.Context, collection string, vector []float32, topK int, opts vectorindex.SearchOptions,
	) ([]vectorindex.Hit, error)
}

// Embedder vectorizes the query.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
