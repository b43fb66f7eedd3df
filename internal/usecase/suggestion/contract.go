package suggestion

import (
	"context"

	"github.com/kailas-cloud/valdex/internal/domain"
)

// Embedder vectorizes candidate values.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
