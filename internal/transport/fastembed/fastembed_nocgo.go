//go:build !cgo

package fastembed

import (
	"context"
	"errors"

	"github.com/kailas-cloud/valdex/internal/domain"
)

// ErrNotAvailable is returned when the binary was built without cgo.
var ErrNotAvailable = errors.New("fastembed: not available (binary built without cgo, use the openai provider instead)")

// Embedder is a stub for builds without cgo.
type Embedder struct{}

// New always fails without cgo.
func New(Config) (*Embedder, error) {
	return nil, ErrNotAvailable
}

// Embed always fails without cgo.
func (e *Embedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, ErrNotAvailable
}

// BatchEmbed always fails without cgo.
func (e *Embedder) BatchEmbed(context.Context, []string) (domain.BatchEmbeddingResult, error) {
	return domain.BatchEmbeddingResult{}, ErrNotAvailable
}

// Dimension returns 0 without cgo.
func (e *Embedder) Dimension() int { return 0 }

// Close is a no-op without cgo.
func (e *Embedder) Close() error { return nil }
