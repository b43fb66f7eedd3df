package validation

import (
	"context"

	"github.com/kailas-cloud/valdex/internal/domain"
)

// Completer sends the prompt to the language model.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error)
}
