package domain

import "context"

// CompletionOptions is the sampling configuration for a single completion.
type CompletionOptions struct {
	Temperature float32
	MaxTokens   int
}

// Completer sends one text prompt to a language model and returns its text completion.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}
