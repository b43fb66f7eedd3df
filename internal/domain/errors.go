package domain

import "errors"

var (
	// ErrInvalidQuery signals an empty or malformed query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrLLMUnavailable signals that the language model could not be reached or timed out.
	ErrLLMUnavailable = errors.New("language model unavailable")
	// ErrIndexUnavailable signals that the vector index could not serve a request-level operation.
	ErrIndexUnavailable = errors.New("vector index unavailable")
)
