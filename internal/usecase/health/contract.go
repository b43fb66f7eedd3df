package health

import "context"

// Checker verifies one dependency (vector index, embedding provider, language model).
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CachePinger checks embedding cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}
