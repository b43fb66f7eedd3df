package chi

import (
	"context"

	"github.com/kailas-cloud/valdex/internal/domain"
	healthuc "github.com/kailas-cloud/valdex/internal/usecase/health"
)

// QueryAnswerer runs the validation pipeline.
type QueryAnswerer interface {
	Answer(ctx context.Context, query string) (domain.Answer, error)
}

// CollectionLister reports indexed collections and their sizes.
type CollectionLister interface {
	ListCollections(ctx context.Context) ([]string, error)
	Count(ctx context.Context, collection string) (uint64, error)
}

// HealthChecker aggregates dependency health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
