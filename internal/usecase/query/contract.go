package query

import (
	"context"

	"github.com/kailas-cloud/valdex/internal/domain"
)

// Retriever searches all collections for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (domain.Retrieval, error)
}

// Validator selects the retrieved values that answer the query.
type Validator interface {
	Validate(ctx context.Context, query string, rr domain.RetrievalResult) (domain.ValidatedFilters, error)
}

// Suggester ranks retrieved values the validator did not select.
type Suggester interface {
	Suggest(
		ctx context.Context, queryVec []float32, rr domain.RetrievalResult, validated domain.FilterValues,
	) domain.Suggestions
}
