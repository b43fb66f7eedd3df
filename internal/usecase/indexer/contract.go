package indexer

import (
	"context"

	"github.com/kailas-cloud/valdex/internal/repository/dataset"
	"github.com/kailas-cloud/valdex/internal/vectorindex"
)

// Source lists and loads raw datasets.
type Source interface {
	List(ctx context.Context) ([]dataset.Entry, error)
	Load(ctx context.Context, e dataset.Entry) (dataset.Dataset, error)
}

// Index replaces collections and writes records.
type Index interface {
	CreateOrReplace(ctx context.Context, spec vectorindex.CollectionSpec) error
	Upsert(ctx context.Context, collection string, records []vectorindex.Record) error
}
