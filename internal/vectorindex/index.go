// Package vectorindex defines the vector store contract shared by the indexer,
// the retriever and the health service.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultUpsertBatchSize caps the number of points sent in one upsert call.
const DefaultUpsertBatchSize = 1000

// PayloadTextKey is the payload field holding a record's flattened text.
const PayloadTextKey = "text"

// maxCollectionNameLen matches the Qdrant limit.
const maxCollectionNameLen = 255

var (
	// ErrCollectionNotFound is returned when searching a collection that does not exist.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrInvalidCollectionName is returned for names the store cannot hold.
	ErrInvalidCollectionName = errors.New("invalid collection name")
	// ErrDimensionMismatch is returned when a vector does not fit the collection.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Distance is the similarity metric of a collection.
type Distance string

// DistanceCosine is the only metric valdex creates collections with.
const DistanceCosine Distance = "cosine"

// CollectionSpec describes a collection to (re)create.
type CollectionSpec struct {
	Name      string
	Dimension int
	Distance  Distance
}

// Record is one indexed point: synthetic id, vector and its source text.
type Record struct {
	ID     uint64
	Vector []float32
	Text   string
}

// Hit is one search result.
type Hit struct {
	ID    uint64
	Score float32
	Text  string
}

// SearchOptions narrows a search beyond top-k.
type SearchOptions struct {
	// ScoreThreshold drops hits scoring below it. Zero disables the threshold.
	ScoreThreshold float32
}

// Index is the vector store contract.
type Index interface {
	CreateOrReplace(ctx context.Context, spec CollectionSpec) error
	Upsert(ctx context.Context, collection string, records []Record) error
	Search(ctx context.Context, collection string, vector []float32, topK int, opts SearchOptions) ([]Hit, error)
	ListCollections(ctx context.Context) ([]string, error)
	Count(ctx context.Context, collection string) (uint64, error)
	Payloads(ctx context.Context, collection string) ([]string, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// ValidateCollectionName rejects names that cannot be used as a collection.
func ValidateCollectionName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidCollectionName)
	}
	if len(name) > maxCollectionNameLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidCollectionName, maxCollectionNameLen)
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%w: %q contains a path separator or NUL", ErrInvalidCollectionName, name)
	}
	return nil
}

// Batches splits records into consecutive slices of at most size elements.
// A non-positive size yields a single batch.
func Batches(records []Record, size int) [][]Record {
	if len(records) == 0 {
		return nil
	}
	if size <= 0 || size >= len(records) {
		return [][]Record{records}
	}
	out := make([][]Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		out = append(out, records[start:end])
	}
	return out
}
