// Package memory provides an in-process vector index using brute-force cosine search.
// Suitable for tests and dry runs when no Qdrant server is available.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kailas-cloud/valdex/internal/domain"
	"github.com/kailas-cloud/valdex/internal/vectorindex"
)

var _ vectorindex.Index = (*Index)(nil)

type collection struct {
	dimension int
	ids       []uint64
	vectors   [][]float32
	texts     []string
	pos       map[uint64]int
}

// Index keeps every collection in memory.
type Index struct {
	mu          sync.RWMutex
	collections map[string]*collection
	batchSize   int
	upsertCalls int
}

// New creates an empty in-memory index. batchSize mirrors the Qdrant adapter's upsert batching.
func New(batchSize int) *Index {
	if batchSize <= 0 {
		batchSize = vectorindex.DefaultUpsertBatchSize
	}
	return &Index{
		collections: make(map[string]*collection),
		batchSize:   batchSize,
	}
}

// CreateOrReplace drops the collection if present and creates it empty.
func (m *Index) CreateOrReplace(_ context.Context, spec vectorindex.CollectionSpec) error {
	if err := vectorindex.ValidateCollectionName(spec.Name); err != nil {
		return err //nolint:wrapcheck // sentinel already carries context
	}
	if spec.Dimension <= 0 {
		return fmt.Errorf("create collection %q: dimension must be positive", spec.Name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[spec.Name] = &collection{
		dimension: spec.Dimension,
		pos:       make(map[uint64]int),
	}
	return nil
}

// Upsert stores records, replacing any with the same id.
func (m *Index) Upsert(_ context.Context, name string, records []vectorindex.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[name]
	if !ok {
		return fmt.Errorf("upsert %q: %w", name, vectorindex.ErrCollectionNotFound)
	}
	for _, batch := range vectorindex.Batches(records, m.batchSize) {
		m.upsertCalls++
		for _, r := range batch {
			if len(r.Vector) != c.dimension {
				return fmt.Errorf("upsert %q id %d: %w: got %d, expected %d",
					name, r.ID, vectorindex.ErrDimensionMismatch, len(r.Vector), c.dimension)
			}
			vec := make([]float32, len(r.Vector))
			copy(vec, r.Vector)
			if i, exists := c.pos[r.ID]; exists {
				c.vectors[i] = vec
				c.texts[i] = r.Text
				continue
			}
			c.pos[r.ID] = len(c.ids)
			c.ids = append(c.ids, r.ID)
			c.vectors = append(c.vectors, vec)
			c.texts = append(c.texts, r.Text)
		}
	}
	return nil
}

// Search returns the top-k records by inner product (stored vectors are assumed normalized).
func (m *Index) Search(
	_ context.Context, name string, vector []float32, topK int, opts vectorindex.SearchOptions,
) ([]vectorindex.Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("search %q: %w", name, vectorindex.ErrCollectionNotFound)
	}
	if len(vector) != c.dimension {
		return nil, fmt.Errorf("search %q: %w: got %d, expected %d",
			name, vectorindex.ErrDimensionMismatch, len(vector), c.dimension)
	}
	if topK <= 0 {
		return []vectorindex.Hit{}, nil
	}

	hits := make([]vectorindex.Hit, 0, len(c.ids))
	for i, vec := range c.vectors {
		score := float32(domain.Dot(vector, vec))
		if opts.ScoreThreshold != 0 && score < opts.ScoreThreshold {
			continue
		}
		hits = append(hits, vectorindex.Hit{ID: c.ids[i], Score: score, Text: c.texts[i]})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// ListCollections returns collection names in lexical order.
func (m *Index) ListCollections(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Count returns the number of records in a collection.
func (m *Index) Count(_ context.Context, name string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return 0, fmt.Errorf("count %q: %w", name, vectorindex.ErrCollectionNotFound)
	}
	return uint64(len(c.ids)), nil
}

// Payloads returns every record text ordered by id.
func (m *Index) Payloads(_ context.Context, name string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("payloads %q: %w", name, vectorindex.ErrCollectionNotFound)
	}
	order := make([]int, len(c.ids))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return c.ids[order[a]] < c.ids[order[b]] })
	texts := make([]string, len(order))
	for i, idx := range order {
		texts[i] = c.texts[idx]
	}
	return texts, nil
}

// UpsertCalls reports how many upsert batches have been applied.
func (m *Index) UpsertCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.upsertCalls
}

// HealthCheck always succeeds.
func (m *Index) HealthCheck(context.Context) error { return nil }

// Close is a no-op.
func (m *Index) Close() error { return nil }
