package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/valdex/internal/domain"
	"github.com/kailas-cloud/valdex/internal/metrics"
	"github.com/kailas-cloud/valdex/internal/repository/dataset"
	"github.com/kailas-cloud/valdex/internal/vectorindex"
)

// DefaultBatchSize is the number of records embedded and upserted together.
const DefaultBatchSize = 1000

// Status is the outcome of indexing one dataset.
type Status string

// Dataset outcomes.
const (
	StatusIndexed Status = "indexed"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Report describes what happened to one dataset.
type Report struct {
	Collection string
	Read       int
	Indexed    int
	Batches    int
	Status     Status
	Reason     string
	Duration   time.Duration
}

// Service turns datasets into collections. Every run replaces a collection wholesale.
type Service struct {
	src       Source
	embed     domain.Embedder
	index     Index
	dimension int
	batchSize int
	logger    *zap.Logger
}

// New creates an indexer. dimension must match the embedder's output.
func New(src Source, embed domain.Embedder, index Index, dimension int, logger *zap.Logger) *Service {
	return &Service{
		src:       src,
		embed:     embed,
		index:     index,
		dimension: dimension,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
}

// WithBatchSize configures the embed/upsert batch size.
func (s *Service) WithBatchSize(size int) *Service {
	if size > 0 {
		s.batchSize = size
	}
	return s
}

// Run indexes every dataset the source lists. Unusable datasets are skipped;
// a failed dataset does not stop the others. The returned error joins all failures.
func (s *Service) Run(ctx context.Context) ([]Report, error) {
	entries, err := s.src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}

	reports := make([]Report, 0, len(entries))
	var errs []error
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return reports, fmt.Errorf("indexing interrupted: %w", err)
		}
		rep, err := s.IndexEntry(ctx, e)
		reports = append(reports, rep)
		if err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.Info("Indexing run finished",
		zap.Int("datasets", len(entries)),
		zap.Int("failed", len(errs)),
	)
	return reports, errors.Join(errs...)
}

// IndexEntry loads and indexes one dataset. A dataset that cannot be loaded is skipped, not failed.
func (s *Service) IndexEntry(ctx context.Context, e dataset.Entry) (Report, error) {
	start := time.Now()

	ds, err := s.src.Load(ctx, e)
	if err != nil {
		metrics.IndexerDatasetsTotal.WithLabelValues(string(StatusSkipped)).Inc()
		s.logger.Warn("Skipping dataset",
			zap.String("collection", e.Name),
			zap.String("path", e.Path),
			zap.Error(err),
		)
		return Report{
			Collection: e.Name,
			Status:     StatusSkipped,
			Reason:     err.Error(),
			Duration:   time.Since(start),
		}, nil
	}

	return s.IndexDataset(ctx, ds)
}

// IndexDataset recreates the dataset's collection and fills it in batches.
// Record ids run 1..n in text order regardless of batch size.
func (s *Service) IndexDataset(ctx context.Context, ds dataset.Dataset) (Report, error) {
	start := time.Now()
	rep := Report{Collection: ds.Name, Read: ds.Read}

	fail := func(err error) (Report, error) {
		rep.Status = StatusFailed
		rep.Reason = err.Error()
		rep.Duration = time.Since(start)
		metrics.IndexerDatasetsTotal.WithLabelValues(string(StatusFailed)).Inc()
		s.logger.Error("Dataset indexing failed",
			zap.String("collection", ds.Name),
			zap.Int("indexed", rep.Indexed),
			zap.Error(err),
		)
		return rep, fmt.Errorf("index %q: %w", ds.Name, err)
	}

	if s.dimension <= 0 {
		return fail(errors.New("embedding dimension is not set"))
	}

	err := s.index.CreateOrReplace(ctx, vectorindex.CollectionSpec{
		Name:      ds.Name,
		Dimension: s.dimension,
		Distance:  vectorindex.DistanceCosine,
	})
	if err != nil {
		return fail(fmt.Errorf("recreate collection: %w", err))
	}

	for offset := 0; offset < len(ds.Texts); offset += s.batchSize {
		end := min(offset+s.batchSize, len(ds.Texts))
		if err := s.indexBatch(ctx, ds.Name, ds.Texts[offset:end], offset); err != nil {
			return fail(fmt.Errorf("batch %d: %w", rep.Batches+1, err))
		}
		rep.Batches++
		rep.Indexed += end - offset

		s.logger.Debug("Uploaded batch",
			zap.String("collection", ds.Name),
			zap.Int("batch", rep.Batches),
			zap.Int("size", end-offset),
		)
	}

	rep.Status = StatusIndexed
	rep.Duration = time.Since(start)

	metrics.IndexerDatasetsTotal.WithLabelValues(string(StatusIndexed)).Inc()
	metrics.IndexerRecordsTotal.WithLabelValues(ds.Name, "indexed").Add(float64(rep.Indexed))
	if dropped := ds.Read - rep.Indexed; dropped > 0 {
		metrics.IndexerRecordsTotal.WithLabelValues(ds.Name, "dropped").Add(float64(dropped))
	}

	s.logger.Info("Dataset indexed",
		zap.String("collection", ds.Name),
		zap.Int("read", rep.Read),
		zap.Int("indexed", rep.Indexed),
		zap.Int("batches", rep.Batches),
		zap.Duration("duration", rep.Duration),
	)
	return rep, nil
}

func (s *Service) indexBatch(ctx context.Context, collection string, texts []string, offset int) error {
	res, err := domain.EmbedAll(ctx, s.embed, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return fmt.Errorf("embed: sent %d, got %d: %w", len(texts), len(res.Embeddings), domain.ErrEmbeddingProviderError)
	}

	records := make([]vectorindex.Record, len(texts))
	for j, text := range texts {
		records[j] = vectorindex.Record{
			ID:     uint64(offset + j + 1),
			Vector: res.Embeddings[j],
			Text:   text,
		}
	}

	if err := s.index.Upsert(ctx, collection, records); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}
