// Package qdrant implements vectorindex.Index on top of the Qdrant gRPC API.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/kailas-cloud/valdex/internal/vectorindex"
)

var _ vectorindex.Index = (*Index)(nil)

const (
	defaultPort           = 6334
	defaultMaxMessageSize = 50 * 1024 * 1024
	defaultTimeout        = 30 * time.Second
	scrollPageSize        = 256
)

// Config holds connection parameters for a Qdrant server.
type Config struct {
	Host            string
	Port            int
	APIKey          string
	UseTLS          bool
	MaxMessageSize  int
	RequestTimeout  time.Duration
	UpsertBatchSize int
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultTimeout
	}
	if c.UpsertBatchSize <= 0 {
		c.UpsertBatchSize = vectorindex.DefaultUpsertBatchSize
	}
}

// pointsAPI is the subset of *qdrant.Client the adapter calls.
type pointsAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collectionName string) error
	ListCollections(ctx context.Context) ([]string, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Scroll(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	Close() error
}

// Index talks to Qdrant over gRPC.
type Index struct {
	client pointsAPI
	cfg    Config
	logger *zap.Logger
}

// New dials Qdrant. The connection is lazy; call HealthCheck to verify it.
func New(cfg Config, logger *zap.Logger) (*Index, error) {
	cfg.applyDefaults()

	qcfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	}
	if !cfg.UseTLS {
		qcfg.GrpcOptions = append(qcfg.GrpcOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return newIndex(client, cfg, logger), nil
}

func newIndex(client pointsAPI, cfg Config, logger *zap.Logger) *Index {
	cfg.applyDefaults()
	return &Index{client: client, cfg: cfg, logger: logger}
}

// CreateOrReplace drops the collection if present and creates it empty with cosine distance.
func (x *Index) CreateOrReplace(ctx context.Context, spec vectorindex.CollectionSpec) error {
	if err := vectorindex.ValidateCollectionName(spec.Name); err != nil {
		return err //nolint:wrapcheck // sentinel already carries context
	}
	if spec.Dimension <= 0 {
		return fmt.Errorf("create collection %q: dimension must be positive", spec.Name)
	}

	ctx, cancel := context.WithTimeout(ctx, x.cfg.RequestTimeout)
	defer cancel()

	exists, err := x.client.CollectionExists(ctx, spec.Name)
	if err != nil {
		return fmt.Errorf("check collection %q: %w", spec.Name, err)
	}
	if exists {
		if err := x.client.DeleteCollection(ctx, spec.Name); err != nil {
			return fmt.Errorf("delete collection %q: %w", spec.Name, err)
		}
		x.logger.Debug("Dropped existing collection", zap.String("collection", spec.Name))
	}

	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: spec.Name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(spec.Dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %q: %w", spec.Name, err)
	}
	return nil
}

// Upsert writes records in batches of at most UpsertBatchSize, waiting for each write to apply.
func (x *Index) Upsert(ctx context.Context, collection string, records []vectorindex.Record) error {
	for i, batch := range vectorindex.Batches(records, x.cfg.UpsertBatchSize) {
		points := make([]*qdrant.PointStruct, len(batch))
		for j, r := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(r.ID),
				Vectors: qdrant.NewVectors(r.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{vectorindex.PayloadTextKey: r.Text}),
			}
		}

		if err := x.upsertBatch(ctx, collection, points); err != nil {
			return fmt.Errorf("upsert %q batch %d: %w", collection, i, err)
		}
	}
	return nil
}

func (x *Index) upsertBatch(ctx context.Context, collection string, points []*qdrant.PointStruct) error {
	ctx, cancel := context.WithTimeout(ctx, x.cfg.RequestTimeout)
	defer cancel()

	_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	return mapError(err)
}

// Search returns at most topK hits by descending score.
func (x *Index) Search(
	ctx context.Context, collection string, vector []float32, topK int, opts vectorindex.SearchOptions,
) ([]vectorindex.Hit, error) {
	if topK <= 0 {
		return []vectorindex.Hit{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, x.cfg.RequestTimeout)
	defer cancel()

	req := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.ScoreThreshold != 0 {
		req.ScoreThreshold = qdrant.PtrOf(opts.ScoreThreshold)
	}

	points, err := x.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", collection, mapError(err))
	}

	hits := make([]vectorindex.Hit, 0, len(points))
	for _, p := range points {
		hits = append(hits, vectorindex.Hit{
			ID:    p.GetId().GetNum(),
			Score: p.GetScore(),
			Text:  p.GetPayload()[vectorindex.PayloadTextKey].GetStringValue(),
		})
	}
	return hits, nil
}

// ListCollections returns the names of all collections.
func (x *Index) ListCollections(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, x.cfg.RequestTimeout)
	defer cancel()

	names, err := x.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

// Count returns the exact number of points in a collection.
func (x *Index) Count(ctx context.Context, collection string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, x.cfg.RequestTimeout)
	defer cancel()

	n, err := x.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count %q: %w", collection, mapError(err))
	}
	return n, nil
}

// Payloads scrolls the whole collection and returns texts ordered by point id.
func (x *Index) Payloads(ctx context.Context, collection string) ([]string, error) {
	var (
		texts  []string
		offset *qdrant.PointId
	)
	for {
		page, err := x.scrollPage(ctx, collection, offset)
		if err != nil {
			return nil, err
		}
		for _, p := range page {
			texts = append(texts, p.GetPayload()[vectorindex.PayloadTextKey].GetStringValue())
		}
		if len(page) < scrollPageSize {
			return texts, nil
		}
		// ids are sequential numbers, so the next page starts right after the last one
		offset = qdrant.NewIDNum(page[len(page)-1].GetId().GetNum() + 1)
	}
}

func (x *Index) scrollPage(ctx context.Context, collection string, offset *qdrant.PointId) ([]*qdrant.RetrievedPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, x.cfg.RequestTimeout)
	defer cancel()

	page, err := x.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Offset:         offset,
		Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("scroll %q: %w", collection, mapError(err))
	}
	return page, nil
}

// HealthCheck pings the server.
func (x *Index) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, x.cfg.RequestTimeout)
	defer cancel()

	if _, err := x.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}

// Close closes the gRPC connection.
func (x *Index) Close() error {
	if err := x.client.Close(); err != nil {
		return fmt.Errorf("close qdrant client: %w", err)
	}
	return nil
}

// mapError translates gRPC NotFound into vectorindex.ErrCollectionNotFound.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
		return fmt.Errorf("%w: %w", vectorindex.ErrCollectionNotFound, err)
	}
	return err
}
