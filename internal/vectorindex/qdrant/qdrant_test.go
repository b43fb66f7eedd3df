package qdrant

import (
	"context"
	"errors"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kailas-cloud/valdex/internal/vectorindex"
)

// --- Mocks ---

type fakeClient struct {
	exists      map[string]bool
	deleted     []string
	created     []*qdrant.CreateCollection
	upserts     []*qdrant.UpsertPoints
	queries     []*qdrant.QueryPoints
	queryResult []*qdrant.ScoredPoint
	queryErr    error
	scrollPages [][]*qdrant.RetrievedPoint
	scrolls     []*qdrant.ScrollPoints
	healthErr   error
}

func (f *fakeClient) CollectionExists(_ context.Context, name string) (bool, error) {
	return f.exists[name], nil
}

func (f *fakeClient) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.created = append(f.created, req)
	return nil
}

func (f *fakeClient) DeleteCollection(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeClient) ListCollections(context.Context) ([]string, error) {
	return []string{"colors", "sizes"}, nil
}

func (f *fakeClient) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.upserts = append(f.upserts, req)
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeClient) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.queries = append(f.queries, req)
	return f.queryResult, f.queryErr
}

func (f *fakeClient) Count(context.Context, *qdrant.CountPoints) (uint64, error) {
	return 42, nil
}

func (f *fakeClient) Scroll(_ context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error) {
	f.scrolls = append(f.scrolls, req)
	if len(f.scrollPages) == 0 {
		return nil, nil
	}
	page := f.scrollPages[0]
	f.scrollPages = f.scrollPages[1:]
	return page, nil
}

func (f *fakeClient) HealthCheck(context.Context) (*qdrant.HealthCheckReply, error) {
	return &qdrant.HealthCheckReply{}, f.healthErr
}

func (f *fakeClient) Close() error { return nil }

func newTestIndex(f *fakeClient, batch int) *Index {
	return newIndex(f, Config{UpsertBatchSize: batch}, zap.NewNop())
}

func textPayload(s string) map[string]*qdrant.Value {
	return qdrant.NewValueMap(map[string]any{vectorindex.PayloadTextKey: s})
}

// --- Tests ---

func TestCreateOrReplace_DropsExisting(t *testing.T) {
	f := &fakeClient{exists: map[string]bool{"colors": true}}
	idx := newTestIndex(f, 0)

	err := idx.CreateOrReplace(context.Background(), vectorindex.CollectionSpec{Name: "colors", Dimension: 768})
	require.NoError(t, err)

	assert.Equal(t, []string{"colors"}, f.deleted)
	require.Len(t, f.created, 1)
	params := f.created[0].GetVectorsConfig().GetParams()
	assert.Equal(t, uint64(768), params.GetSize())
	assert.Equal(t, qdrant.Distance_Cosine, params.GetDistance())
}

func TestCreateOrReplace_NewCollection(t *testing.T) {
	f := &fakeClient{}
	idx := newTestIndex(f, 0)

	require.NoError(t, idx.CreateOrReplace(context.Background(), vectorindex.CollectionSpec{Name: "sizes", Dimension: 4}))
	assert.Empty(t, f.deleted)
	assert.Len(t, f.created, 1)
}

func TestCreateOrReplace_InvalidName(t *testing.T) {
	idx := newTestIndex(&fakeClient{}, 0)

	err := idx.CreateOrReplace(context.Background(), vectorindex.CollectionSpec{Name: "a/b", Dimension: 4})
	assert.ErrorIs(t, err, vectorindex.ErrInvalidCollectionName)
}

func TestUpsert_Batches(t *testing.T) {
	f := &fakeClient{}
	idx := newTestIndex(f, 1000)

	records := make([]vectorindex.Record, 2500)
	for i := range records {
		records[i] = vectorindex.Record{ID: uint64(i + 1), Vector: []float32{1, 0}, Text: "v"}
	}
	require.NoError(t, idx.Upsert(context.Background(), "colors", records))

	require.Len(t, f.upserts, 3)
	assert.Len(t, f.upserts[0].GetPoints(), 1000)
	assert.Len(t, f.upserts[2].GetPoints(), 500)
	assert.True(t, f.upserts[0].GetWait())
	assert.Equal(t, uint64(2500), f.upserts[2].GetPoints()[499].GetId().GetNum())
	assert.Equal(t, "v", f.upserts[0].GetPoints()[0].GetPayload()[vectorindex.PayloadTextKey].GetStringValue())
}

func TestSearch_MapsHits(t *testing.T) {
	f := &fakeClient{queryResult: []*qdrant.ScoredPoint{
		{Id: qdrant.NewIDNum(3), Score: 0.93, Payload: textPayload("red")},
		{Id: qdrant.NewIDNum(1), Score: 0.71, Payload: textPayload("crimson")},
	}}
	idx := newTestIndex(f, 0)

	hits, err := idx.Search(context.Background(), "colors", []float32{1, 0}, 5,
		vectorindex.SearchOptions{ScoreThreshold: 0.5})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "red", hits[0].Text)
	assert.Equal(t, uint64(3), hits[0].ID)

	require.Len(t, f.queries, 1)
	assert.Equal(t, uint64(5), f.queries[0].GetLimit())
	assert.InDelta(t, 0.5, f.queries[0].GetScoreThreshold(), 1e-6)
}

func TestSearch_NoThresholdByDefault(t *testing.T) {
	f := &fakeClient{}
	idx := newTestIndex(f, 0)

	hits, err := idx.Search(context.Background(), "colors", []float32{1}, 5, vectorindex.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Nil(t, f.queries[0].ScoreThreshold)
}

func TestSearch_NotFound(t *testing.T) {
	f := &fakeClient{queryErr: status.Error(codes.NotFound, "collection missing")}
	idx := newTestIndex(f, 0)

	_, err := idx.Search(context.Background(), "missing", []float32{1}, 5, vectorindex.SearchOptions{})
	assert.ErrorIs(t, err, vectorindex.ErrCollectionNotFound)
}

func TestSearch_OtherErrorNotMapped(t *testing.T) {
	f := &fakeClient{queryErr: status.Error(codes.Unavailable, "down")}
	idx := newTestIndex(f, 0)

	_, err := idx.Search(context.Background(), "colors", []float32{1}, 5, vectorindex.SearchOptions{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, vectorindex.ErrCollectionNotFound))
}

func TestPayloads_Pages(t *testing.T) {
	first := make([]*qdrant.RetrievedPoint, scrollPageSize)
	for i := range first {
		first[i] = &qdrant.RetrievedPoint{Id: qdrant.NewIDNum(uint64(i + 1)), Payload: textPayload("x")}
	}
	second := []*qdrant.RetrievedPoint{
		{Id: qdrant.NewIDNum(uint64(scrollPageSize + 1)), Payload: textPayload("last")},
	}
	f := &fakeClient{scrollPages: [][]*qdrant.RetrievedPoint{first, second}}
	idx := newTestIndex(f, 0)

	texts, err := idx.Payloads(context.Background(), "colors")
	require.NoError(t, err)
	assert.Len(t, texts, scrollPageSize+1)
	assert.Equal(t, "last", texts[len(texts)-1])

	require.Len(t, f.scrolls, 2)
	assert.Nil(t, f.scrolls[0].GetOffset())
	assert.Equal(t, uint64(scrollPageSize+1), f.scrolls[1].GetOffset().GetNum())
}

func TestHealthCheck(t *testing.T) {
	f := &fakeClient{healthErr: errors.New("refused")}
	idx := newTestIndex(f, 0)

	assert.Error(t, idx.HealthCheck(context.Background()))

	f.healthErr = nil
	assert.NoError(t, idx.HealthCheck(context.Background()))
}
