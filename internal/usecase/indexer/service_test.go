package indexer

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/valdex/internal/domain"
	"github.com/kailas-cloud/valdex/internal/repository/dataset"
	"github.com/kailas-cloud/valdex/internal/vectorindex"
	"github.com/kailas-cloud/valdex/internal/vectorindex/memory"
)

const testDim = 8

// --- Mocks ---

// hashEmbedder derives a deterministic unit vector from the text.
type hashEmbedder struct {
	calls  int
	failOn string
}

func (h *hashEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	h.calls++
	if h.failOn != "" && text == h.failOn {
		return domain.EmbeddingResult{}, fmt.Errorf("boom: %w", domain.ErrEmbeddingProviderError)
	}
	f := fnv.New64a()
	_, _ = f.Write([]byte(text))
	seed := f.Sum64()
	vec := make([]float32, testDim)
	for i := range vec {
		vec[i] = float32((seed>>(uint(i)*8))&0xff) + 1
	}
	return domain.EmbeddingResult{Embedding: domain.Normalize(vec), TotalTokens: 1}, nil
}

type memSource struct {
	datasets map[string]dataset.Dataset
	order    []string
	listErr  error
}

func (s *memSource) List(context.Context) ([]dataset.Entry, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]dataset.Entry, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, dataset.Entry{Name: name, Path: name + ".json"})
	}
	return out, nil
}

func (s *memSource) Load(_ context.Context, e dataset.Entry) (dataset.Dataset, error) {
	ds, ok := s.datasets[e.Name]
	if !ok {
		return dataset.Dataset{}, fmt.Errorf("%w: %s", dataset.ErrInvalidDataset, e.Name)
	}
	return ds, nil
}

type failingIndex struct {
	*memory.Index
	failCreate string
}

func (f *failingIndex) CreateOrReplace(ctx context.Context, spec vectorindex.CollectionSpec) error {
	if spec.Name == f.failCreate {
		return errors.New("qdrant down")
	}
	return f.Index.CreateOrReplace(ctx, spec)
}

func texts(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s %d", prefix, i)
	}
	return out
}

// --- Tests ---

func TestRun_IndexesEveryDataset(t *testing.T) {
	src := &memSource{
		order: []string{"colors", "sizes"},
		datasets: map[string]dataset.Dataset{
			"colors": {Name: "colors", Texts: []string{"red", "green", "blue"}, Read: 3},
			"sizes":  {Name: "sizes", Texts: []string{"S", "M"}, Read: 2},
		},
	}
	idx := memory.New(0)
	svc := New(src, &hashEmbedder{}, idx, testDim, zap.NewNop())

	reports, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, StatusIndexed, reports[0].Status)
	assert.Equal(t, "colors", reports[0].Collection)
	assert.Equal(t, 3, reports[0].Indexed)
	assert.Equal(t, 1, reports[0].Batches)

	names, err := idx.ListCollections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"colors", "sizes"}, names)

	payloads, err := idx.Payloads(context.Background(), "colors")
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "green", "blue"}, payloads)
}

func TestRun_Idempotent(t *testing.T) {
	src := &memSource{
		order: []string{"colors"},
		datasets: map[string]dataset.Dataset{
			"colors": {Name: "colors", Texts: []string{"red", "green", "blue"}, Read: 3},
		},
	}
	idx := memory.New(0)
	svc := New(src, &hashEmbedder{}, idx, testDim, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Run(ctx)
	require.NoError(t, err)
	first, err := idx.Payloads(ctx, "colors")
	require.NoError(t, err)

	_, err = svc.Run(ctx)
	require.NoError(t, err)
	second, err := idx.Payloads(ctx, "colors")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	n, err := idx.Count(ctx, "colors")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestRun_ShrunkDatasetLeavesNoStaleRecords(t *testing.T) {
	src := &memSource{
		order: []string{"colors"},
		datasets: map[string]dataset.Dataset{
			"colors": {Name: "colors", Texts: []string{"red", "green", "blue"}, Read: 3},
		},
	}
	idx := memory.New(0)
	svc := New(src, &hashEmbedder{}, idx, testDim, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Run(ctx)
	require.NoError(t, err)

	src.datasets["colors"] = dataset.Dataset{Name: "colors", Texts: []string{"teal"}, Read: 1}
	_, err = svc.Run(ctx)
	require.NoError(t, err)

	payloads, err := idx.Payloads(ctx, "colors")
	require.NoError(t, err)
	assert.Equal(t, []string{"teal"}, payloads)
}

func TestIndexDataset_BatchSizeDoesNotChangeResult(t *testing.T) {
	ds := dataset.Dataset{Name: "items", Texts: texts("item", 2500), Read: 2500}
	ctx := context.Background()

	big := memory.New(0)
	rep, err := New(nil, &hashEmbedder{}, big, testDim, zap.NewNop()).IndexDataset(ctx, ds)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Batches)
	assert.Equal(t, 2500, rep.Indexed)

	small := memory.New(0)
	rep, err = New(nil, &hashEmbedder{}, small, testDim, zap.NewNop()).WithBatchSize(1).IndexDataset(ctx, ds)
	require.NoError(t, err)
	assert.Equal(t, 2500, rep.Batches)

	a, err := big.Payloads(ctx, "items")
	require.NoError(t, err)
	b, err := small.Payloads(ctx, "items")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, ds.Texts, a)

	hitsA, err := big.Search(ctx, "items", mustEmbed(t, "item 42"), 1, vectorindex.SearchOptions{})
	require.NoError(t, err)
	hitsB, err := small.Search(ctx, "items", mustEmbed(t, "item 42"), 1, vectorindex.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, hitsA, 1)
	require.Len(t, hitsB, 1)
	assert.Equal(t, hitsA[0].ID, hitsB[0].ID)
	assert.Equal(t, uint64(43), hitsA[0].ID)
}

func TestRun_SkipsInvalidDataset(t *testing.T) {
	src := &memSource{
		order: []string{"broken", "colors"},
		datasets: map[string]dataset.Dataset{
			"colors": {Name: "colors", Texts: []string{"red"}, Read: 1},
		},
	}
	idx := memory.New(0)
	reports, err := New(src, &hashEmbedder{}, idx, testDim, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, StatusSkipped, reports[0].Status)
	assert.NotEmpty(t, reports[0].Reason)
	assert.Equal(t, StatusIndexed, reports[1].Status)

	names, _ := idx.ListCollections(context.Background())
	assert.Equal(t, []string{"colors"}, names)
}

func TestRun_FailureDoesNotStopOtherDatasets(t *testing.T) {
	src := &memSource{
		order: []string{"bad", "good"},
		datasets: map[string]dataset.Dataset{
			"bad":  {Name: "bad", Texts: []string{"x"}, Read: 1},
			"good": {Name: "good", Texts: []string{"y"}, Read: 1},
		},
	}
	idx := &failingIndex{Index: memory.New(0), failCreate: "bad"}
	reports, err := New(src, &hashEmbedder{}, idx, testDim, zap.NewNop()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad"`)
	require.Len(t, reports, 2)
	assert.Equal(t, StatusFailed, reports[0].Status)
	assert.Equal(t, StatusIndexed, reports[1].Status)
}

func TestIndexDataset_EmbedFailure(t *testing.T) {
	ds := dataset.Dataset{Name: "items", Texts: []string{"a", "b", "c"}, Read: 3}
	rep, err := New(nil, &hashEmbedder{failOn: "c"}, memory.New(0), testDim, zap.NewNop()).
		WithBatchSize(2).
		IndexDataset(context.Background(), ds)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProviderError)
	assert.Equal(t, StatusFailed, rep.Status)
	assert.Equal(t, 2, rep.Indexed)
	assert.Equal(t, 1, rep.Batches)
}

func TestIndexDataset_NoDimension(t *testing.T) {
	ds := dataset.Dataset{Name: "items", Texts: []string{"a"}, Read: 1}
	_, err := New(nil, &hashEmbedder{}, memory.New(0), 0, zap.NewNop()).IndexDataset(context.Background(), ds)
	require.Error(t, err)
}

func TestRun_ListError(t *testing.T) {
	src := &memSource{listErr: errors.New("permission denied")}
	_, err := New(src, &hashEmbedder{}, memory.New(0), testDim, zap.NewNop()).Run(context.Background())
	require.Error(t, err)
}

func TestRun_FromDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	write("colors.json", `[{"name":"red","hex":"#f00"},{"name":"blue"}]`)
	write("empty.json", `[]`)
	write("object.json", `{"name":"red"}`)
	write("notes.txt", `ignored`)

	idx := memory.New(0)
	src := dataset.NewDirSource(dir, zap.NewNop())
	reports, err := New(src, &hashEmbedder{}, idx, testDim, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 3)

	byName := map[string]Report{}
	for _, r := range reports {
		byName[r.Collection] = r
	}
	assert.Equal(t, StatusIndexed, byName["colors"].Status)
	assert.Equal(t, StatusSkipped, byName["empty"].Status)
	assert.Equal(t, StatusSkipped, byName["object"].Status)

	payloads, err := idx.Payloads(context.Background(), "colors")
	require.NoError(t, err)
	assert.Equal(t, []string{"red | #f00", "blue"}, payloads)
}

func mustEmbed(t *testing.T, text string) []float32 {
	t.Helper()
	res, err := (&hashEmbedder{}).Embed(context.Background(), text)
	require.NoError(t, err)
	return res.Embedding
}
