package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/valdex/internal/domain"
	"github.com/kailas-cloud/valdex/internal/repository/dataset"
	"github.com/kailas-cloud/valdex/internal/usecase/indexer"
	"github.com/kailas-cloud/valdex/internal/vectorindex/memory"
)

type lengthEmbedder struct{}

func (lengthEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text)), 1}}, nil
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "index")

	idx, _, err := root.Find([]string{"index"})
	require.NoError(t, err)
	assert.NotNil(t, idx.Flags().Lookup("watch"))

	for _, flag := range []string{"env", "config", "log-level", "data-dir"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestPrintReports(t *testing.T) {
	var buf bytes.Buffer
	printReports(&buf, []indexer.Report{
		{Collection: "colors", Status: indexer.StatusIndexed, Read: 3, Indexed: 3, Batches: 1, Duration: 1500 * time.Microsecond},
		{Collection: "broken", Status: indexer.StatusSkipped, Reason: "invalid dataset"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "COLLECTION"))
	assert.Contains(t, lines[1], "colors")
	assert.Contains(t, lines[1], "indexed")
	assert.Contains(t, lines[2], "skipped")
	assert.Contains(t, lines[2], "invalid dataset")
}

func TestReindexHandler(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "colors.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"red"},{"name":"blue"}]`), 0o600))

	idx := memory.New(0)
	logger := zap.NewNop()
	svc := indexer.New(dataset.NewDirSource(dir, logger), lengthEmbedder{}, idx, 2, logger)

	handler := reindexHandler(svc, logger)
	handler(context.Background(), path)

	n, err := idx.Count(context.Background(), "colors")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	// Non-dataset files are ignored.
	handler(context.Background(), filepath.Join(dir, "notes.txt"))
	names, err := idx.ListCollections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"colors"}, names)
}
