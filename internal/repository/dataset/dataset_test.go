package dataset_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/valdex/internal/repository/dataset"
)

func TestFlatten_SourceOrder(t *testing.T) {
	text, err := dataset.Flatten([]byte(`{"z":" Red ","a":42,"m":true,"n":null,"o":{"x":1},"p":[1,2],"q":"","r":1.50,"s":false}`))
	require.NoError(t, err)
	assert.Equal(t, "Red | 42 | true | 1.50 | false", text)
}

func TestFlatten_ScalarRendering(t *testing.T) {
	text, err := dataset.Flatten([]byte(`{"a":true,"b":1.0,"c":"  ","d":1e3,"e":"x","f":-0.25}`))
	require.NoError(t, err)
	// Numbers keep their source text and blank strings leave no empty segment.
	assert.Equal(t, "true | 1.0 | 1e3 | x | -0.25", text)
}

func TestFlatten_NonObject(t *testing.T) {
	for _, raw := range []string{`"red"`, `[1,2]`, `42`, `null`} {
		text, err := dataset.Flatten([]byte(raw))
		require.NoError(t, err, raw)
		assert.Empty(t, text, raw)
	}
}

func TestParseRecords(t *testing.T) {
	texts, read, err := dataset.ParseRecords(strings.NewReader(`[{"color":"red"},{"x":null},"junk",{"color":"blue","hex":"#00f"}]`))
	require.NoError(t, err)
	assert.Equal(t, 4, read)
	assert.Equal(t, []string{"red", "blue | #00f"}, texts)
}

func TestParseRecords_Invalid(t *testing.T) {
	tests := map[string]string{
		"object":    `{"color":"red"}`,
		"truncated": `[{"color":"red"}`,
		"garbage":   `not json`,
		"empty":     ``,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := dataset.ParseRecords(strings.NewReader(raw))
			assert.ErrorIs(t, err, dataset.ErrInvalidDataset)
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestDirSource_ListAndLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sizes.json", `[{"size":"M"},{"size":"L"}]`)
	writeFile(t, dir, "Colors.JSON", `[{"color":"red"}]`)
	writeFile(t, dir, "notes.txt", `ignored`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0o700))

	src := dataset.NewDirSource(dir, zap.NewNop())
	entries, err := src.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Colors", entries[0].Name)
	assert.Equal(t, "sizes", entries[1].Name)

	ds, err := src.Load(context.Background(), entries[1])
	require.NoError(t, err)
	assert.Equal(t, "sizes", ds.Name)
	assert.Equal(t, 2, ds.Read)
	assert.Equal(t, []string{"M", "L"}, ds.Texts)
}

func TestDirSource_LoadRejectsUnusable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.json", `[]`)
	writeFile(t, dir, "blank.json", `[{"a":""},{"b":null}]`)
	writeFile(t, dir, "object.json", `{"a":"b"}`)

	src := dataset.NewDirSource(dir, zap.NewNop())
	for _, name := range []string{"empty", "blank", "object"} {
		_, err := src.Load(context.Background(), dataset.Entry{Name: name, Path: filepath.Join(dir, name+".json")})
		assert.ErrorIs(t, err, dataset.ErrInvalidDataset, name)
	}

	_, err := src.Load(context.Background(), dataset.Entry{Name: "missing", Path: filepath.Join(dir, "missing.json")})
	assert.ErrorIs(t, err, dataset.ErrInvalidDataset)
}

func TestDirSource_MissingDir(t *testing.T) {
	src := dataset.NewDirSource(filepath.Join(t.TempDir(), "nope"), zap.NewNop())
	_, err := src.List(context.Background())
	assert.Error(t, err)
}

func TestEntryFor(t *testing.T) {
	e, ok := dataset.EntryFor("/data/colors.json")
	assert.True(t, ok)
	assert.Equal(t, "colors", e.Name)

	_, ok = dataset.EntryFor("/data/colors.csv")
	assert.False(t, ok)

	_, ok = dataset.EntryFor("/data/.json")
	assert.False(t, ok)
}
