// Package dataset reads the raw datasets the indexer turns into collections.
package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Entry identifies one dataset file.
type Entry struct {
	Name string
	Path string
}

// Dataset is a parsed dataset ready for embedding.
type Dataset struct {
	Name  string
	Texts []string
	Read  int
}

// DirSource lists every *.json file (case-insensitive) in a directory as a dataset.
// The collection name is the file name without its extension.
type DirSource struct {
	dir    string
	logger *zap.Logger
}

// NewDirSource creates a source over dir.
func NewDirSource(dir string, logger *zap.Logger) *DirSource {
	return &DirSource{dir: dir, logger: logger}
}

// Dir returns the watched directory.
func (s *DirSource) Dir() string { return s.dir }

// List returns dataset entries sorted by name.
func (s *DirSource) List(_ context.Context) ([]Entry, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir %q: %w", s.dir, err)
	}

	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		entry, ok := EntryFor(filepath.Join(s.dir, f.Name()))
		if !ok {
			s.logger.Debug("Skipping non-JSON file", zap.String("file", f.Name()))
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Load reads and flattens one dataset. Any failure wraps ErrInvalidDataset.
func (s *DirSource) Load(_ context.Context, e Entry) (Dataset, error) {
	f, err := os.Open(e.Path)
	if err != nil {
		return Dataset{}, fmt.Errorf("%w: open %s: %v", ErrInvalidDataset, e.Path, err)
	}
	defer f.Close()

	texts, read, err := ParseRecords(f)
	if err != nil {
		return Dataset{}, fmt.Errorf("parse %s: %w", e.Path, err)
	}
	if len(texts) == 0 {
		return Dataset{}, fmt.Errorf("%w: %s has no usable records (%d read)", ErrInvalidDataset, e.Path, read)
	}

	return Dataset{Name: e.Name, Texts: texts, Read: read}, nil
}

// EntryFor maps a file path to a dataset entry. ok is false for non-JSON files.
func EntryFor(path string) (Entry, bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if !strings.EqualFold(ext, ".json") {
		return Entry{}, false
	}
	name := strings.TrimSuffix(base, ext)
	if name == "" {
		return Entry{}, false
	}
	return Entry{Name: name, Path: path}, true
}
