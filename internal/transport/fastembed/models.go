// Package fastembed provides a local ONNX embedding provider. It needs a cgo build;
// without cgo the constructor returns ErrNotAvailable.
package fastembed

import (
	"errors"
	"path/filepath"
)

const (
	defaultMaxLength = 512
	defaultBatchSize = 256
)

// ErrUnsupportedModel is returned for a model name missing from the model table.
var ErrUnsupportedModel = errors.New("fastembed: unsupported model")

// Config holds the local model settings.
type Config struct {
	Model     string
	CacheDir  string
	MaxLength int
	BatchSize int
}

func (c *Config) applyDefaults() {
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(".", "local_cache")
	}
	if c.MaxLength <= 0 {
		c.MaxLength = defaultMaxLength
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
}

// canonical maps friendly and fastembed-native names to the fastembed model id.
var canonical = map[string]string{
	"BAAI/bge-small-en-v1.5":                 "fast-bge-small-en-v1.5",
	"BAAI/bge-small-en":                      "fast-bge-small-en",
	"BAAI/bge-base-en-v1.5":                  "fast-bge-base-en-v1.5",
	"BAAI/bge-base-en":                       "fast-bge-base-en",
	"BAAI/bge-small-zh-v1.5":                 "fast-bge-small-zh-v1.5",
	"sentence-transformers/all-MiniLM-L6-v2": "fast-all-MiniLM-L6-v2",
	"fast-bge-small-en-v1.5":                 "fast-bge-small-en-v1.5",
	"fast-bge-small-en":                      "fast-bge-small-en",
	"fast-bge-base-en-v1.5":                  "fast-bge-base-en-v1.5",
	"fast-bge-base-en":                       "fast-bge-base-en",
	"fast-bge-small-zh-v1.5":                 "fast-bge-small-zh-v1.5",
	"fast-all-MiniLM-L6-v2":                  "fast-all-MiniLM-L6-v2",
}

var dimensions = map[string]int{
	"fast-bge-small-en-v1.5": 384,
	"fast-bge-small-en":      384,
	"fast-bge-base-en-v1.5":  768,
	"fast-bge-base-en":       768,
	"fast-bge-small-zh-v1.5": 512,
	"fast-all-MiniLM-L6-v2":  384,
}

// ModelDimension returns the embedding dimension of a known model.
func ModelDimension(model string) (int, bool) {
	id, ok := canonical[model]
	if !ok {
		return 0, false
	}
	return dimensions[id], true
}
