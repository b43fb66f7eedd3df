package vectorindex_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/valdex/internal/vectorindex"
)

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple", input: "colors"},
		{name: "mixed case and dash", input: "Product-Sizes_2"},
		{name: "empty", input: "", wantErr: true},
		{name: "blank", input: "   ", wantErr: true},
		{name: "slash", input: "a/b", wantErr: true},
		{name: "backslash", input: `a\b`, wantErr: true},
		{name: "nul", input: "a\x00b", wantErr: true},
		{name: "too long", input: strings.Repeat("a", 256), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vectorindex.ValidateCollectionName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, vectorindex.ErrInvalidCollectionName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBatches(t *testing.T) {
	records := make([]vectorindex.Record, 2500)
	for i := range records {
		records[i].ID = uint64(i + 1)
	}

	batches := vectorindex.Batches(records, 1000)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 1000)
	assert.Len(t, batches[1], 1000)
	assert.Len(t, batches[2], 500)
	assert.Equal(t, uint64(2001), batches[2][0].ID)

	assert.Len(t, vectorindex.Batches(records, 0), 1)
	assert.Nil(t, vectorindex.Batches(nil, 10))
}
