package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/siri1404/NeuroRAG/internal/core"
)

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.parquet")

	entries := []core.VectorEntry{
		{ID: 1, Values: []float32{1, 0, 0}, Metadata: map[string]string{"lang": "en"}},
		{ID: 2, Values: []float32{0, 1, 0}, Metadata: map[string]string{"lang": "fr"}},
		{ID: 3, Values: []float32{0, 0, 1}},
	}
	require.NoError(t, WriteFile(path, entries, zap.NewNop()))

	got, err := ReadFile(path, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, []float32{1, 0, 0}, got[0].Values)
	assert.Equal(t, "en", got[0].Metadata["lang"])
	assert.Equal(t, []float32{0, 0, 1}, got[2].Values)
}

func TestParquetLargeBatchCrossesChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "large.parquet")

	n := writeChunk + 100
	entries := make([]core.VectorEntry, n)
	for i := range entries {
		entries[i] = core.VectorEntry{ID: int64(i), Values: []float32{float32(i), 1}}
	}
	require.NoError(t, WriteFile(path, entries, zap.NewNop()))

	got, err := ReadFile(path, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, got, n)
	assert.Equal(t, int64(n-1), got[n-1].ID)
	assert.Equal(t, float32(n-1), got[n-1].Values[0])
}

func TestParquetReadMissingFile(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.parquet"), zap.NewNop())
	assert.Error(t, err)
}
