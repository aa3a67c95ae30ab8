package index

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siri1404/NeuroRAG/internal/core"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")

	cfg := Config{
		Kind:               KindFlat,
		Dimension:          4,
		Metric:             core.MetricCosine,
		InvalidateOnInsert: true,
	}
	idx, err := New(cfg)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	entries := make([]core.VectorEntry, 0, 32)
	for i := int64(0); i < 32; i++ {
		vec := make([]float32, 4)
		for d := range vec {
			vec[d] = rng.Float32()
		}
		entries = append(entries, core.VectorEntry{
			ID:       i,
			Values:   vec,
			Metadata: map[string]string{"doc": "d" + string(rune('a'+i%5))},
		})
	}
	require.NoError(t, idx.Insert(entries))
	_, err = idx.Remove([]int64{3, 11})
	require.NoError(t, err)

	require.NoError(t, Save(idx, path))

	loaded, err := Load(path, cfg)
	require.NoError(t, err)
	assert.Equal(t, idx.Len(), loaded.Len())

	// Identical results for a fixed set of probe queries.
	for probe := 0; probe < 5; probe++ {
		query := make([]float32, 4)
		for d := range query {
			query[d] = rng.Float32()
		}
		want, err := idx.Search(query, 5, -1, nil)
		require.NoError(t, err)
		got, err := loaded.Search(query, 5, -1, nil)
		require.NoError(t, err)

		require.Equal(t, len(want), len(got))
		for i := range want {
			assert.Equal(t, want[i].ID, got[i].ID)
			assert.InDelta(t, want[i].Score, got[i].Score, 1e-6)
			assert.Equal(t, want[i].Meta, got[i].Meta)
		}
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	require.NoError(t, os.WriteFile(path, []byte("not an index file"), 0o644))

	_, err := Load(path, Config{Kind: KindFlat, Dimension: 4, Metric: core.MetricCosine})
	require.Error(t, err)
	var corrupt *core.ErrCorruptIndex
	assert.ErrorAs(t, err, &corrupt)
}

func TestLoadRejectsDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")

	cfg := Config{Kind: KindFlat, Dimension: 4, Metric: core.MetricCosine}
	idx, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, idx.Insert([]core.VectorEntry{{ID: 1, Values: []float32{1, 0, 0, 0}}}))
	require.NoError(t, Save(idx, path))

	_, err = Load(path, Config{Kind: KindFlat, Dimension: 8, Metric: core.MetricCosine})
	var corrupt *core.ErrCorruptIndex
	assert.ErrorAs(t, err, &corrupt)
}

func TestLoadRejectsMetricMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")

	cfg := Config{Kind: KindFlat, Dimension: 2, Metric: core.MetricL2}
	idx, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, idx.Insert([]core.VectorEntry{{ID: 1, Values: []float32{1, 0}}}))
	require.NoError(t, Save(idx, path))

	_, err = Load(path, Config{Kind: KindFlat, Dimension: 2, Metric: core.MetricCosine})
	var corrupt *core.ErrCorruptIndex
	assert.ErrorAs(t, err, &corrupt)
}

func TestSaveLoadAcrossBackends(t *testing.T) {
	// A snapshot written by the flat backend loads into the graph backend.
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")

	flatCfg := Config{Kind: KindFlat, Dimension: 2, Metric: core.MetricCosine}
	idx, err := New(flatCfg)
	require.NoError(t, err)
	require.NoError(t, idx.Insert([]core.VectorEntry{
		{ID: 1, Values: []float32{1, 0}},
		{ID: 3, Values: []float32{0.9, 0.1}},
	}))
	require.NoError(t, Save(idx, path))

	graphCfg := flatCfg
	graphCfg.Kind = KindHNSW
	loaded, err := Load(path, graphCfg)
	require.NoError(t, err)

	got, err := loaded.Search([]float32{1, 0}, 1, -1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
}
