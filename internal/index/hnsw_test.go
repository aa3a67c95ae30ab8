package index

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siri1404/NeuroRAG/internal/core"
)

func newTestHNSW(t *testing.T, metric core.DistanceMetric, dim int) VectorIndex {
	t.Helper()
	idx, err := New(Config{
		Kind:               KindHNSW,
		Dimension:          dim,
		Metric:             metric,
		InvalidateOnInsert: true,
		HNSW:               HNSWParams{M: 16, EfSearch: 64},
	})
	require.NoError(t, err)
	return idx
}

func TestHNSWSelfRecall(t *testing.T) {
	idx := newTestHNSW(t, core.MetricCosine, 8)

	rng := rand.New(rand.NewSource(42))
	entries := make([]core.VectorEntry, 0, 50)
	for i := int64(0); i < 50; i++ {
		vec := make([]float32, 8)
		for d := range vec {
			vec[d] = rng.Float32() - 0.5
		}
		entries = append(entries, core.VectorEntry{ID: i, Values: vec})
	}
	require.NoError(t, idx.Insert(entries))

	// Searching with an entry's own vector must return it on top with
	// similarity 1.0.
	for _, probe := range []int64{0, 17, 49} {
		got, err := idx.Search(entries[probe].Values, 1, -1, nil)
		require.NoError(t, err)
		require.Len(t, got, 1, "probe %d", probe)
		assert.Equal(t, probe, got[0].ID)
		assert.InDelta(t, 1.0, got[0].Score, 1e-5)
	}
}

func TestHNSWScenario(t *testing.T) {
	idx := newTestHNSW(t, core.MetricCosine, 2)
	require.NoError(t, idx.Insert([]core.VectorEntry{
		{ID: 1, Values: []float32{1, 0}},
		{ID: 2, Values: []float32{0, 1}},
		{ID: 3, Values: []float32{0.9, 0.1}},
	}))

	got, err := idx.Search([]float32{1, 0}, 2, -1, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-5)
	assert.Equal(t, int64(3), got[1].ID)
	assert.InDelta(t, 0.994, got[1].Score, 1e-3)
}

func TestHNSWRemoveHidesBeforeCompaction(t *testing.T) {
	idx := newTestHNSW(t, core.MetricCosine, 2)
	require.NoError(t, idx.Insert([]core.VectorEntry{
		{ID: 1, Values: []float32{1, 0}},
		{ID: 2, Values: []float32{0.95, 0.05}},
	}))

	removed, err := idx.Remove([]int64{1})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := idx.Search([]float32{1, 0}, 2, -1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)

	require.NoError(t, idx.Compact())
	got, err = idx.Search([]float32{1, 0}, 2, -1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, 1, idx.Len())
}

func TestHNSWReinsertRemovedID(t *testing.T) {
	idx := newTestHNSW(t, core.MetricCosine, 2)
	require.NoError(t, idx.Insert([]core.VectorEntry{
		{ID: 1, Values: []float32{1, 0}},
		{ID: 2, Values: []float32{0, 1}},
		{ID: 3, Values: []float32{0.9, 0.1}},
	}))

	removed, err := idx.Remove([]int64{1})
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	// The id is free again after removal; re-inserting it with a new vector
	// must succeed and replace the old node.
	require.NoError(t, idx.Insert([]core.VectorEntry{
		{ID: 1, Values: []float32{0, 1}},
	}))
	assert.Equal(t, 3, idx.Len())

	got, err := idx.Search([]float32{0, 1}, 1, -1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-5)

	// The old vector must be gone: a query at the original position ranks
	// id 3 above the re-inserted id 1.
	got, err = idx.Search([]float32{1, 0}, 1, -1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ID)
}

func TestHNSWParamsReachGraph(t *testing.T) {
	idx, err := New(Config{
		Kind:      KindHNSW,
		Dimension: 2,
		Metric:    core.MetricCosine,
		HNSW:      HNSWParams{M: 8, EfSearch: 120},
	})
	require.NoError(t, err)

	h := idx.(*hnswIndex)
	assert.Equal(t, 8, h.graph.M)
	assert.Equal(t, 120, h.graph.EfSearch)

	require.NoError(t, idx.Insert([]core.VectorEntry{{ID: 1, Values: []float32{1, 0}}}))
	require.NoError(t, idx.Compact())
	assert.Equal(t, 8, h.graph.M)
	assert.Equal(t, 120, h.graph.EfSearch)
}

func TestHNSWEmptyIndex(t *testing.T) {
	idx := newTestHNSW(t, core.MetricL2, 4)
	_, err := idx.Search(make([]float32, 4), 3, -1, nil)
	assert.True(t, core.IsUnavailable(err))
}

func TestHNSWFilters(t *testing.T) {
	idx := newTestHNSW(t, core.MetricCosine, 2)
	entries := make([]core.VectorEntry, 0, 10)
	for i := int64(0); i < 10; i++ {
		lang := "en"
		if i%2 == 0 {
			lang = "de"
		}
		entries = append(entries, core.VectorEntry{
			ID:       i,
			Values:   []float32{1, float32(i) * 0.01},
			Metadata: map[string]string{"lang": lang},
		})
	}
	require.NoError(t, idx.Insert(entries))

	got, err := idx.Search([]float32{1, 0}, 10, -1, map[string]string{"lang": "de"})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, c := range got {
		assert.Equal(t, "de", c.Meta["lang"], fmt.Sprintf("id %d", c.ID))
	}
}
