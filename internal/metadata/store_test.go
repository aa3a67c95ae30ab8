package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/siri1404/NeuroRAG/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMetadataUpsertGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, 1, map[string]string{"lang": "en", "source": "wiki"}))

	meta, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"lang": "en", "source": "wiki"}, meta)
}

func TestMetadataUpsertReplacesKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, 1, map[string]string{"lang": "en"}))
	require.NoError(t, s.Upsert(ctx, 1, map[string]string{"lang": "fr"}))

	meta, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "fr", meta["lang"])
}

func TestMetadataGetMissing(t *testing.T) {
	s := openTestStore(t)

	meta, err := s.Get(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, meta)
}

func TestMetadataDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entries := []core.VectorEntry{
		{ID: 1, Metadata: map[string]string{"a": "1"}},
		{ID: 2, Metadata: map[string]string{"a": "2"}},
		{ID: 3, Metadata: map[string]string{"a": "3"}},
	}
	require.NoError(t, s.UpsertBatch(ctx, entries))

	require.NoError(t, s.Delete(ctx, []int64{1, 3}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	meta, err := s.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "2", meta["a"])
}

func TestMetadataLoadAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entries := []core.VectorEntry{
		{ID: 10, Metadata: map[string]string{"k1": "v1", "k2": "v2"}},
		{ID: 20, Metadata: map[string]string{"k1": "v3"}},
	}
	require.NoError(t, s.UpsertBatch(ctx, entries))

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "v2", all[10]["k2"])
	assert.Equal(t, "v3", all[20]["k1"])
}

func TestMetadataDeleteEmpty(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Delete(context.Background(), nil))
}
