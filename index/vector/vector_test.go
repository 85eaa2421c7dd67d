package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kotadb/kotadb-go/kotaerr"
	"github.com/kotadb/kotadb-go/types"
)

func TestInsertDimensionMismatch(t *testing.T) {
	idx := New(4, Cosine)
	err := idx.Insert(context.Background(), types.NewDocumentID(), []float32{1, 2, 3})
	require.Error(t, err)
	require.Equal(t, kotaerr.DimensionMismatch, kotaerr.Of(err))
}

func TestSearchKNNOrdersByDistance(t *testing.T) {
	idx := New(2, Euclidean)
	ctx := context.Background()

	near := types.NewDocumentID()
	mid := types.NewDocumentID()
	far := types.NewDocumentID()
	require.NoError(t, idx.Insert(ctx, near, []float32{1, 0}))
	require.NoError(t, idx.Insert(ctx, mid, []float32{5, 0}))
	require.NoError(t, idx.Insert(ctx, far, []float32{10, 0}))

	results, err := idx.SearchKNN(ctx, []float32{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, near, results[0].ID)
	require.Equal(t, mid, results[1].ID)
}

func TestRemoveReassignsEntryPoint(t *testing.T) {
	idx := New(2, Cosine)
	ctx := context.Background()

	a := types.NewDocumentID()
	b := types.NewDocumentID()
	require.NoError(t, idx.Insert(ctx, a, []float32{1, 0}))
	require.NoError(t, idx.Insert(ctx, b, []float32{0, 1}))

	entry, ok := idx.EntryPoint()
	require.True(t, ok)
	require.Equal(t, a, entry)

	require.NoError(t, idx.RemoveVector(ctx, a))
	entry, ok = idx.EntryPoint()
	require.True(t, ok)
	require.Equal(t, b, entry)

	require.NoError(t, idx.RemoveVector(ctx, b))
	_, ok = idx.EntryPoint()
	require.False(t, ok)
}

func TestRemoveMissingIsNotFound(t *testing.T) {
	idx := New(2, Cosine)
	err := idx.RemoveVector(context.Background(), types.NewDocumentID())
	require.Error(t, err)
	require.Equal(t, kotaerr.NotFound, kotaerr.Of(err))
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := Open(dir, 3, Euclidean)
	require.NoError(t, err)

	ids := make([]types.DocumentID, 0, 5)
	for i := 0; i < 5; i++ {
		id := types.NewDocumentID()
		ids = append(ids, id)
		require.NoError(t, idx.Insert(ctx, id, []float32{float32(i), float32(i) * 2, 1}))
	}
	require.NoError(t, idx.Close())

	reopened, err := Open(dir, 3, Euclidean)
	require.NoError(t, err)
	require.Equal(t, 5, reopened.Len())

	entry, ok := reopened.EntryPoint()
	require.True(t, ok)
	require.Contains(t, ids, entry)

	results, err := reopened.SearchKNN(ctx, []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, ids[0], results[0].ID)
}

func TestOpenMissingFileIsEmptyIndex(t *testing.T) {
	idx, err := Open(t.TempDir(), 2, Cosine)
	require.NoError(t, err)
	require.Equal(t, 0, idx.Len())
}

func TestAutoFlushOnThreshold(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	idx, err := Open(dir, 1, Euclidean)
	require.NoError(t, err)

	for i := 0; i < AutoFlushThreshold; i++ {
		require.NoError(t, idx.Insert(ctx, types.NewDocumentID(), []float32{float32(i)}))
	}

	reopened, err := Open(dir, 1, Euclidean)
	require.NoError(t, err)
	require.Equal(t, AutoFlushThreshold, reopened.Len())
}
