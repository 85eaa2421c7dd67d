package primary

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kotadb/kotadb-go/types"
)

func TestPrimaryIndexInsertSearchListDelete(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(dir)
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	ids := make([]types.DocumentID, 10)
	for i := range ids {
		ids[i] = types.NewDocumentID()
		p, err := types.NewValidatedPath(fmt.Sprintf("/test%d.md", i))
		require.NoError(t, err)
		require.NoError(t, idx.Insert(ctx, ids[i], p))
	}

	for i, id := range ids {
		p, ok := idx.Get(id)
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("/test%d.md", i), p.String())
	}

	all, err := idx.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 10)

	require.NoError(t, idx.Delete(ctx, ids[0]))
	_, ok := idx.Get(ids[0])
	require.False(t, ok)
}

func TestPrimaryIndexPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	id := types.NewDocumentID()
	p, err := types.NewValidatedPath("/a.md")
	require.NoError(t, err)

	idx, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(ctx, id, p))
	require.NoError(t, idx.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.Get(id)
	require.True(t, ok)
	require.Equal(t, "/a.md", got.String())
}
