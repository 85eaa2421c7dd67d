package trigram

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kotadb/kotadb-go/types"
)

func TestBinaryIndexInsertFlushReopenWildcard(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenBinary(dir)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		id := types.NewDocumentID()
		path, _ := types.NewValidatedPath(fmt.Sprintf("/doc%d.md", i))
		require.NoError(t, idx.InsertWithContent(ctx, id, path, "T", "hello world content"))
	}
	require.NoError(t, idx.Flush())
	require.NoError(t, idx.Close())

	reopened, err := OpenBinary(dir)
	require.NoError(t, err)
	defer reopened.Close()

	limit, _ := types.NewValidatedLimit(1000, 1000)
	results, err := reopened.Search(ctx, types.Query{Limit: limit})
	require.NoError(t, err)
	require.Len(t, results, 100)
}

func TestBinaryIndexWildcardOnEmptyQuery(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenBinary(dir)
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	id := types.NewDocumentID()
	path, _ := types.NewValidatedPath("/a.md")
	require.NoError(t, idx.InsertWithContent(ctx, id, path, "A", "hello world"))

	limit, _ := types.NewValidatedLimit(10, 10)
	results, err := idx.Search(ctx, types.Query{Limit: limit})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestBinaryAndTextFormsAgree(t *testing.T) {
	ctx := context.Background()
	id := types.NewDocumentID()
	path, _ := types.NewValidatedPath("/shared.md")

	textIdx, err := OpenText(t.TempDir())
	require.NoError(t, err)
	defer textIdx.Close()
	require.NoError(t, textIdx.InsertWithContent(ctx, id, path, "T", "unique search phrase"))

	binIdx, err := OpenBinary(t.TempDir())
	require.NoError(t, err)
	defer binIdx.Close()
	require.NoError(t, binIdx.InsertWithContent(ctx, id, path, "T", "unique search phrase"))

	q, _ := types.NewQueryBuilder().WithTerms([]string{"unique"}).Build()

	textResults, err := textIdx.Search(ctx, q)
	require.NoError(t, err)
	binResults, err := binIdx.Search(ctx, q)
	require.NoError(t, err)

	require.Len(t, textResults, 1)
	require.Len(t, binResults, 1)
	require.Equal(t, textResults[0].ID, binResults[0].ID)
}
