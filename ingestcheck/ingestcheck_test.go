package ingestcheck

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kotadb/kotadb-go/index/primary"
	"github.com/kotadb/kotadb-go/index/trigram"
	"github.com/kotadb/kotadb-go/store"
	"github.com/kotadb/kotadb-go/types"
)

func seedHarness(t *testing.T) (*store.ContentStore, *primary.Index, *trigram.TextIndex) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	pr, err := primary.Open(t.TempDir())
	require.NoError(t, err)
	tr, err := trigram.OpenText(t.TempDir())
	require.NoError(t, err)

	id := types.NewDocumentID()
	path, _ := types.NewValidatedPath("/a.md")
	title, _ := types.NewValidatedTitle("A")
	doc, err := types.NewDocumentBuilder(id, path, title).WithContent([]byte("hello world of graphs")).Build()
	require.NoError(t, err)

	require.NoError(t, st.Insert(ctx, doc))
	require.NoError(t, pr.Insert(ctx, id, path))
	require.NoError(t, tr.InsertWithContent(ctx, id, path, "A", "hello world of graphs"))
	return st, pr, tr
}

func TestValidatorPassesOnConsistentState(t *testing.T) {
	st, pr, tr := seedHarness(t)
	v := New(st, pr, tr)

	report, err := v.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Passed, report.Status)
	require.GreaterOrEqual(t, len(report.Checks), 5)
	require.Empty(t, report.Issues)
}

func TestValidatorPassesOnBulkIngestedState(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	pr, err := primary.Open(t.TempDir())
	require.NoError(t, err)
	tr, err := trigram.OpenText(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		id := types.NewDocumentID()
		path, perr := types.NewValidatedPath(fmt.Sprintf("/bulk%d.md", i))
		require.NoError(t, perr)
		title, terr := types.NewValidatedTitle(fmt.Sprintf("Bulk %d", i))
		require.NoError(t, terr)
		content := fmt.Sprintf("bulk ingestion content number %d", i)
		doc, derr := types.NewDocumentBuilder(id, path, title).WithContent([]byte(content)).Build()
		require.NoError(t, derr)

		require.NoError(t, st.Insert(ctx, doc))
		require.NoError(t, pr.Insert(ctx, id, path))
		require.NoError(t, tr.InsertWithContent(ctx, id, path, title.String(), content))
	}

	v := New(st, pr, tr)
	report, err := v.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, Passed, report.Status)
	require.GreaterOrEqual(t, len(report.Checks), 5)
	for _, c := range report.Checks {
		if c.Critical {
			require.True(t, c.Passed, "critical check %s failed", c.Name)
		}
	}
}

func TestValidatorFailsOnIndexDrift(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	pr, err := primary.Open(t.TempDir())
	require.NoError(t, err)
	tr, err := trigram.OpenText(t.TempDir())
	require.NoError(t, err)

	id := types.NewDocumentID()
	path, _ := types.NewValidatedPath("/a.md")
	title, _ := types.NewValidatedTitle("A")
	doc, err := types.NewDocumentBuilder(id, path, title).WithContent([]byte("hello")).Build()
	require.NoError(t, err)
	require.NoError(t, st.Insert(ctx, doc))
	// Deliberately skip indexing into pr/tr.

	v := New(st, pr, tr)
	report, err := v.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, Failed, report.Status)
	require.NotEmpty(t, report.Issues)
}

func TestValidatorOnEmptyStorePasses(t *testing.T) {
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	pr, err := primary.Open(t.TempDir())
	require.NoError(t, err)
	tr, err := trigram.OpenText(t.TempDir())
	require.NoError(t, err)

	v := New(st, pr, tr)
	report, err := v.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Passed, report.Status)
}
