package coordinate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kotadb/kotadb-go/index/primary"
	"github.com/kotadb/kotadb-go/index/trigram"
	"github.com/kotadb/kotadb-go/kotaerr"
	"github.com/kotadb/kotadb-go/store"
	"github.com/kotadb/kotadb-go/types"
)

func newHarness(t *testing.T) (*store.ContentStore, *primary.Index, *trigram.TextIndex) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	pr, err := primary.Open(t.TempDir())
	require.NoError(t, err)
	tr, err := trigram.OpenText(t.TempDir())
	require.NoError(t, err)
	return st, pr, tr
}

func TestDeleteDocumentHappyPath(t *testing.T) {
	st, pr, tr := newHarness(t)
	ctx := context.Background()

	id := types.NewDocumentID()
	path, _ := types.NewValidatedPath("/a.md")
	doc, err := types.NewDocumentBuilder(id, path, mustTitle(t, "A")).WithContent([]byte("hello world")).Build()
	require.NoError(t, err)

	require.NoError(t, st.Insert(ctx, doc))
	require.NoError(t, pr.Insert(ctx, id, path))
	require.NoError(t, tr.InsertWithContent(ctx, id, path, "A", "hello world"))

	svc := New(st, pr, tr)
	deleted, err := svc.DeleteDocument(ctx, id)
	require.NoError(t, err)
	require.True(t, deleted)

	_, ok := pr.Get(id)
	require.False(t, ok)
}

func TestDeleteDocumentMissingReturnsFalse(t *testing.T) {
	st, pr, tr := newHarness(t)
	svc := New(st, pr, tr)

	deleted, err := svc.DeleteDocument(context.Background(), types.NewDocumentID())
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestDeleteDocumentPrimaryDriftSurfacesSyncFailure(t *testing.T) {
	st, pr, tr := newHarness(t)
	ctx := context.Background()

	id := types.NewDocumentID()
	path, _ := types.NewValidatedPath("/a.md")
	doc, err := types.NewDocumentBuilder(id, path, mustTitle(t, "A")).WithContent([]byte("hello")).Build()
	require.NoError(t, err)
	require.NoError(t, st.Insert(ctx, doc))
	// Deliberately do not insert into pr, simulating index drift.

	svc := New(st, pr, tr)
	_, err = svc.DeleteDocument(ctx, id)
	require.Error(t, err)
	require.Equal(t, kotaerr.IndexSynchronizationFailure, kotaerr.Of(err))
}

func mustTitle(t *testing.T, s string) types.ValidatedTitle {
	t.Helper()
	title, err := types.NewValidatedTitle(s)
	require.NoError(t, err)
	return title
}
