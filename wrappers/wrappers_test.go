package wrappers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kotadb/kotadb-go/kotaerr"
	"github.com/kotadb/kotadb-go/metrics"
	"github.com/kotadb/kotadb-go/store"
	"github.com/kotadb/kotadb-go/types"
)

func newTestDocument(t *testing.T) types.Document {
	t.Helper()
	id := types.NewDocumentID()
	path, err := types.NewValidatedPath("/a.md")
	require.NoError(t, err)
	title, err := types.NewValidatedTitle("A")
	require.NoError(t, err)
	doc, err := types.NewDocumentBuilder(id, path, title).WithContent([]byte("hello world")).Build()
	require.NoError(t, err)
	return doc
}

func TestCachedStorageGetServesHitsWithoutTouchingInner(t *testing.T) {
	cs, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer cs.Close()

	cached := NewCachedStorage(cs, DefaultCacheCapacity)
	ctx := context.Background()
	doc := newTestDocument(t)
	require.NoError(t, cached.Insert(ctx, doc))
	require.Equal(t, 1, cached.CacheSize())

	got, err := cached.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, doc.ID, got.ID)

	ok, err := cached.Delete(ctx, doc.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, cached.CacheSize())

	_, err = cached.Get(ctx, doc.ID)
	require.Error(t, err)
}

func TestValidatedStorageRejectsUpdatedBeforeCreated(t *testing.T) {
	cs, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer cs.Close()
	v := NewValidatedStorage(cs)

	doc := newTestDocument(t)
	doc.Updated = doc.Created.Add(-time.Hour)

	err = v.Insert(context.Background(), doc)
	require.Error(t, err)
	require.Equal(t, kotaerr.ValidationInvariant, kotaerr.Of(err))

	_, getErr := cs.Get(context.Background(), doc.ID)
	require.Error(t, getErr, "inner store must not have been touched")
}

func TestValidatedStorageRejectsDuplicateInsert(t *testing.T) {
	cs, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer cs.Close()
	v := NewValidatedStorage(cs)

	doc := newTestDocument(t)
	require.NoError(t, v.Insert(context.Background(), doc))
	err = v.Insert(context.Background(), doc)
	require.Error(t, err)
	require.Equal(t, kotaerr.AlreadyExists, kotaerr.Of(err))
}

type flakyStorage struct {
	failures int
	calls    int
}

func (f *flakyStorage) Insert(ctx context.Context, doc types.Document) error {
	f.calls++
	if f.calls <= f.failures {
		return kotaerr.Wrap(kotaerr.IOError, context.DeadlineExceeded, "transient failure")
	}
	return nil
}
func (f *flakyStorage) Get(ctx context.Context, id types.DocumentID) (types.Document, error) {
	return types.Document{}, kotaerr.New(kotaerr.NotFound, "not found")
}
func (f *flakyStorage) Update(ctx context.Context, doc types.Document) error { return nil }
func (f *flakyStorage) Delete(ctx context.Context, id types.DocumentID) (bool, error) {
	return false, nil
}
func (f *flakyStorage) List(ctx context.Context) ([]types.Document, error) { return nil, nil }

func TestRetryableStorageSucceedsAfterOneRetry(t *testing.T) {
	inner := &flakyStorage{failures: 1}
	r := NewRetryableStorage(inner, DefaultRetryPolicy)
	err := r.Insert(context.Background(), newTestDocument(t))
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestRetryableStorageExhaustsBudgetOnPersistentFailure(t *testing.T) {
	inner := &flakyStorage{failures: 100}
	r := NewRetryableStorage(inner, RetryPolicy{MaxAttempts: 3, BaseInterval: time.Millisecond, MaxInterval: 10 * time.Millisecond})
	err := r.Insert(context.Background(), newTestDocument(t))
	require.Error(t, err)
	require.Equal(t, 3, inner.calls)
}

func TestRetryableStorageNeverRetriesValidationErrors(t *testing.T) {
	calls := 0
	inner := &countingFailStorage{kind: kotaerr.ValidationInvalidInput, calls: &calls}
	r := NewRetryableStorage(inner, DefaultRetryPolicy)
	err := r.Insert(context.Background(), newTestDocument(t))
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

type countingFailStorage struct {
	kind  kotaerr.Kind
	calls *int
}

func (f *countingFailStorage) Insert(ctx context.Context, doc types.Document) error {
	*f.calls++
	return kotaerr.New(f.kind, "boom")
}
func (f *countingFailStorage) Get(ctx context.Context, id types.DocumentID) (types.Document, error) {
	return types.Document{}, nil
}
func (f *countingFailStorage) Update(ctx context.Context, doc types.Document) error { return nil }
func (f *countingFailStorage) Delete(ctx context.Context, id types.DocumentID) (bool, error) {
	return false, nil
}
func (f *countingFailStorage) List(ctx context.Context) ([]types.Document, error) { return nil, nil }

func TestMeteredStorageTracksSnapshot(t *testing.T) {
	cs, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer cs.Close()

	m := NewMeteredStorage(cs, "content-store", metrics.NewOpHistogram("test_store"))
	doc := newTestDocument(t)
	require.NoError(t, m.Insert(context.Background(), doc))
	snap := m.Snapshot()
	require.EqualValues(t, 1, snap.Count)
}

func TestTracedStorageCountsOperations(t *testing.T) {
	cs, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer cs.Close()

	tr := NewTracedStorage(cs)
	doc := newTestDocument(t)
	require.NoError(t, tr.Insert(context.Background(), doc))
	_, err = tr.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, tr.OpCount())
}

// TestStandardComposition exercises the full inside-out composition order
// spec §4.9 mandates: inner -> Cached -> Retryable -> Validated -> Traced.
func TestStandardComposition(t *testing.T) {
	cs, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer cs.Close()

	cached := NewCachedStorage(cs, DefaultCacheCapacity)
	retryable := NewRetryableStorage(cached, DefaultRetryPolicy)
	validated := NewValidatedStorage(retryable)
	traced := NewTracedStorage(validated)

	doc := newTestDocument(t)
	require.NoError(t, traced.Insert(context.Background(), doc))
	got, err := traced.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, doc.ID, got.ID)
}
