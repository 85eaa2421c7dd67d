package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sourcegraph/log/logtest"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logtest.Init(m)
	os.Exit(m.Run())
}

func TestInsertGetDeleteNode(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	n := NodeRecord{
		ID: "a", Type: "file", Name: "pkg/a.go",
		FilePath:   "pkg/a.go",
		Loc:        Location{StartLine: 1, StartCol: 1, EndLine: 40, EndCol: 2},
		Properties: map[string]string{"lang": "go"},
	}
	require.NoError(t, s.InsertNode(ctx, n))

	got, ok := s.GetNode(ctx, "a")
	require.True(t, ok)
	require.Equal(t, n.Type, got.Type)
	require.Equal(t, n.FilePath, got.FilePath)
	require.Equal(t, n.Loc, got.Loc)
	require.Equal(t, "go", got.Properties["lang"])

	require.Contains(t, s.NodesByType("file"), NodeID("a"))
	require.Contains(t, s.NodesByName("pkg/a.go"), NodeID("a"))

	require.NoError(t, s.DeleteNode(ctx, "a"))
	_, ok = s.GetNode(ctx, "a")
	require.False(t, ok)
	require.NotContains(t, s.NodesByType("file"), NodeID("a"))
}

func TestStoreAndRemoveEdge(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.StoreEdge(ctx, "a", "b", GraphEdge{Kind: "imports"}))
	require.Len(t, s.Edges(ctx, "a", "b"), 1)

	changed, err := s.RemoveEdge(ctx, "a", "b")
	require.NoError(t, err)
	require.True(t, changed)
	require.Empty(t, s.Edges(ctx, "a", "b"))

	changed, err = s.RemoveEdge(ctx, "a", "b")
	require.NoError(t, err)
	require.False(t, changed)
}

func TestRemoveEdgeByType(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.StoreEdge(ctx, "a", "b", GraphEdge{Kind: "imports"}))
	require.NoError(t, s.StoreEdge(ctx, "a", "b", GraphEdge{Kind: "calls"}))

	removed, err := s.RemoveEdgeByType(ctx, "a", "b", "imports")
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Len(t, s.Edges(ctx, "a", "b"), 1)
	require.Equal(t, RelationKind("calls"), s.Edges(ctx, "a", "b")[0].Kind)
}

func TestDeleteNodeUnlinksEdges(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.InsertNode(ctx, NodeRecord{ID: "a"}))
	require.NoError(t, s.InsertNode(ctx, NodeRecord{ID: "b"}))
	require.NoError(t, s.StoreEdge(ctx, "a", "b", GraphEdge{Kind: "imports"}))

	require.NoError(t, s.DeleteNode(ctx, "a"))
	require.Empty(t, s.Edges(ctx, "a", "b"))
}

func TestRecoveryAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.InsertNode(ctx, NodeRecord{ID: "a", Type: "file"}))
	require.NoError(t, s.InsertNode(ctx, NodeRecord{ID: "b", Type: "file"}))
	require.NoError(t, s.StoreEdge(ctx, "a", "b", GraphEdge{Kind: "imports"}))
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	_, ok := reopened.GetNode(ctx, "a")
	require.True(t, ok)
	require.Len(t, reopened.Edges(ctx, "a", "b"), 1)
}

func TestRecoveryAfterSyncReadsFromPages(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.InsertNode(ctx, NodeRecord{ID: "a", Type: "file", Name: "a.go"}))
	require.NoError(t, s.StoreEdge(ctx, "a", "a", GraphEdge{Kind: "self"}))
	require.NoError(t, s.Sync(ctx))
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.GetNode(ctx, "a")
	require.True(t, ok)
	require.Equal(t, "a.go", got.Name)
}

func TestSubgraphBFS(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for _, id := range []NodeID{"a", "b", "c", "d"} {
		require.NoError(t, s.InsertNode(ctx, NodeRecord{ID: id}))
	}
	require.NoError(t, s.StoreEdge(ctx, "a", "b", GraphEdge{Kind: "e"}))
	require.NoError(t, s.StoreEdge(ctx, "b", "c", GraphEdge{Kind: "e"}))
	require.NoError(t, s.StoreEdge(ctx, "c", "d", GraphEdge{Kind: "e"}))

	sub, err := s.Subgraph(ctx, []NodeID{"a"}, 1)
	require.NoError(t, err)
	require.Len(t, sub.Nodes, 2) // a, b only: depth-1 cap
	require.False(t, sub.Stats.Truncated)
}

func TestFindPathsSimple(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.StoreEdge(ctx, "a", "b", GraphEdge{Kind: "e"}))
	require.NoError(t, s.StoreEdge(ctx, "b", "c", GraphEdge{Kind: "e"}))
	require.NoError(t, s.StoreEdge(ctx, "a", "c", GraphEdge{Kind: "e"}))

	paths, err := s.FindPaths(ctx, "a", "c", DefaultMaxTraversalDepth, 10)
	require.NoError(t, err)
	require.Len(t, paths, 2)
}

func TestFindPathsTrivialSelfPath(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.StoreEdge(ctx, "a", "b", GraphEdge{Kind: "e"}))

	paths, err := s.FindPaths(ctx, "a", "a", DefaultMaxTraversalDepth, 10)
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	require.Equal(t, []NodeID{"a"}, paths[0].Nodes)
	require.Empty(t, paths[0].Edges)
}

func TestCallChainPathThenNodeDeletion(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for _, id := range []NodeID{"A", "B", "C"} {
		require.NoError(t, s.InsertNode(ctx, NodeRecord{ID: id, Type: "function"}))
	}
	require.NoError(t, s.StoreEdge(ctx, "A", "B", GraphEdge{Kind: "Calls"}))
	require.NoError(t, s.StoreEdge(ctx, "B", "C", GraphEdge{Kind: "Calls"}))

	paths, err := s.FindPaths(ctx, "A", "C", DefaultMaxTraversalDepth, 10)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	require.Equal(t, []NodeID{"A", "B", "C"}, paths[0].Nodes)

	require.NoError(t, s.DeleteNode(ctx, "B"))
	require.Empty(t, s.Edges(ctx, "A", "B"))
	require.Empty(t, s.Edges(ctx, "B", "C"))
}

func TestRecoveryRoundTripsEdgeContextAndLocation(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	edge := GraphEdge{
		Kind:    "calls",
		Loc:     Location{StartLine: 12, StartCol: 5, EndLine: 12, EndCol: 30},
		Context: "total := calculate_total(items)",
	}

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.StoreEdge(ctx, "a", "b", edge))
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	edges := reopened.Edges(ctx, "a", "b")
	require.Len(t, edges, 1)
	require.Equal(t, edge.Loc, edges[0].Loc)
	require.Equal(t, edge.Context, edges[0].Context)
}

func TestStatsTracksEdgeCountersByKind(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.InsertNode(ctx, NodeRecord{ID: "a"}))
	require.NoError(t, s.InsertNode(ctx, NodeRecord{ID: "b"}))
	require.NoError(t, s.StoreEdge(ctx, "a", "b", GraphEdge{Kind: "calls"}))
	require.NoError(t, s.StoreEdge(ctx, "a", "b", GraphEdge{Kind: "imports"}))
	require.NoError(t, s.StoreEdge(ctx, "b", "a", GraphEdge{Kind: "calls"}))

	stats := s.Stats()
	require.Equal(t, 2, stats.Nodes)
	require.Equal(t, 3, stats.Edges)
	require.Equal(t, 2, stats.EdgesByKind["calls"])
	require.Equal(t, 1, stats.EdgesByKind["imports"])

	removed, err := s.RemoveEdgeByType(ctx, "a", "b", "imports")
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	stats = s.Stats()
	require.Equal(t, 2, stats.Edges)
	require.NotContains(t, stats.EdgesByKind, RelationKind("imports"))

	require.NoError(t, s.DeleteNode(ctx, "a"))
	stats = s.Stats()
	require.Equal(t, 1, stats.Nodes)
	require.Zero(t, stats.Edges)
}

func TestReplaySkipsMalformedWALEntry(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.InsertNode(ctx, NodeRecord{ID: "a", Type: "file"}))
	require.NoError(t, s.Close())

	// Append one well-framed but undecodable record to the current WAL.
	wal, err := os.OpenFile(filepath.Join(dir, "wal", "current.wal"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = wal.Write([]byte{3, 0, 0, 0, 0xFF, 0xFF, 0xFF})
	require.NoError(t, err)
	require.NoError(t, wal.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()
	_, ok := reopened.GetNode(ctx, "a")
	require.True(t, ok)
}

func TestFindPathsUnreachableTargetReturnsNone(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.StoreEdge(ctx, "a", "b", GraphEdge{Kind: "e"}))
	require.NoError(t, s.StoreEdge(ctx, "a", "c", GraphEdge{Kind: "e"}))

	paths, err := s.FindPaths(ctx, "a", "z", DefaultMaxTraversalDepth, 10)
	require.NoError(t, err)
	require.Empty(t, paths)
}
