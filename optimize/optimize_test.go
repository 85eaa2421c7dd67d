package optimize

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kotadb/kotadb-go/config"
	"github.com/kotadb/kotadb-go/index/primary"
	"github.com/kotadb/kotadb-go/types"
)

func newValidatedPath(t *testing.T, p string) types.ValidatedPath {
	t.Helper()
	vp, err := types.NewValidatedPath(p)
	require.NoError(t, err)
	return vp
}

func openTestPrimary(t *testing.T) *primary.Index {
	t.Helper()
	idx, err := primary.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndexInsertSearchDeleteRoundTrip(t *testing.T) {
	inner := openTestPrimary(t)
	o := New(inner, inner)
	ctx := context.Background()

	id := types.NewDocumentID()
	path := newValidatedPath(t, "/a.md")
	require.NoError(t, o.Insert(ctx, id, path))

	res, err := o.Search(ctx, types.Query{Terms: []string{id.String()}})
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, id, res[0].ID)

	require.NoError(t, o.Delete(ctx, id))
	res, err = o.Search(ctx, types.Query{Terms: []string{id.String()}})
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestContentionTracksAcquisitions(t *testing.T) {
	inner := openTestPrimary(t)
	o := New(inner, inner)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := types.NewDocumentID()
		require.NoError(t, o.Insert(ctx, id, newValidatedPath(t, "/b.md")))
	}
	_, err := o.Search(ctx, types.Query{})
	require.NoError(t, err)

	c := o.Contention()
	require.EqualValues(t, 5, c.WriteAcquisitions)
	require.GreaterOrEqual(t, c.ReadAcquisitions, int64(1))
	require.True(t, c.Healthy())
}

func TestBulkInsertAndBulkDelete(t *testing.T) {
	inner := openTestPrimary(t)
	o := New(inner, inner)
	ctx := context.Background()

	items := make([]struct {
		ID   types.DocumentID
		Path types.ValidatedPath
	}, 10)
	ids := make([]types.DocumentID, 10)
	for i := range items {
		id := types.NewDocumentID()
		ids[i] = id
		items[i].ID = id
		items[i].Path = newValidatedPath(t, "/c.md")
	}

	insertResult := o.BulkInsert(ctx, items)
	require.Equal(t, 10, insertResult.OperationsCompleted)
	require.Empty(t, insertResult.Errors)
	require.Equal(t, ComplexityLinear, insertResult.ComplexityClass)

	deleteResult := o.BulkDelete(ctx, ids)
	require.Equal(t, 10, deleteResult.OperationsCompleted)
	require.Empty(t, deleteResult.Errors)
}

func TestBulkSearchReportsPerQueryResults(t *testing.T) {
	inner := openTestPrimary(t)
	o := New(inner, inner)
	ctx := context.Background()

	id := types.NewDocumentID()
	require.NoError(t, o.Insert(ctx, id, newValidatedPath(t, "/d.md")))

	queries := []types.Query{
		{Terms: []string{id.String()}},
		{Terms: []string{types.NewDocumentID().String()}},
	}
	results, report := o.BulkSearch(ctx, queries)
	require.Len(t, results, 2)
	require.Len(t, results[0], 1)
	require.Empty(t, results[1])
	require.Equal(t, 2, report.OperationsCompleted)
}

func TestAnalyzeTreeReportsUnknownWithoutStats(t *testing.T) {
	inner := openTestPrimary(t)
	o := New(inner, nil)
	analysis := o.AnalyzeTree()
	require.Equal(t, RecommendNone, analysis.Recommendation)
	require.Zero(t, analysis.Depth)
}

func TestAnalyzeTreeWithStats(t *testing.T) {
	inner := openTestPrimary(t)
	o := New(inner, inner)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		require.NoError(t, o.Insert(ctx, types.NewDocumentID(), newValidatedPath(t, "/e.md")))
	}
	analysis := o.AnalyzeTree()
	require.Equal(t, 20, analysis.TotalEntries)
	require.Greater(t, analysis.Depth, 0)
}

func TestAnalyzeMemoryFlagsHighFragmentation(t *testing.T) {
	inner := openTestPrimary(t)
	o := New(inner, inner)
	report := o.AnalyzeMemory(1_000_000)
	require.Equal(t, int64(1_000_000), report.AllocatedBytes)
	require.True(t, report.CompactionAdvised)
	require.Contains(t, report.String(), "allocated=1.0 MB")
}

func TestVerifySLAReportsViolations(t *testing.T) {
	inner := openTestPrimary(t)
	o := New(inner, inner)
	sla := config.DefaultSLA

	report := o.VerifySLA(sla, 500*time.Millisecond, 0.1, 1_000_000)
	require.False(t, report.Compliant)
	require.NotEmpty(t, report.Violations)

	var foundLatency, foundThroughput bool
	for _, v := range report.Violations {
		switch v.Target {
		case "max_latency":
			foundLatency = true
		case "min_throughput":
			foundThroughput = true
		}
	}
	require.True(t, foundLatency)
	require.True(t, foundThroughput)
}

func TestVerifySLACompliantWhenWithinTargets(t *testing.T) {
	inner := openTestPrimary(t)
	o := New(inner, inner)
	sla := config.SLA{
		MaxLatency:    time.Second,
		MinThroughput: 0.001,
	}
	report := o.VerifySLA(sla, time.Millisecond, 100, 0)
	require.True(t, report.Compliant)
	require.Empty(t, report.Violations)
}
