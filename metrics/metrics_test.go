package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpHistogramSnapshotTracksMinAvgMax(t *testing.T) {
	h := NewOpHistogram("insert")
	h.Observe("insert", "primary", 10*time.Millisecond)
	h.Observe("insert", "primary", 30*time.Millisecond)
	h.Observe("insert", "primary", 20*time.Millisecond)

	snap := h.Snapshot()
	require.EqualValues(t, 3, snap.Count)
	require.Equal(t, 10*time.Millisecond, snap.Min)
	require.Equal(t, 30*time.Millisecond, snap.Max)
	require.Equal(t, 20*time.Millisecond, snap.Avg)
}

func TestRegistryRegistersAllCollectors(t *testing.T) {
	r := NewRegistry()
	r.Histogram("get")
	r.NewGauge("active_readers", "number of active readers")
	require.Len(t, r.Histograms, 1)
	require.Len(t, r.Gauges, 1)
}
