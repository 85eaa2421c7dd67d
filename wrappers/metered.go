package wrappers

import (
	"context"
	"time"

	"github.com/kotadb/kotadb-go/contracts"
	"github.com/kotadb/kotadb-go/metrics"
	"github.com/kotadb/kotadb-go/types"
)

// MeteredStorage records each call's latency into a metrics.OpHistogram
// whose Prometheus histogram is labelled by operation kind (spec §4.9). The
// in-process Snapshot min/avg/max covers all operations together; it is not
// broken down by operation kind. Grounded on the teacher's own
// RED-metrics idiom (cmd/zoekt-sourcegraph-indexserver/metrics.go).
type MeteredStorage struct {
	inner     contracts.Storage
	component string
	hist      *metrics.OpHistogram
}

func NewMeteredStorage(inner contracts.Storage, component string, hist *metrics.OpHistogram) *MeteredStorage {
	return &MeteredStorage{inner: inner, component: component, hist: hist}
}

func (m *MeteredStorage) observe(op string, start time.Time) {
	m.hist.Observe(op, m.component, time.Since(start))
}

// Snapshot returns the min/avg/max summary across every observed operation.
func (m *MeteredStorage) Snapshot() metrics.Snapshot { return m.hist.Snapshot() }

func (m *MeteredStorage) Insert(ctx context.Context, doc types.Document) error {
	start := time.Now()
	defer m.observe("insert", start)
	return m.inner.Insert(ctx, doc)
}

func (m *MeteredStorage) Get(ctx context.Context, id types.DocumentID) (types.Document, error) {
	start := time.Now()
	defer m.observe("get", start)
	return m.inner.Get(ctx, id)
}

func (m *MeteredStorage) Update(ctx context.Context, doc types.Document) error {
	start := time.Now()
	defer m.observe("update", start)
	return m.inner.Update(ctx, doc)
}

func (m *MeteredStorage) Delete(ctx context.Context, id types.DocumentID) (bool, error) {
	start := time.Now()
	defer m.observe("delete", start)
	return m.inner.Delete(ctx, id)
}

func (m *MeteredStorage) List(ctx context.Context) ([]types.Document, error) {
	start := time.Now()
	defer m.observe("list", start)
	return m.inner.List(ctx)
}

var _ contracts.Storage = (*MeteredStorage)(nil)

// MeteredIndex is MeteredStorage's counterpart for contracts.Index.
type MeteredIndex struct {
	inner     contracts.Index
	component string
	hist      *metrics.OpHistogram
}

func NewMeteredIndex(inner contracts.Index, component string, hist *metrics.OpHistogram) *MeteredIndex {
	return &MeteredIndex{inner: inner, component: component, hist: hist}
}

func (m *MeteredIndex) Snapshot() metrics.Snapshot { return m.hist.Snapshot() }

func (m *MeteredIndex) observe(op string, start time.Time) {
	m.hist.Observe(op, m.component, time.Since(start))
}

func (m *MeteredIndex) Insert(ctx context.Context, id types.DocumentID, path types.ValidatedPath) error {
	start := time.Now()
	defer m.observe("insert", start)
	return m.inner.Insert(ctx, id, path)
}

func (m *MeteredIndex) Search(ctx context.Context, q types.Query) ([]contracts.SearchResult, error) {
	start := time.Now()
	defer m.observe("search", start)
	return m.inner.Search(ctx, q)
}

func (m *MeteredIndex) Delete(ctx context.Context, id types.DocumentID) error {
	start := time.Now()
	defer m.observe("delete", start)
	return m.inner.Delete(ctx, id)
}

func (m *MeteredIndex) List(ctx context.Context) ([]contracts.SearchResult, error) {
	start := time.Now()
	defer m.observe("list", start)
	return m.inner.List(ctx)
}

var _ contracts.Index = (*MeteredIndex)(nil)
