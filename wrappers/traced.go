// Package wrappers implements C10: the five composable decorators over
// contracts.Storage and contracts.Index (spec §4.9). Each wrapper forwards
// the full contract unchanged and never alters semantics — only what is
// observed (traces, retries, cache hits, latency histograms, validation
// errors) differs. The standard composition, inside out, is
// inner -> Cached -> Retryable -> Validated -> Traced.
package wrappers

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kotadb/kotadb-go/contracts"
	"github.com/kotadb/kotadb-go/types"
)

var tracer = otel.Tracer("github.com/kotadb/kotadb-go/wrappers")

// TracedStorage emits start/end span events for every Storage call under a
// stable per-instance correlation id, grounded on the teacher's own
// tracer.Start/span.End pattern (cmd/zoekt-indexserver/fetch.go) layered
// over go.opentelemetry.io/otel/trace. The correlation id is recorded only
// as the "correlation_id" span attribute; nothing is logged.
type TracedStorage struct {
	inner         contracts.Storage
	correlationID string

	opCount int64
}

// NewTracedStorage wraps inner with tracing. Each instance mints its own
// correlation id on construction.
func NewTracedStorage(inner contracts.Storage) *TracedStorage {
	return &TracedStorage{inner: inner, correlationID: uuid.NewString()}
}

func (t *TracedStorage) span(ctx context.Context, op string) (context.Context, trace.Span) {
	t.opCount++
	return tracer.Start(ctx, "storage."+op, trace.WithAttributes(
		attribute.String("correlation_id", t.correlationID),
	))
}

func (t *TracedStorage) OpCount() int64 { return t.opCount }

func (t *TracedStorage) Insert(ctx context.Context, doc types.Document) error {
	ctx, span := t.span(ctx, "insert")
	defer span.End()
	return t.inner.Insert(ctx, doc)
}

func (t *TracedStorage) Get(ctx context.Context, id types.DocumentID) (types.Document, error) {
	ctx, span := t.span(ctx, "get")
	defer span.End()
	return t.inner.Get(ctx, id)
}

func (t *TracedStorage) Update(ctx context.Context, doc types.Document) error {
	ctx, span := t.span(ctx, "update")
	defer span.End()
	return t.inner.Update(ctx, doc)
}

func (t *TracedStorage) Delete(ctx context.Context, id types.DocumentID) (bool, error) {
	ctx, span := t.span(ctx, "delete")
	defer span.End()
	return t.inner.Delete(ctx, id)
}

func (t *TracedStorage) List(ctx context.Context) ([]types.Document, error) {
	ctx, span := t.span(ctx, "list")
	defer span.End()
	return t.inner.List(ctx)
}

var _ contracts.Storage = (*TracedStorage)(nil)

// TracedIndex is TracedStorage's counterpart for contracts.Index.
type TracedIndex struct {
	inner         contracts.Index
	correlationID string

	opCount int64
}

func NewTracedIndex(inner contracts.Index) *TracedIndex {
	return &TracedIndex{inner: inner, correlationID: uuid.NewString()}
}

func (t *TracedIndex) OpCount() int64 { return t.opCount }

func (t *TracedIndex) span(ctx context.Context, op string) (context.Context, trace.Span) {
	t.opCount++
	return tracer.Start(ctx, "index."+op, trace.WithAttributes(
		attribute.String("correlation_id", t.correlationID),
	))
}

func (t *TracedIndex) Insert(ctx context.Context, id types.DocumentID, path types.ValidatedPath) error {
	ctx, span := t.span(ctx, "insert")
	defer span.End()
	return t.inner.Insert(ctx, id, path)
}

func (t *TracedIndex) Search(ctx context.Context, q types.Query) ([]contracts.SearchResult, error) {
	ctx, span := t.span(ctx, "search")
	defer span.End()
	return t.inner.Search(ctx, q)
}

func (t *TracedIndex) Delete(ctx context.Context, id types.DocumentID) error {
	ctx, span := t.span(ctx, "delete")
	defer span.End()
	return t.inner.Delete(ctx, id)
}

func (t *TracedIndex) List(ctx context.Context) ([]contracts.SearchResult, error) {
	ctx, span := t.span(ctx, "list")
	defer span.End()
	return t.inner.List(ctx)
}

var _ contracts.Index = (*TracedIndex)(nil)
