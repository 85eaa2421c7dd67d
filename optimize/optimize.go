// Package optimize implements C11: the optimised index wrapper. It adds
// bulk operations, concurrent-access contention metrics, tree-structure
// analysis, memory-optimisation reporting, and SLA verification on top of
// any contracts.Index, per spec §4.10. Concurrent-access gating uses
// golang.org/x/sync/semaphore (a teacher dependency), with a sync.Mutex
// guarding the contention counters; bulk-operation and SLA-compliance
// telemetry is grounded on the teacher's contentprovider.go
// scoring/threshold style — a small struct-of-counters updated inline and
// reported in-process. This package does not export anything through the
// metrics package.
package optimize

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kotadb/kotadb-go/contracts"
	"github.com/kotadb/kotadb-go/types"
)

// TreeStats is the minimal introspection surface a wrapped index can
// expose for tree-analysis; index/primary.Index satisfies it. Indices that
// don't (the two trigram forms, the vector index) are still fully usable
// through Index — AnalyzeTree simply reports Unknown-shaped metrics for
// them.
type TreeStats interface {
	TotalKeys() int
	Height() int
}

// Index wraps any contracts.Index with the five C11 capabilities. Reads
// and writes are gated through an async read-write lock built on
// semaphore.Weighted so ContentionMetrics can observe queueing, not just
// final acquisition.
type Index struct {
	inner contracts.Index
	stats TreeStats // optional; nil if inner doesn't support tree analysis

	readSem  *semaphore.Weighted
	writeSem *semaphore.Weighted

	mu                sync.Mutex
	activeReaders     int
	activeWriters     int
	pendingReaders    int
	pendingWriters    int
	readWaitTotal     time.Duration
	writeWaitTotal    time.Duration
	readAcquisitions  int64
	writeAcquisitions int64
	contestedReads    int64
	contestedWrites   int64
	lastComplexity    ComplexityClass
}

// contestedReadThreshold and contestedWriteThreshold are spec §4.10's
// "contested lock" bar: reads
// contested past a few microseconds, writes past a few milliseconds (spec
// §9 glossary "Contested lock").
const (
	contestedReadThreshold  = 5 * time.Microsecond
	contestedWriteThreshold = 5 * time.Millisecond
)

// maxReaders is the reader semaphore's weight: effectively unbounded
// concurrent readers. A writer acquires all of it.
const maxReaders = 1 << 20

// New wraps inner. Pass a non-nil stats when inner supports tree
// introspection (e.g. index/primary.Index).
func New(inner contracts.Index, stats TreeStats) *Index {
	return &Index{
		inner:    inner,
		stats:    stats,
		readSem:  semaphore.NewWeighted(maxReaders),
		writeSem: semaphore.NewWeighted(1),
	}
}

func (o *Index) acquireRead(ctx context.Context) (func(), error) {
	o.mu.Lock()
	o.pendingReaders++
	o.mu.Unlock()

	start := time.Now()
	if err := o.readSem.Acquire(ctx, 1); err != nil {
		o.mu.Lock()
		o.pendingReaders--
		o.mu.Unlock()
		return nil, err
	}
	wait := time.Since(start)

	o.mu.Lock()
	o.pendingReaders--
	o.activeReaders++
	o.readWaitTotal += wait
	o.readAcquisitions++
	if wait > contestedReadThreshold {
		o.contestedReads++
	}
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		o.activeReaders--
		o.mu.Unlock()
		o.readSem.Release(1)
	}, nil
}

func (o *Index) acquireWrite(ctx context.Context) (func(), error) {
	o.mu.Lock()
	o.pendingWriters++
	o.mu.Unlock()

	start := time.Now()
	if err := o.writeSem.Acquire(ctx, 1); err != nil {
		o.mu.Lock()
		o.pendingWriters--
		o.mu.Unlock()
		return nil, err
	}
	// Taking every reader slot makes the writer exclusive of readers.
	if err := o.readSem.Acquire(ctx, maxReaders); err != nil {
		o.writeSem.Release(1)
		o.mu.Lock()
		o.pendingWriters--
		o.mu.Unlock()
		return nil, err
	}
	wait := time.Since(start)

	o.mu.Lock()
	o.pendingWriters--
	o.activeWriters++
	o.writeWaitTotal += wait
	o.writeAcquisitions++
	if wait > contestedWriteThreshold {
		o.contestedWrites++
	}
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		o.activeWriters--
		o.mu.Unlock()
		o.readSem.Release(maxReaders)
		o.writeSem.Release(1)
	}, nil
}

func (o *Index) Insert(ctx context.Context, id types.DocumentID, path types.ValidatedPath) error {
	release, err := o.acquireWrite(ctx)
	if err != nil {
		return err
	}
	defer release()
	return o.inner.Insert(ctx, id, path)
}

func (o *Index) Search(ctx context.Context, q types.Query) ([]contracts.SearchResult, error) {
	release, err := o.acquireRead(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return o.inner.Search(ctx, q)
}

func (o *Index) Delete(ctx context.Context, id types.DocumentID) error {
	release, err := o.acquireWrite(ctx)
	if err != nil {
		return err
	}
	defer release()
	return o.inner.Delete(ctx, id)
}

func (o *Index) List(ctx context.Context) ([]contracts.SearchResult, error) {
	release, err := o.acquireRead(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return o.inner.List(ctx)
}

var _ contracts.Index = (*Index)(nil)
