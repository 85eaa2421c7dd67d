package optimize

import (
	"context"
	"time"

	"github.com/kotadb/kotadb-go/contracts"
	"github.com/kotadb/kotadb-go/types"
)

// ComplexityClass is a tag describing an operation's algorithmic shape —
// "a tag, not a measurement", per spec §4.10.
type ComplexityClass string

const (
	ComplexityConstant     ComplexityClass = "Constant"
	ComplexityLogarithmic  ComplexityClass = "Logarithmic"
	ComplexityLinear       ComplexityClass = "Linear"
	ComplexityLinearithmic ComplexityClass = "Linearithmic"
	ComplexityQuadratic    ComplexityClass = "Quadratic"
	ComplexityUnknown      ComplexityClass = "Unknown"
)

// BulkOperationResult is spec §4.10's mandated bulk-op report.
type BulkOperationResult struct {
	OperationsCompleted int
	Duration            time.Duration
	Throughput          float64 // operations/second
	MemoryDeltaBytes    int64
	TreeBalanceFactor   float64
	ComplexityClass     ComplexityClass
	Errors              []error
}

// maxClaimableSpeedup is spec §4.10's sanity ceiling: "refuse to claim
// speedup above 10x without evidence." BulkInsert/BulkDelete are
// Linear-tagged (one tree op per item — no batch algorithm is claimed), so
// this constant only matters if a future implementation tries to report a
// faster class; ClampThroughput enforces it against a supplied baseline.
const maxClaimableSpeedup = 10.0

// ClampThroughput caps a computed throughput figure at maxClaimableSpeedup
// times a single-operation baseline, so a caller wiring real measurements
// into BulkOperationResult can't accidentally report an unsubstantiated
// speedup.
func ClampThroughput(measured, singleOpBaseline float64) float64 {
	if singleOpBaseline <= 0 {
		return measured
	}
	ceiling := singleOpBaseline * maxClaimableSpeedup
	if measured > ceiling {
		return ceiling
	}
	return measured
}

func (o *Index) balanceFactor() float64 {
	if o.stats == nil {
		return 0
	}
	n := o.stats.TotalKeys()
	h := o.stats.Height()
	if n <= 1 || h <= 0 {
		return 1
	}
	// Ideal height for n keys under the wrapped tree's branching factor is
	// unknown generically; approximate balance as ideal/actual height
	// ratio against log2(n+1), clamped to [0,1] — 1.0 is perfectly
	// balanced, per spec §9 glossary "Balance factor".
	ideal := 0.0
	for v := n + 1; v > 1; v >>= 1 {
		ideal++
	}
	if ideal == 0 {
		ideal = 1
	}
	bf := ideal / float64(h)
	if bf > 1 {
		bf = 1
	}
	return bf
}

// recordComplexity remembers the most recent bulk operation's complexity
// tag for SLA verification against a required_complexity_class target.
func (o *Index) recordComplexity(c ComplexityClass) {
	o.mu.Lock()
	o.lastComplexity = c
	o.mu.Unlock()
}

// BulkInsert inserts every (id, path) pair, looping the single-item
// Insert — spec §4.10 permits but does not require sub-linear batching —
// and reports operations_completed/duration/throughput/balance factor.
// Tagged Linear: no batch algorithm is claimed.
func (o *Index) BulkInsert(ctx context.Context, items []struct {
	ID   types.DocumentID
	Path types.ValidatedPath
}) BulkOperationResult {
	start := time.Now()
	var errs []error
	completed := 0
	for _, item := range items {
		if err := o.Insert(ctx, item.ID, item.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		completed++
	}
	dur := time.Since(start)
	o.recordComplexity(ComplexityLinear)
	return BulkOperationResult{
		OperationsCompleted: completed,
		Duration:            dur,
		Throughput:          throughputOf(completed, dur),
		TreeBalanceFactor:   o.balanceFactor(),
		ComplexityClass:     ComplexityLinear,
		Errors:              errs,
	}
}

// BulkDelete deletes every id, looping the single-item Delete.
func (o *Index) BulkDelete(ctx context.Context, ids []types.DocumentID) BulkOperationResult {
	start := time.Now()
	var errs []error
	completed := 0
	for _, id := range ids {
		if err := o.Delete(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		completed++
	}
	dur := time.Since(start)
	o.recordComplexity(ComplexityLinear)
	return BulkOperationResult{
		OperationsCompleted: completed,
		Duration:            dur,
		Throughput:          throughputOf(completed, dur),
		TreeBalanceFactor:   o.balanceFactor(),
		ComplexityClass:     ComplexityLinear,
		Errors:              errs,
	}
}

// BulkSearch runs every query, collecting per-query results alongside the
// bulk report.
func (o *Index) BulkSearch(ctx context.Context, queries []types.Query) ([][]contracts.SearchResult, BulkOperationResult) {
	start := time.Now()
	var errs []error
	completed := 0
	results := make([][]contracts.SearchResult, 0, len(queries))
	for _, q := range queries {
		r, err := o.Search(ctx, q)
		if err != nil {
			errs = append(errs, err)
			results = append(results, nil)
			continue
		}
		results = append(results, r)
		completed++
	}
	dur := time.Since(start)
	o.recordComplexity(ComplexityLogarithmic)
	return results, BulkOperationResult{
		OperationsCompleted: completed,
		Duration:            dur,
		Throughput:          throughputOf(completed, dur),
		TreeBalanceFactor:   o.balanceFactor(),
		ComplexityClass:     ComplexityLogarithmic,
		Errors:              errs,
	}
}

func throughputOf(completed int, dur time.Duration) float64 {
	if dur <= 0 {
		return 0
	}
	return float64(completed) / dur.Seconds()
}
