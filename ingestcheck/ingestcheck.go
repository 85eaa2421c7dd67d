// Package ingestcheck implements C9: the post-ingestion validator that
// cross-checks the content store against the primary and trigram
// indices after a batch of writes. Its JSON-shaped ValidationReport
// follows the teacher's own stable struct-to-JSON API convention (api.go).
package ingestcheck

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kotadb/kotadb-go/contracts"
	"github.com/kotadb/kotadb-go/sanitize"
	"github.com/kotadb/kotadb-go/types"
)

// Default configuration limits, per spec §4.8.
const (
	MaxDocumentsCheck = 10_000
	MaxSearchResults  = 5_000
)

// Status is the overall ValidationReport verdict.
type Status string

const (
	Passed  Status = "Passed"
	Warning Status = "Warning"
	Failed  Status = "Failed"
)

// Check is one named validation check's outcome.
type Check struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Critical bool   `json:"critical"`
	Detail   string `json:"detail,omitempty"`
}

// ValidationReport is the validator's structured output, suitable for
// machine consumption (spec §4.8: "structured JSON").
type ValidationReport struct {
	Status          Status   `json:"status"`
	Checks          []Check  `json:"checks"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
	Warnings        []string `json:"warnings"`
}

// Validator runs the mandated checks against a store and its two
// indices.
type Validator struct {
	store   contracts.Storage
	primary contracts.Index
	trigram contracts.Index
}

// New constructs a Validator over the given store and indices.
func New(store contracts.Storage, primary, trigram contracts.Index) *Validator {
	return &Validator{store: store, primary: primary, trigram: trigram}
}

// Run executes every mandated check and assembles the report. Any failed
// critical check forces the overall status to Failed; otherwise a
// non-critical failure downgrades to Warning.
func (v *Validator) Run(ctx context.Context) (ValidationReport, error) {
	report := ValidationReport{Status: Passed}

	storeDocs, err := v.store.List(ctx)
	if err != nil {
		return ValidationReport{}, err
	}
	if len(storeDocs) > MaxDocumentsCheck {
		storeDocs = storeDocs[:MaxDocumentsCheck]
		report.Warnings = append(report.Warnings, "document sample truncated to max_documents_check")
	}

	unlimited, _ := types.NewValidatedLimit(MaxSearchResults, MaxSearchResults)

	var primaryAll, trigramAll []contracts.SearchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var lerr error
		primaryAll, lerr = v.primary.List(gctx)
		return lerr
	})
	g.Go(func() error {
		var lerr error
		trigramAll, lerr = v.trigram.List(gctx)
		return lerr
	})
	if err := g.Wait(); err != nil {
		return ValidationReport{}, err
	}

	report.addCheck(v.checkStorageCountConsistency(len(storeDocs), len(primaryAll), len(trigramAll)))
	report.addCheck(v.checkBasicWildcardSearch(ctx))
	report.addCheck(v.checkTrigramTextSearch(ctx, storeDocs))
	report.addCheck(v.checkIndexDocumentCoverage(storeDocs, primaryAll, trigramAll))
	report.addCheck(v.checkSampleQueryRouting(ctx, storeDocs, unlimited))

	report.finalize()
	return report, nil
}

func (r *ValidationReport) addCheck(c Check) {
	r.Checks = append(r.Checks, c)
	if !c.Passed {
		if c.Critical {
			r.Issues = append(r.Issues, c.Name+": "+c.Detail)
		} else {
			r.Warnings = append(r.Warnings, c.Name+": "+c.Detail)
		}
	}
}

func (r *ValidationReport) finalize() {
	failed := false
	warned := len(r.Warnings) > 0
	for _, c := range r.Checks {
		if !c.Passed {
			if c.Critical {
				failed = true
			} else {
				warned = true
			}
		}
	}
	switch {
	case failed:
		r.Status = Failed
		r.Recommendations = append(r.Recommendations, "inspect issues and re-run coordinated deletion or re-ingestion for affected documents")
	case warned:
		r.Status = Warning
	default:
		r.Status = Passed
	}
}

func (v *Validator) checkStorageCountConsistency(storeCount, primaryCount, trigramCount int) Check {
	c := Check{Name: "storage_count_consistency", Critical: true, Passed: storeCount == primaryCount && storeCount == trigramCount}
	if !c.Passed {
		c.Detail = "store/primary/trigram document counts diverge"
	}
	return c
}

func (v *Validator) checkBasicWildcardSearch(ctx context.Context) Check {
	_, err := v.primary.Search(ctx, types.Query{})
	c := Check{Name: "basic_wildcard_search", Critical: true, Passed: err == nil}
	if err != nil {
		c.Detail = err.Error()
	}
	return c
}

func (v *Validator) checkTrigramTextSearch(ctx context.Context, sample []types.Document) Check {
	probe := probeTerm(sample)
	limit, _ := types.NewValidatedLimit(10, 10)
	q, err := types.NewQueryBuilder().WithTerms([]string{probe}).WithLimit(limit).Build()
	if err != nil {
		return Check{Name: "trigram_text_search", Critical: true, Passed: false, Detail: err.Error()}
	}
	_, err = v.trigram.Search(ctx, q)
	c := Check{Name: "trigram_text_search", Critical: true, Passed: err == nil}
	if err != nil {
		c.Detail = err.Error()
	}
	return c
}

func (v *Validator) checkIndexDocumentCoverage(storeDocs []types.Document, primaryAll, trigramAll []contracts.SearchResult) Check {
	inPrimary := make(map[types.DocumentID]bool, len(primaryAll))
	for _, r := range primaryAll {
		inPrimary[r.ID] = true
	}
	inTrigram := make(map[types.DocumentID]bool, len(trigramAll))
	for _, r := range trigramAll {
		inTrigram[r.ID] = true
	}
	for _, d := range storeDocs {
		if !inPrimary[d.ID] || !inTrigram[d.ID] {
			return Check{Name: "index_document_coverage", Critical: true, Passed: false, Detail: "document " + d.ID.String() + " missing from one or both indices"}
		}
	}
	return Check{Name: "index_document_coverage", Critical: true, Passed: true}
}

func (v *Validator) checkSampleQueryRouting(ctx context.Context, storeDocs []types.Document, limit types.ValidatedLimit) Check {
	if len(storeDocs) == 0 {
		return Check{Name: "sample_query_routing", Critical: false, Passed: true, Detail: "store empty; nothing to route"}
	}
	q, _ := types.NewQueryBuilder().WithLimit(limit).Build()
	results, err := v.primary.Search(ctx, q)
	if err != nil {
		return Check{Name: "sample_query_routing", Critical: false, Passed: false, Detail: err.Error()}
	}
	if len(results) == 0 {
		return Check{Name: "sample_query_routing", Critical: false, Passed: false, Detail: "wildcard query returned no results against a non-empty store"}
	}
	if _, err := v.store.Get(ctx, results[0].ID); err != nil {
		return Check{Name: "sample_query_routing", Critical: false, Passed: false, Detail: "retrieving sampled identifier from store failed"}
	}
	return Check{Name: "sample_query_routing", Critical: false, Passed: true}
}

// probeTerm extracts a search probe term from sampled documents via the
// query sanitiser, per spec §4.8, falling back to the fixed term
// "document" when no usable term is found.
func probeTerm(sample []types.Document) string {
	const fallback = "document"
	for _, d := range sample {
		res, err := sanitize.Sanitize(firstWords(string(d.Content), 64))
		if err != nil || len(res.Terms) == 0 {
			continue
		}
		for _, term := range res.Terms {
			if !isStopWord(term) {
				return term
			}
		}
	}
	return fallback
}

func firstWords(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "is": true, "it": true, "for": true, "on": true,
}

func isStopWord(term string) bool { return stopWords[term] }
