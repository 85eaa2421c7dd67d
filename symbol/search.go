package symbol

import (
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/grafana/regexp"

	"github.com/kotadb/kotadb-go/kotaerr"
)

// Result is one ranked hit from a code-aware search.
type Result struct {
	SymbolID      uint64
	DocumentID    [16]byte
	Name          string
	Type          Type
	FilePath      string
	QualifiedName string
	Relevance     float64
	Metadata      map[string]string
}

func resultFrom(r Record, relevance float64) Result {
	return Result{
		SymbolID:      r.ID,
		DocumentID:    r.DocumentID,
		Name:          r.baseName(),
		Type:          r.Type,
		FilePath:      r.FilePath,
		QualifiedName: r.QualifiedName,
		Relevance:     relevance,
	}
}

// wellKnownPatterns are pre-compiled once, grounded on the original
// source's static Lazy<Regex> table (symbol_index.rs). github.com/grafana/regexp
// is a drop-in regexp replacement with a worst-case execution-time guard —
// the same reason the teacher adopted it for compiling content-derived
// patterns, which applies equally to patterns run over indexed source text.
var wellKnownPatterns = map[Pattern]*regexp.Regexp{
	PatternErrorHandling: regexp.MustCompile(`(try|catch|Result|Error|panic|recover)`),
	PatternAsyncAwait:    regexp.MustCompile(`(async|await|goroutine|go func|channel|select)`),
	PatternTestCode:      regexp.MustCompile(`(func Test|func Benchmark|t\.Fatal|assert)`),
	PatternTodoComments:  regexp.MustCompile(`(TODO|FIXME|HACK|XXX|NOTE)`),
	PatternSecurity:      regexp.MustCompile(`(password|secret|apikey|token|auth|credential)`),
}

// Index is the code-aware query layer over a Store. It owns a cache of
// compiled custom regex patterns (spec §4.11's "custom patterns are regex
// cached on first use").
type Index struct {
	Store *Store

	maxResults int

	customMu sync.RWMutex
	custom   map[string]*regexp.Regexp
}

// DefaultMaxResults mirrors the original source's SymbolIndexConfig default.
const DefaultMaxResults = 1000

// NewIndex constructs a code-aware index over store.
func NewIndex(store *Store) *Index {
	return &Index{Store: store, maxResults: DefaultMaxResults, custom: make(map[string]*regexp.Regexp)}
}

// Search executes q, dispatching on its Kind.
func (idx *Index) Search(q Query) ([]Result, error) {
	switch q.Kind {
	case KindSymbolSearch:
		return idx.searchSymbols(q.Symbol), nil
	case KindSignatureSearch:
		return idx.searchSignatures(q.Signature), nil
	case KindDependencySearch:
		return idx.searchDependencies(q.Dependency), nil
	case KindPatternSearch:
		return idx.searchPatterns(q.CodePattern)
	case KindCombined:
		return idx.searchCombined(q.Combined)
	default:
		return nil, kotaerr.Field(kotaerr.ValidationInvalidInput, "kind", "unknown symbol query kind")
	}
}

func matchesTypeFilter(t Type, filter []Type) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == t {
			return true
		}
	}
	return false
}

func (idx *Index) searchSymbols(args SymbolSearchArgs) []Result {
	var records []Record
	if args.Fuzzy {
		records = idx.Store.SearchFuzzy(args.Name, idx.maxResults)
	} else {
		records = idx.Store.FindByName(args.Name)
	}
	out := make([]Result, 0, len(records))
	for _, r := range records {
		if !matchesTypeFilter(r.Type, args.Types) {
			continue
		}
		out = append(out, resultFrom(r, 1.0))
	}
	return out
}

func (idx *Index) searchSignatures(args SignatureSearchArgs) []Result {
	seen := make(map[uint64]bool)
	var results []Result
	for _, tok := range tokenize(args.Pattern) {
		for _, id := range idx.Store.SignatureTokenIDs(tok) {
			if seen[id] {
				continue
			}
			seen[id] = true
			r, ok := idx.Store.Get(id)
			if !ok {
				continue
			}
			if args.Language != "" && !strings.EqualFold(r.Language, args.Language) {
				continue
			}
			rel := signatureRelevance(r.Text, args.Pattern)
			results = append(results, resultFrom(r, rel))
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Relevance > results[j].Relevance })
	if len(results) > idx.maxResults {
		results = results[:idx.maxResults]
	}
	return results
}

func signatureRelevance(signature, pattern string) float64 {
	sigTokens := tokenize(signature)
	patternTokens := tokenize(pattern)
	if len(sigTokens) == 0 || len(patternTokens) == 0 {
		return 0
	}
	sigSet := make(map[string]bool, len(sigTokens))
	for _, t := range sigTokens {
		sigSet[t] = true
	}
	matches := 0
	for _, t := range patternTokens {
		if sigSet[t] {
			matches++
		}
	}
	return float64(matches) / float64(len(patternTokens))
}

// unresolvedPlaceholder builds the deterministic placeholder Result for a
// dependency name that resolves to no known symbol, per spec §4.11: "a
// deterministic identifier derived from the name hash ... metadata
// unresolved=true, relevance 0.5". xxhash.Sum64String gives the same
// name -> same id stability the original source got from hashing into a
// UUID; we only need a stable uint64 symbol id, not a 128-bit one.
func unresolvedPlaceholder(docID [16]byte, filePath, depName string) Result {
	return Result{
		SymbolID:      xxhash.Sum64String(depName),
		DocumentID:    docID,
		Name:          depName,
		Type:          TypeImport,
		FilePath:      filePath,
		QualifiedName: depName,
		Relevance:     0.5,
		Metadata:      map[string]string{"unresolved": "true"},
	}
}

func (idx *Index) resolveDependencies(target Record) []Result {
	var out []Result
	for _, dep := range target.Dependencies {
		matches := idx.Store.FindByName(dep)
		if len(matches) > 0 {
			out = append(out, resultFrom(matches[0], 1.0))
			continue
		}
		out = append(out, unresolvedPlaceholder(target.DocumentID, target.FilePath, dep))
	}
	return out
}

func (idx *Index) resolveDependents(target Record) []Result {
	var out []Result
	for _, id := range target.Dependents {
		if r, ok := idx.Store.Get(id); ok {
			out = append(out, resultFrom(r, 1.0))
		}
	}
	return out
}

func (idx *Index) searchDependencies(args DependencySearchArgs) []Result {
	var out []Result
	for _, target := range idx.Store.FindByName(args.Target) {
		switch args.Direction {
		case Dependencies:
			out = append(out, idx.resolveDependencies(target)...)
		case Dependents:
			out = append(out, idx.resolveDependents(target)...)
		case Both:
			out = append(out, idx.resolveDependencies(target)...)
			out = append(out, idx.resolveDependents(target)...)
		}
	}
	return out
}

func (idx *Index) compileCustom(pattern string) *regexp.Regexp {
	idx.customMu.RLock()
	if re, ok := idx.custom[pattern]; ok {
		idx.customMu.RUnlock()
		return re
	}
	idx.customMu.RUnlock()

	re, err := regexp.Compile(pattern)
	if err != nil {
		// Malformed custom regex produces an empty result rather than an
		// error, per spec §4.11.
		return nil
	}
	idx.customMu.Lock()
	idx.custom[pattern] = re
	idx.customMu.Unlock()
	return re
}

func scopeMatches(scope Scope, t Type) bool {
	switch scope {
	case ScopeFunctions:
		return t == TypeFunction || t == TypeMethod
	case ScopeComments:
		return t == TypeComment
	case ScopeImports:
		return t == TypeImport
	default:
		return true
	}
}

func (idx *Index) searchPatterns(args PatternSearchArgs) ([]Result, error) {
	var re *regexp.Regexp
	if args.Pattern == PatternCustom {
		re = idx.compileCustom(args.CustomRegex)
		if re == nil {
			return nil, nil
		}
	} else {
		re = wellKnownPatterns[args.Pattern]
	}

	var out []Result
	for _, path := range idx.Store.AllFiles() {
		for _, r := range idx.Store.FindByFile(path) {
			if !scopeMatches(args.Scope, r.Type) {
				continue
			}
			if re.MatchString(r.Text) {
				out = append(out, resultFrom(r, 1.0))
			}
		}
	}
	if len(out) > idx.maxResults {
		out = out[:idx.maxResults]
	}
	return out, nil
}

// searchCombined runs each sub-query independently (never recursing into a
// nested Combined, per spec §4.11) and folds the results with Op. Not is
// the first query's results minus the union of the rest.
func (idx *Index) searchCombined(args CombinedArgs) ([]Result, error) {
	if len(args.Queries) == 0 {
		return nil, nil
	}
	perQuery := make([][]Result, len(args.Queries))
	for i, q := range args.Queries {
		if q.Kind == KindCombined {
			perQuery[i] = nil
			continue
		}
		r, err := idx.Search(q)
		if err != nil {
			return nil, err
		}
		perQuery[i] = r
	}

	switch args.Op {
	case OpOr:
		seen := make(map[uint64]bool)
		var out []Result
		for _, rs := range perQuery {
			for _, r := range rs {
				if seen[r.SymbolID] {
					continue
				}
				seen[r.SymbolID] = true
				out = append(out, r)
			}
		}
		return out, nil
	case OpAnd:
		counts := make(map[uint64]int)
		byID := make(map[uint64]Result)
		for _, rs := range perQuery {
			present := make(map[uint64]bool)
			for _, r := range rs {
				if present[r.SymbolID] {
					continue
				}
				present[r.SymbolID] = true
				counts[r.SymbolID]++
				byID[r.SymbolID] = r
			}
		}
		var out []Result
		for id, c := range counts {
			if c == len(args.Queries) {
				out = append(out, byID[id])
			}
		}
		return out, nil
	case OpNot:
		exclude := make(map[uint64]bool)
		for _, rs := range perQuery[1:] {
			for _, r := range rs {
				exclude[r.SymbolID] = true
			}
		}
		var out []Result
		for _, r := range perQuery[0] {
			if !exclude[r.SymbolID] {
				out = append(out, r)
			}
		}
		return out, nil
	default:
		return nil, kotaerr.Field(kotaerr.ValidationInvalidInput, "op", "unknown combinator")
	}
}
