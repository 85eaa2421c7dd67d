package symbol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func seedCalculateSymbols(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	s.Insert(Record{
		Name: "calculate_total", QualifiedName: "pkg.calculate_total",
		Type: TypeFunction, Language: "rust", FilePath: "src/lib.rs",
		Text: "fn calculate_total(items: Vec<Item>) -> i32",
	})
	s.Insert(Record{
		Name: "calculate_average", QualifiedName: "pkg.calculate_average",
		Type: TypeFunction, Language: "rust", FilePath: "src/lib.rs",
		Text: "fn calculate_average(items: Vec<Item>) -> f64",
	})
	s.Insert(Record{
		Name: "unrelated", QualifiedName: "pkg.unrelated",
		Type: TypeFunction, Language: "rust", FilePath: "src/lib.rs",
		Text: "fn unrelated() -> bool",
	})
	return s
}

func TestSymbolSearchFuzzyFindsBothCalculateFunctions(t *testing.T) {
	store := seedCalculateSymbols(t)
	idx := NewIndex(store)

	results, err := idx.Search(SymbolSearch("calculate", true))
	require.NoError(t, err)
	require.Len(t, results, 2)
	names := map[string]bool{}
	for _, r := range results {
		names[r.Name] = true
	}
	require.True(t, names["calculate_total"])
	require.True(t, names["calculate_average"])
}

func TestSymbolSearchExactMatch(t *testing.T) {
	store := seedCalculateSymbols(t)
	idx := NewIndex(store)

	results, err := idx.Search(SymbolSearch("calculate_total", false))
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "calculate_total", results[0].Name)
}

func TestSignatureSearchFiltersByLanguage(t *testing.T) {
	store := seedCalculateSymbols(t)
	idx := NewIndex(store)

	results, err := idx.Search(SignatureSearch("i32", "rust"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "calculate_total", results[0].Name)

	empty, err := idx.Search(SignatureSearch("i32", "go"))
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestDependencySearchResolvedAndUnresolved(t *testing.T) {
	store := NewStore()
	store.Insert(Record{Name: "helper", QualifiedName: "pkg.helper", Type: TypeFunction, FilePath: "a.go"})
	store.Insert(Record{
		Name: "caller", QualifiedName: "pkg.caller", Type: TypeFunction, FilePath: "a.go",
		Dependencies: []string{"helper", "missing_fn"},
	})

	idx := NewIndex(store)
	results, err := idx.Search(DependencySearch("caller", Dependencies))
	require.NoError(t, err)
	require.Len(t, results, 2)

	var resolved, unresolved *Result
	for i := range results {
		if results[i].Name == "helper" {
			resolved = &results[i]
		}
		if results[i].Name == "missing_fn" {
			unresolved = &results[i]
		}
	}
	require.NotNil(t, resolved)
	require.Equal(t, 1.0, resolved.Relevance)
	require.NotNil(t, unresolved)
	require.Equal(t, 0.5, unresolved.Relevance)
	require.Equal(t, "true", unresolved.Metadata["unresolved"])

	// Repeat queries produce the same placeholder id (deterministic hash).
	results2, err := idx.Search(DependencySearch("caller", Dependencies))
	require.NoError(t, err)
	var unresolved2 *Result
	for i := range results2 {
		if results2[i].Name == "missing_fn" {
			unresolved2 = &results2[i]
		}
	}
	require.Equal(t, unresolved.SymbolID, unresolved2.SymbolID)
}

func TestDependencySearchDependentsBackFilledEitherOrder(t *testing.T) {
	store := NewStore()
	// The dependent lands before its target: Dependents must still be
	// back-filled when the target arrives.
	store.Insert(Record{
		Name: "caller", QualifiedName: "pkg.caller", Type: TypeFunction, FilePath: "a.go",
		Dependencies: []string{"helper"},
	})
	store.Insert(Record{Name: "helper", QualifiedName: "pkg.helper", Type: TypeFunction, FilePath: "b.go"})

	idx := NewIndex(store)
	results, err := idx.Search(DependencySearch("helper", Dependents))
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "caller", results[0].Name)

	// Removing the dependent's file removes the reverse edge.
	store.RemoveFile("a.go")
	results, err = idx.Search(DependencySearch("helper", Dependents))
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestDependencySearchBothDirections(t *testing.T) {
	store := NewStore()
	store.Insert(Record{Name: "base", QualifiedName: "pkg.base", Type: TypeFunction, FilePath: "a.go"})
	store.Insert(Record{
		Name: "helper", QualifiedName: "pkg.helper", Type: TypeFunction, FilePath: "a.go",
		Dependencies: []string{"base"},
	})
	store.Insert(Record{
		Name: "caller", QualifiedName: "pkg.caller", Type: TypeFunction, FilePath: "a.go",
		Dependencies: []string{"helper"},
	})

	idx := NewIndex(store)
	results, err := idx.Search(DependencySearch("helper", Both))
	require.NoError(t, err)
	require.Len(t, results, 2)
	names := map[string]bool{}
	for _, r := range results {
		names[r.Name] = true
	}
	require.True(t, names["base"], "dependency direction missing")
	require.True(t, names["caller"], "dependent direction missing")
}

func TestPatternSearchTodoComments(t *testing.T) {
	store := NewStore()
	store.Insert(Record{Name: "c1", Type: TypeComment, FilePath: "a.go", Text: "// TODO: fix this"})
	store.Insert(Record{Name: "c2", Type: TypeComment, FilePath: "a.go", Text: "// just a note"})

	idx := NewIndex(store)
	results, err := idx.Search(PatternSearch(PatternTodoComments, ScopeComments, ""))
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "c1", results[0].Name)
}

func TestPatternSearchMalformedCustomRegexIsEmpty(t *testing.T) {
	store := NewStore()
	store.Insert(Record{Name: "x", Type: TypeFunction, FilePath: "a.go", Text: "whatever"})
	idx := NewIndex(store)

	results, err := idx.Search(PatternSearch(PatternCustom, ScopeAll, "(unterminated"))
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestCombinedQueryNotExcludesSecondQueryResults(t *testing.T) {
	store := seedCalculateSymbols(t)
	idx := NewIndex(store)

	all, err := idx.Search(SymbolSearch("calculate", true))
	require.NoError(t, err)
	require.Len(t, all, 2)

	only := CombinedSearch(OpNot, SymbolSearch("calculate", true), SymbolSearch("calculate_average", false))
	results, err := idx.Search(only)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "calculate_total", results[0].Name)
}

func TestCombinedQueryIgnoresNestedCombined(t *testing.T) {
	store := seedCalculateSymbols(t)
	idx := NewIndex(store)

	nested := CombinedSearch(OpOr, SymbolSearch("calculate_total", false), CombinedSearch(OpAnd))
	results, err := idx.Search(nested)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestReplaceFileIsIncremental(t *testing.T) {
	store := NewStore()
	store.Insert(Record{Name: "old_fn", Type: TypeFunction, FilePath: "f.go", Text: "fn old"})

	idx := NewIndex(store)
	before, err := idx.Search(SymbolSearch("old_fn", false))
	require.NoError(t, err)
	require.Len(t, before, 1)

	store.ReplaceFile("f.go", []Record{{Name: "new_fn", Type: TypeFunction, Text: "fn new"}})

	afterOld, err := idx.Search(SymbolSearch("old_fn", false))
	require.NoError(t, err)
	require.Empty(t, afterOld)

	afterNew, err := idx.Search(SymbolSearch("new_fn", false))
	require.NoError(t, err)
	require.Len(t, afterNew, 1)
}
