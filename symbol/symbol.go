// Package symbol implements C12: a code-aware query layer over
// pre-extracted symbol records (the core never parses source itself — see
// spec §1's external-collaborator boundary for tree-sitter/ctags
// extraction). Record shapes are grounded on the teacher's own
// ctags-derived Symbol type (api.go's Sym/Kind/Parent/ParentKind), widened
// with qualified-name, location, dependency, and language fields the
// original Rust symbol index tracked.
package symbol

import (
	"path/filepath"

	"github.com/kotadb/kotadb-go/types"
)

// Type is the kind of a symbol record, mirroring the original source's
// SymbolType enum closely enough that DependencySearch's Import placeholder
// records can reuse it.
type Type string

const (
	TypeFunction  Type = "function"
	TypeMethod    Type = "method"
	TypeClass     Type = "class"
	TypeStruct    Type = "struct"
	TypeInterface Type = "interface"
	TypeVariable  Type = "variable"
	TypeConstant  Type = "constant"
	TypeImport    Type = "import"
	TypeComment   Type = "comment"
	TypeOther     Type = "other"
)

// Location is a symbol's span within its file, 1-indexed per the teacher's
// LineFragmentMatch convention.
type Location struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Record is one pre-extracted symbol, as supplied by the external
// tree-sitter/ctags pipeline. Text is the verbatim source slice the symbol
// spans (its signature line for functions/methods, the comment body for
// comments); it is what PatternSearch regexes run against.
type Record struct {
	ID           uint64 // dense id, assigned on ingestion (Store.Insert)
	DocumentID   types.DocumentID
	Name         string
	QualifiedName string
	Type         Type
	Language     string
	FilePath     string
	Loc          Location
	Text         string
	Dependencies []string // names this symbol references, matched against base names
	// Dependents holds the ids of symbols whose Dependencies name this
	// one. Store maintains it on insert and file removal, in either
	// insertion order (dependent first or target first).
	Dependents []uint64
	Metadata     map[string]string
}

func (r Record) baseName() string {
	if r.Name != "" {
		return r.Name
	}
	return filepath.Base(r.QualifiedName)
}
