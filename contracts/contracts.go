// Package contracts defines the capability records — plain Go interfaces —
// that the wrapper stack (wrappers, optimize) decorates transparently.
// Per spec §9's design note, dynamic dispatch over Storage/Index is modeled
// with these interfaces rather than a dynamically-typed polymorphism
// layer: any concrete type satisfying Storage or Index can be passed to a
// wrapper constructor.
package contracts

import (
	"context"

	"github.com/kotadb/kotadb-go/types"
)

// Storage is the content store's capability surface: opaque byte content
// keyed by document identifier.
type Storage interface {
	Insert(ctx context.Context, doc types.Document) error
	Get(ctx context.Context, id types.DocumentID) (types.Document, error)
	Update(ctx context.Context, doc types.Document) error
	Delete(ctx context.Context, id types.DocumentID) (bool, error)
	List(ctx context.Context) ([]types.Document, error)
}

// SearchResult is one ranked hit from an Index.Search call.
type SearchResult struct {
	ID    types.DocumentID
	Path  types.ValidatedPath
	Score float64
}

// Index is the common contract shared by the primary index, the two
// trigram index forms, and anything the wrapper stack decorates. Insert
// stores a (id, path) pair (and, for text-bearing indices, is fed through
// InsertWithContent instead — see index/trigram); Search answers a Query;
// Delete removes an identifier; List returns every indexed identifier
// (wildcard listing, used by the primary index and the post-ingestion
// validator).
type Index interface {
	Insert(ctx context.Context, id types.DocumentID, path types.ValidatedPath) error
	Search(ctx context.Context, q types.Query) ([]SearchResult, error)
	Delete(ctx context.Context, id types.DocumentID) error
	List(ctx context.Context) ([]SearchResult, error)
}
