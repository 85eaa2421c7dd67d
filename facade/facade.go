// Package facade composes the content store, the primary index, the text
// trigram index, the vector index, and the coordinated-deletion and
// post-ingestion-validation services into the single entry point a binary
// wires up, per spec §2's write/read data flow: writes fan out content
// store -> primary -> trigram -> vector in that order; deletes go through
// coordinate.Service; reads dispatch directly to whichever index answers
// the query. This mirrors the teacher's own top-level Repository/Indexer
// composition in its index server command, scaled down to one process.
package facade

import (
	"context"
	"path/filepath"

	"github.com/kotadb/kotadb-go/coordinate"
	"github.com/kotadb/kotadb-go/index/primary"
	"github.com/kotadb/kotadb-go/index/trigram"
	"github.com/kotadb/kotadb-go/index/vector"
	"github.com/kotadb/kotadb-go/ingestcheck"
	"github.com/kotadb/kotadb-go/kotaerr"
	"github.com/kotadb/kotadb-go/sanitize"
	"github.com/kotadb/kotadb-go/store"
	"github.com/kotadb/kotadb-go/types"
)

// Database is the composition root: every core resource a document passes
// through, opened under one root directory.
type Database struct {
	store   *store.ContentStore
	primary *primary.Index
	trigram *trigram.TextIndex
	vector  *vector.Index

	coord     *coordinate.Service
	validator *ingestcheck.Validator
}

// Open opens (creating if absent) every backing resource rooted at dir,
// and wires the coordination and validation services over them. dimension
// is the fixed vector dimension new documents' embeddings must match,
// per spec §4.5; pass 0 if the deployment carries no embeddings.
func Open(dir string, dimension int) (*Database, error) {
	cs, err := store.Open(filepath.Join(dir, "store"))
	if err != nil {
		return nil, err
	}
	pi, err := primary.Open(filepath.Join(dir, "primary"))
	if err != nil {
		return nil, err
	}
	ti, err := trigram.OpenText(filepath.Join(dir, "trigram"))
	if err != nil {
		return nil, err
	}
	vi, err := vector.Open(filepath.Join(dir, "vector"), dimension, vector.Cosine)
	if err != nil {
		return nil, err
	}

	db := &Database{
		store:   cs,
		primary: pi,
		trigram: ti,
		vector:  vi,
		coord:   coordinate.New(cs, pi, ti),
	}
	db.validator = ingestcheck.New(cs, pi, ti)
	return db, nil
}

// Close flushes and closes every backing resource.
func (db *Database) Close() error {
	if err := db.trigram.Close(); err != nil {
		return err
	}
	if err := db.vector.Close(); err != nil {
		return err
	}
	if err := db.primary.Close(); err != nil {
		return err
	}
	return db.store.Close()
}

// Insert writes doc through every resource that should carry it: content
// store, primary index, trigram index (with the document's own content so
// free-text search sees it), and the vector index if doc carries an
// embedding, in that order, per spec §2.
func (db *Database) Insert(ctx context.Context, doc types.Document) error {
	if err := db.store.Insert(ctx, doc); err != nil {
		return err
	}
	if err := db.primary.Insert(ctx, doc.ID, doc.Path); err != nil {
		return err
	}
	if err := db.trigram.InsertWithContent(ctx, doc.ID, doc.Path, doc.Title.String(), string(doc.Content)); err != nil {
		return err
	}
	if len(doc.Embedding) > 0 {
		if err := db.vector.Insert(ctx, doc.ID, doc.Embedding); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a document's full content by identifier.
func (db *Database) Get(ctx context.Context, id types.DocumentID) (types.Document, error) {
	return db.store.Get(ctx, id)
}

// Delete runs the coordinated cross-index deletion sequence for id,
// additionally removing any vector entry (not itself part of the
// coordinated protocol's fixed three resources, but kept consistent on a
// best-effort basis since it can only ever be a subset of primary's
// entries).
func (db *Database) Delete(ctx context.Context, id types.DocumentID) (bool, error) {
	existed, err := db.coord.DeleteDocument(ctx, id)
	if err != nil || !existed {
		return existed, err
	}
	if err := db.vector.RemoveVector(ctx, id); err != nil && kotaerr.Of(err) != kotaerr.NotFound {
		return true, err
	}
	return true, nil
}

// SearchText runs terms (after sanitisation) against the trigram index.
func (db *Database) SearchText(ctx context.Context, rawQuery string, limit types.ValidatedLimit) ([]types.DocumentID, error) {
	sanitized, err := sanitize.Sanitize(rawQuery)
	if err != nil {
		return nil, err
	}
	q, err := types.NewQueryBuilder().WithTerms(sanitized.Terms).WithLimit(limit).Build()
	if err != nil {
		return nil, err
	}
	results, err := db.trigram.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	ids := make([]types.DocumentID, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids, nil
}

// SearchVector runs a k-NN query against the vector index.
func (db *Database) SearchVector(ctx context.Context, query []float32, k int) ([]vector.ScoredResult, error) {
	return db.vector.SearchKNN(ctx, query, k)
}

// Validate runs the post-ingestion validator over the current state of
// every index.
func (db *Database) Validate(ctx context.Context) (ingestcheck.ValidationReport, error) {
	return db.validator.Run(ctx)
}

// ReadOnlyStore exposes the coordinate.ReadOnlyStore view for callers that
// should never be handed a write-capable handle.
func (db *Database) ReadOnlyStore() coordinate.ReadOnlyStore {
	return db.coord.ReadOnly()
}
