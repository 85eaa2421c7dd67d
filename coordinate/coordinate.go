// Package coordinate implements C8: the coordinated cross-index deletion
// service. It is the only place document deletion is allowed to touch
// more than one backing resource; independent reads bypass it entirely.
package coordinate

import (
	"context"

	"github.com/kotadb/kotadb-go/contracts"
	"github.com/kotadb/kotadb-go/kotaerr"
	"github.com/kotadb/kotadb-go/types"
)

// ReadOnlyStore is the narrower surface handed to callers that only need
// to get or list documents. It resolves spec.md §9's open question about
// get_storage() potentially returning a handle usable for writes: this
// interface has no Insert/Update/Delete, so there is no write path to
// guard against. Callers must not attempt to type-assert their way
// around this to reach writes — the precondition is enforced by the type
// system, not by a runtime check.
type ReadOnlyStore interface {
	Get(ctx context.Context, id types.DocumentID) (types.Document, error)
	List(ctx context.Context) ([]types.Document, error)
}

// Service holds shared handles to the content store, the primary index,
// and the trigram index, and is the sole coordinator of deletions that
// must succeed or fail across all three.
type Service struct {
	store   contracts.Storage
	primary contracts.Index
	trigram contracts.Index
}

// New constructs a coordination service over the three backing resources.
func New(store contracts.Storage, primary, trigram contracts.Index) *Service {
	return &Service{store: store, primary: primary, trigram: trigram}
}

// ReadOnly returns a ReadOnlyStore view of the content store, for callers
// that only need get/list semantics and must not write.
func (s *Service) ReadOnly() ReadOnlyStore {
	return s.store
}

// DeleteDocument runs the store -> primary -> trigram deletion sequence.
// Per spec §4.7, this is deliberately not transactional: once the store
// delete succeeds, a later failure is surfaced as
// IndexSynchronizationFailure rather than rolled back, because the
// indices cannot be rolled back correctly from this layer.
func (s *Service) DeleteDocument(ctx context.Context, id types.DocumentID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, kotaerr.Wrap(kotaerr.Cancelled, err, "delete document cancelled")
	}

	existed, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}

	if err := s.primary.Delete(ctx, id); err != nil {
		return false, kotaerr.Component("primary", "primary index delete failed after store delete succeeded")
	}

	if err := s.trigram.Delete(ctx, id); err != nil {
		return false, kotaerr.Component("trigram", "trigram index delete failed after store and primary deletes succeeded")
	}

	return true, nil
}
