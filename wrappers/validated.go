package wrappers

import (
	"context"

	"github.com/kotadb/kotadb-go/contracts"
	"github.com/kotadb/kotadb-go/kotaerr"
	"github.com/kotadb/kotadb-go/types"
)

// ValidatedStorage re-checks every document's invariants before it reaches
// inner and enforces insert-time identifier uniqueness (spec §4.9: "Calls
// into the C1 validators on every input; enforces ID uniqueness for
// insert"). types.Document's own builder already enforces these at
// construction, but callers can still assemble a bare struct literal that
// bypasses the builder — this wrapper is the last line of defense before a
// Storage implementation sees it.
type ValidatedStorage struct {
	inner contracts.Storage
}

func NewValidatedStorage(inner contracts.Storage) *ValidatedStorage {
	return &ValidatedStorage{inner: inner}
}

func validateDocument(d types.Document) error {
	if d.ID.IsZero() {
		return kotaerr.Field(kotaerr.ValidationInvalidInput, "id", "all-zero document id is forbidden")
	}
	if d.Updated.Before(d.Created) {
		return kotaerr.Field(kotaerr.ValidationInvariant, "updated", "updated must be >= created")
	}
	return nil
}

func (v *ValidatedStorage) Insert(ctx context.Context, doc types.Document) error {
	if err := validateDocument(doc); err != nil {
		return err
	}
	if _, err := v.inner.Get(ctx, doc.ID); err == nil {
		return kotaerr.New(kotaerr.AlreadyExists, "document id already present")
	}
	return v.inner.Insert(ctx, doc)
}

func (v *ValidatedStorage) Get(ctx context.Context, id types.DocumentID) (types.Document, error) {
	return v.inner.Get(ctx, id)
}

func (v *ValidatedStorage) Update(ctx context.Context, doc types.Document) error {
	if err := validateDocument(doc); err != nil {
		return err
	}
	existing, err := v.inner.Get(ctx, doc.ID)
	if err != nil {
		return err
	}
	if !doc.Updated.After(existing.Updated) {
		return kotaerr.Field(kotaerr.ValidationInvariant, "updated", "updated must strictly increase on update")
	}
	return v.inner.Update(ctx, doc)
}

func (v *ValidatedStorage) Delete(ctx context.Context, id types.DocumentID) (bool, error) {
	return v.inner.Delete(ctx, id)
}

func (v *ValidatedStorage) List(ctx context.Context) ([]types.Document, error) {
	return v.inner.List(ctx)
}

var _ contracts.Storage = (*ValidatedStorage)(nil)

// ValidatedIndex rejects the all-zero identifier on Insert. Unlike
// ValidatedStorage it does not check identifier uniqueness; contracts.Index
// has no point lookup to check against.
type ValidatedIndex struct {
	inner contracts.Index
}

func NewValidatedIndex(inner contracts.Index) *ValidatedIndex {
	return &ValidatedIndex{inner: inner}
}

func (v *ValidatedIndex) Insert(ctx context.Context, id types.DocumentID, path types.ValidatedPath) error {
	if id.IsZero() {
		return kotaerr.Field(kotaerr.ValidationInvalidInput, "id", "all-zero document id is forbidden")
	}
	return v.inner.Insert(ctx, id, path)
}

func (v *ValidatedIndex) Search(ctx context.Context, q types.Query) ([]contracts.SearchResult, error) {
	return v.inner.Search(ctx, q)
}

func (v *ValidatedIndex) Delete(ctx context.Context, id types.DocumentID) error {
	return v.inner.Delete(ctx, id)
}

func (v *ValidatedIndex) List(ctx context.Context) ([]contracts.SearchResult, error) {
	return v.inner.List(ctx)
}

var _ contracts.Index = (*ValidatedIndex)(nil)
