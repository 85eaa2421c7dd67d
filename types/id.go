// Package types holds the compile-time-checked value types every core
// component exchanges: document identifiers, validated paths/titles/tags,
// limits, and search queries. ValidatedPath, ValidatedTitle, Tag,
// ValidatedLimit and OffsetPageID have unexported fields, so their
// constructors are the only way to obtain a valid value. Document and Query
// have exported fields and can also be built as struct literals that skip
// the builders' checks.
package types

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/kotadb/kotadb-go/kotaerr"
)

// DocumentID is a 128-bit identifier. The all-zero value is never valid and
// is reserved as the type's zero value so a forgotten assignment is caught
// by NewDocumentID / ParseDocumentID rather than silently treated as real.
type DocumentID [16]byte

// NewDocumentID mints a fresh, collision-safe identifier.
func NewDocumentID() DocumentID {
	return DocumentID(uuid.New())
}

// ParseDocumentID parses the canonical hyphenated hex text form.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return DocumentID{}, kotaerr.Field(kotaerr.ValidationInvalidInput, "id", "malformed document id: "+err.Error())
	}
	id := DocumentID(u)
	if id.IsZero() {
		return DocumentID{}, kotaerr.Field(kotaerr.ValidationInvalidInput, "id", "all-zero document id is forbidden")
	}
	return id, nil
}

// IsZero reports whether id is the forbidden all-zero value.
func (id DocumentID) IsZero() bool {
	return id == DocumentID{}
}

// String returns the canonical text form.
func (id DocumentID) String() string {
	return uuid.UUID(id).String()
}

// Less gives DocumentID a total, stable order so callers needing
// deterministic tie-breaks (trigram search result ranking, B+ tree key
// order) have one without relying on map iteration order.
func (id DocumentID) Less(other DocumentID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// Uint64 returns a stable 64-bit projection of id (its two 8-byte halves
// XORed), for callers that want a compact hashable key. Nothing in this
// module calls it.
func (id DocumentID) Uint64() uint64 {
	return binary.BigEndian.Uint64(id[:8]) ^ binary.BigEndian.Uint64(id[8:])
}
