package types

import (
	"fmt"

	"github.com/kotadb/kotadb-go/kotaerr"
)

// Per-call-site default maxima for ValidatedLimit, consolidating spec §9's
// Open Question ("(value, max) in some call sites, a single argument in
// others") onto one constructor shape with named defaults.
const (
	DefaultSearchLimit  = 100
	DefaultTagLimit     = 128
	DefaultOffsetLimit  = 1_000_000
	DefaultResultLimit  = 5_000
	DefaultDocumentsCap = 10_000
)

// ValidatedLimit is a positive integer no larger than a caller-supplied
// ceiling.
type ValidatedLimit struct {
	value int
	max   int
}

// NewValidatedLimit validates value against max. Every call site passes an
// explicit max; use one of the Default* constants above when the spec does
// not name a specific ceiling.
func NewValidatedLimit(value, max int) (ValidatedLimit, error) {
	if value <= 0 {
		return ValidatedLimit{}, kotaerr.Field(kotaerr.ValidationInvalidInput, "limit", "limit must be positive")
	}
	if value > max {
		return ValidatedLimit{}, kotaerr.Field(kotaerr.ValidationInvalidInput, "limit", fmt.Sprintf("limit %d exceeds maximum %d", value, max))
	}
	return ValidatedLimit{value: value, max: max}, nil
}

func (l ValidatedLimit) Value() int { return l.value }
func (l ValidatedLimit) Max() int   { return l.max }

// OffsetPageID is a positive page id used for offset-based pagination.
type OffsetPageID struct{ value int }

func NewOffsetPageID(value int) (OffsetPageID, error) {
	if value <= 0 {
		return OffsetPageID{}, kotaerr.Field(kotaerr.ValidationInvalidInput, "offset", "offset page id must be positive")
	}
	return OffsetPageID{value: value}, nil
}

func (o OffsetPageID) Value() int { return o.value }
