package types

import (
	"github.com/kotadb/kotadb-go/kotaerr"
)

// MinTermLength / MaxTermLength bound individual search terms after
// sanitisation, per §3 and the sanitiser's public contract in §6.
const (
	MinTermLength = 1
	MaxTermLength = 1024
)

// Query is a validated set of search terms plus optional tag/path filters
// and pagination, per spec §3.
type Query struct {
	Terms       []string
	TagFilter   []Tag
	PathPattern string
	Limit       ValidatedLimit
	Offset      OffsetPageID
}

// QueryBuilder validates each field as it is supplied.
type QueryBuilder struct {
	terms       []string
	tagFilter   []Tag
	pathPattern string
	limit       ValidatedLimit
	offset      OffsetPageID
	err         error
}

func NewQueryBuilder() *QueryBuilder {
	limit, _ := NewValidatedLimit(DefaultSearchLimit, DefaultSearchLimit*10)
	offset, _ := NewOffsetPageID(1)
	return &QueryBuilder{limit: limit, offset: offset}
}

func (b *QueryBuilder) WithTerms(terms []string) *QueryBuilder {
	for _, t := range terms {
		if len(t) < MinTermLength || len(t) > MaxTermLength {
			b.err = kotaerr.Field(kotaerr.ValidationInvalidInput, "terms", "search term length out of bounds")
			return b
		}
	}
	b.terms = terms
	return b
}

func (b *QueryBuilder) WithTagFilter(tags []Tag) *QueryBuilder {
	b.tagFilter = tags
	return b
}

func (b *QueryBuilder) WithPathPattern(p string) *QueryBuilder {
	b.pathPattern = p
	return b
}

func (b *QueryBuilder) WithLimit(l ValidatedLimit) *QueryBuilder {
	b.limit = l
	return b
}

func (b *QueryBuilder) WithOffset(o OffsetPageID) *QueryBuilder {
	b.offset = o
	return b
}

func (b *QueryBuilder) Build() (Query, error) {
	if b.err != nil {
		return Query{}, b.err
	}
	return Query{
		Terms:       b.terms,
		TagFilter:   b.tagFilter,
		PathPattern: b.pathPattern,
		Limit:       b.limit,
		Offset:      b.offset,
	}, nil
}
