// Package graph implements C7: a native, page-based node/edge store with a
// write-ahead log and crash recovery, generalized from the teacher's
// read-only compound shard format (indexfile.go's page/mmap discipline,
// toc.go's section-header and version-refusal discipline) into a
// read-write paged store.
package graph

import "time"

// NodeID identifies a graph node. Unlike types.DocumentID, graph nodes are
// not restricted to documents (symbols, files, and other entities all
// live in the same store), so the id is an opaque string rather than a
// fixed-width UUID.
type NodeID string

// Location is a source span: start/end line and column, 1-indexed.
type Location struct {
	StartLine uint32
	StartCol  uint32
	EndLine   uint32
	EndCol    uint32
}

// NodeRecord is one node's stored state.
type NodeRecord struct {
	ID         NodeID
	Type       string
	Name       string // qualified name, indexed by nodesByName
	FilePath   string
	Loc        Location
	Properties map[string]string
	Created    time.Time
	Updated    time.Time
}

// RelationKind disambiguates multiple edges between the same two nodes.
type RelationKind string

// GraphEdge is one edge's stored state. Context is an optional source
// snippet around the relation site.
type GraphEdge struct {
	Kind       RelationKind
	Loc        Location
	Context    string
	Properties map[string]string
	Created    time.Time
}

// equalPayload reports whether two edges are byte-equal for the purposes
// of WAL recovery's duplicate-insert detection (spec's "byte-equal
// payload" idempotence rule).
func (e GraphEdge) equalPayload(other GraphEdge) bool {
	if e.Kind != other.Kind || e.Loc != other.Loc || e.Context != other.Context {
		return false
	}
	if !e.Created.Equal(other.Created) {
		return false
	}
	if len(e.Properties) != len(other.Properties) {
		return false
	}
	for k, v := range e.Properties {
		if other.Properties[k] != v {
			return false
		}
	}
	return true
}
