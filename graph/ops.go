package graph

import (
	"context"
	"time"

	"github.com/kotadb/kotadb-go/kotaerr"
)

// InsertNode adds or replaces a node record, WAL-first then in-memory.
func (s *Store) InsertNode(ctx context.Context, n NodeRecord) error {
	if err := ctx.Err(); err != nil {
		return kotaerr.Wrap(kotaerr.Cancelled, err, "insert node cancelled")
	}
	if err := s.appendWAL(walEntry{op: opNodeInsert, node: n}); err != nil {
		return err
	}

	s.nodesMu.Lock()
	s.nodesByTypeMu.Lock()
	s.nodesByNameMu.Lock()
	s.indexNodeLocked(n)
	s.nodesByNameMu.Unlock()
	s.nodesByTypeMu.Unlock()
	s.nodesMu.Unlock()
	return nil
}

// UpdateNode replaces an existing node's record.
func (s *Store) UpdateNode(ctx context.Context, n NodeRecord) error {
	if err := ctx.Err(); err != nil {
		return kotaerr.Wrap(kotaerr.Cancelled, err, "update node cancelled")
	}
	s.nodesMu.RLock()
	_, ok := s.nodes[n.ID]
	s.nodesMu.RUnlock()
	if !ok {
		return kotaerr.New(kotaerr.NotFound, "node not present")
	}
	if err := s.appendWAL(walEntry{op: opNodeUpdate, node: n}); err != nil {
		return err
	}

	s.nodesMu.Lock()
	s.nodesByTypeMu.Lock()
	s.nodesByNameMu.Lock()
	s.indexNodeLocked(n)
	s.nodesByNameMu.Unlock()
	s.nodesByTypeMu.Unlock()
	s.nodesMu.Unlock()
	return nil
}

// GetNode returns a node by id.
func (s *Store) GetNode(ctx context.Context, id NodeID) (NodeRecord, bool) {
	s.nodesMu.RLock()
	defer s.nodesMu.RUnlock()
	n, ok := s.nodes[id]
	return n, ok
}

// DeleteNode unlinks all incoming and outgoing edges from both indices
// (with matching counter decomposition implied by bucket removal), then
// removes the node from the type/name indices and the node map.
func (s *Store) DeleteNode(ctx context.Context, id NodeID) error {
	if err := ctx.Err(); err != nil {
		return kotaerr.Wrap(kotaerr.Cancelled, err, "delete node cancelled")
	}
	if err := s.appendWAL(walEntry{op: opNodeDelete, node: NodeRecord{ID: id}}); err != nil {
		return err
	}

	s.nodesMu.Lock()
	s.edgesOutMu.Lock()
	s.edgesInMu.Lock()
	s.nodesByTypeMu.Lock()
	s.nodesByNameMu.Lock()

	for to, bucket := range s.edgesOut[id] {
		s.decrementBucketLocked(bucket)
		delete(s.edgesIn[to], id)
	}
	delete(s.edgesOut, id)
	for from, bucket := range s.edgesIn[id] {
		if from != id { // self-edges were already counted in the outgoing pass
			s.decrementBucketLocked(bucket)
		}
		delete(s.edgesOut[from], id)
	}
	delete(s.edgesIn, id)
	s.unindexNodeLocked(id)

	s.nodesByNameMu.Unlock()
	s.nodesByTypeMu.Unlock()
	s.edgesInMu.Unlock()
	s.edgesOutMu.Unlock()
	s.nodesMu.Unlock()
	return nil
}

// StoreEdge appends an edge to both the forward and reverse indices.
func (s *Store) StoreEdge(ctx context.Context, from, to NodeID, edge GraphEdge) error {
	if err := ctx.Err(); err != nil {
		return kotaerr.Wrap(kotaerr.Cancelled, err, "store edge cancelled")
	}
	if edge.Created.IsZero() {
		edge.Created = time.Now().UTC()
	}
	if err := s.appendWAL(walEntry{op: opEdgeInsert, from: from, to: to, edge: edge}); err != nil {
		return err
	}
	s.edgesOutMu.Lock()
	s.edgesInMu.Lock()
	s.indexEdgeLocked(from, to, edge)
	s.edgesInMu.Unlock()
	s.edgesOutMu.Unlock()
	return nil
}

// RemoveEdge removes every edge between from and to, regardless of kind.
// Returns whether anything changed (idempotent).
func (s *Store) RemoveEdge(ctx context.Context, from, to NodeID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, kotaerr.Wrap(kotaerr.Cancelled, err, "remove edge cancelled")
	}
	s.edgesOutMu.RLock()
	_, existed := s.edgesOut[from][to]
	s.edgesOutMu.RUnlock()
	if !existed {
		return false, nil
	}
	if err := s.appendWAL(walEntry{op: opEdgeDelete, from: from, to: to}); err != nil {
		return false, err
	}
	s.edgesOutMu.Lock()
	s.edgesInMu.Lock()
	s.decrementBucketLocked(s.edgesOut[from][to])
	delete(s.edgesOut[from], to)
	delete(s.edgesIn[to], from)
	s.edgesInMu.Unlock()
	s.edgesOutMu.Unlock()
	return true, nil
}

// RemoveEdgeByType filters edges of the given kind out of the bucket
// between from and to, dropping the bucket entirely if it empties.
// Returns the number of edges removed.
func (s *Store) RemoveEdgeByType(ctx context.Context, from, to NodeID, kind RelationKind) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, kotaerr.Wrap(kotaerr.Cancelled, err, "remove edge by type cancelled")
	}
	s.edgesOutMu.RLock()
	bucket := s.edgesOut[from][to]
	removed := 0
	for _, e := range bucket {
		if e.Kind == kind {
			removed++
		}
	}
	s.edgesOutMu.RUnlock()
	if removed == 0 {
		return 0, nil
	}
	if err := s.appendWAL(walEntry{op: opEdgeDeleteByType, from: from, to: to, kind: kind}); err != nil {
		return 0, err
	}
	s.edgesOutMu.Lock()
	s.edgesInMu.Lock()
	s.filterBucketLocked(from, to, kind)
	s.edgesInMu.Unlock()
	s.edgesOutMu.Unlock()
	return removed, nil
}

// UpdateEdgeMetadata mutates every edge between from and to, WAL-logging
// each mutated edge before the in-memory buckets are swapped, under write
// locks on both directions.
func (s *Store) UpdateEdgeMetadata(ctx context.Context, from, to NodeID, mutate func(*GraphEdge)) error {
	if err := ctx.Err(); err != nil {
		return kotaerr.Wrap(kotaerr.Cancelled, err, "update edge metadata cancelled")
	}
	s.edgesOutMu.Lock()
	s.edgesInMu.Lock()
	defer s.edgesInMu.Unlock()
	defer s.edgesOutMu.Unlock()

	bucket, ok := s.edgesOut[from][to]
	if !ok {
		return kotaerr.New(kotaerr.NotFound, "edge bucket not present")
	}
	updated := append(edgeBucket(nil), bucket...)
	for i := range updated {
		mutate(&updated[i])
		if err := s.appendWAL(walEntry{op: opEdgeUpdateByType, from: from, to: to, kind: updated[i].Kind, edge: updated[i]}); err != nil {
			return err
		}
	}
	s.edgesOut[from][to] = updated
	s.edgesIn[to][from] = updated
	return nil
}

// UpdateEdgeMetadataByType mutates only the edge matching kind.
func (s *Store) UpdateEdgeMetadataByType(ctx context.Context, from, to NodeID, kind RelationKind, mutate func(*GraphEdge)) error {
	if err := ctx.Err(); err != nil {
		return kotaerr.Wrap(kotaerr.Cancelled, err, "update edge metadata by type cancelled")
	}
	s.edgesOutMu.Lock()
	s.edgesInMu.Lock()
	defer s.edgesInMu.Unlock()
	defer s.edgesOutMu.Unlock()

	bucket, ok := s.edgesOut[from][to]
	if !ok {
		return kotaerr.New(kotaerr.NotFound, "edge bucket not present")
	}
	updated := append(edgeBucket(nil), bucket...)
	found := false
	for i := range updated {
		if updated[i].Kind == kind {
			mutate(&updated[i])
			found = true
			if err := s.appendWAL(walEntry{op: opEdgeUpdateByType, from: from, to: to, kind: kind, edge: updated[i]}); err != nil {
				return err
			}
		}
	}
	if !found {
		return kotaerr.New(kotaerr.NotFound, "no edge of that kind")
	}
	s.edgesOut[from][to] = updated
	s.edgesIn[to][from] = updated
	return nil
}

// Edges returns the bucket of edges from -> to (nil if none).
func (s *Store) Edges(ctx context.Context, from, to NodeID) []GraphEdge {
	s.edgesOutMu.RLock()
	defer s.edgesOutMu.RUnlock()
	return append([]GraphEdge(nil), s.edgesOut[from][to]...)
}

// NodesByType returns every node id of the given type.
func (s *Store) NodesByType(typ string) []NodeID {
	s.nodesByTypeMu.RLock()
	defer s.nodesByTypeMu.RUnlock()
	out := make([]NodeID, 0, len(s.nodesByType[typ]))
	for id := range s.nodesByType[typ] {
		out = append(out, id)
	}
	return out
}

// NodesByName returns every node id with the given qualified name.
func (s *Store) NodesByName(name string) []NodeID {
	s.nodesByNameMu.RLock()
	defer s.nodesByNameMu.RUnlock()
	out := make([]NodeID, 0, len(s.nodesByName[name]))
	for id := range s.nodesByName[name] {
		out = append(out, id)
	}
	return out
}

// BatchInsertNodes loops InsertNode; the contract permits but does not
// require sub-linear optimisation, per spec §4.6.
func (s *Store) BatchInsertNodes(ctx context.Context, nodes []NodeRecord) error {
	for _, n := range nodes {
		if err := s.InsertNode(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// BatchInsertEdges loops StoreEdge.
func (s *Store) BatchInsertEdges(ctx context.Context, edges []struct {
	From, To NodeID
	Edge     GraphEdge
}) error {
	for _, e := range edges {
		if err := s.StoreEdge(ctx, e.From, e.To, e.Edge); err != nil {
			return err
		}
	}
	return nil
}
