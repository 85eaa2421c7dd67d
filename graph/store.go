package graph

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	sglog "github.com/sourcegraph/log"

	"github.com/kotadb/kotadb-go/kotaerr"
)

// edgeBucket holds the (possibly several, relation-disambiguated) edges
// between one ordered pair of endpoints.
type edgeBucket = []GraphEdge

// Store is the native graph store: node and edge maps each under their
// own lock, acquired in the fixed order nodes -> edgesOut -> edgesIn ->
// nodesByType -> nodesByName to preclude deadlock, per spec §5.
type Store struct {
	root   string
	logger sglog.Logger

	nodesMu sync.RWMutex
	nodes   map[NodeID]NodeRecord

	// edgeCount and edgesByKind are guarded by edgesOutMu alongside the
	// forward map they count.
	edgesOutMu  sync.RWMutex
	edgesOut    map[NodeID]map[NodeID]edgeBucket
	edgeCount   int
	edgesByKind map[RelationKind]int

	edgesInMu sync.RWMutex
	edgesIn   map[NodeID]map[NodeID]edgeBucket

	nodesByTypeMu sync.RWMutex
	nodesByType   map[string]map[NodeID]bool

	nodesByNameMu sync.RWMutex
	nodesByName   map[string]map[NodeID]bool

	walMu   sync.Mutex
	wal     *os.File
	walSize int64
}

// Stats is a counter snapshot: live nodes, live edges, and the per-kind
// decomposition of the edge count.
type Stats struct {
	Nodes       int
	Edges       int
	EdgesByKind map[RelationKind]int
}

// Stats returns the store's current counters.
func (s *Store) Stats() Stats {
	s.nodesMu.RLock()
	nodes := len(s.nodes)
	s.nodesMu.RUnlock()

	s.edgesOutMu.RLock()
	defer s.edgesOutMu.RUnlock()
	byKind := make(map[RelationKind]int, len(s.edgesByKind))
	for k, v := range s.edgesByKind {
		byKind[k] = v
	}
	return Stats{Nodes: nodes, Edges: s.edgeCount, EdgesByKind: byKind}
}

// Open loads an existing store from root (page files plus WAL replay) or
// creates a fresh, empty one. Recovery sequence, per spec §4.6:
//  1. load all node/edge pages, rebuilding type and name indices
//  2. replay *.archive files in ascending timestamp order
//  3. replay current.wal if present
//  4. rotate current.wal to a fresh archive
func Open(root string) (*Store, error) {
	for _, sub := range []string{"nodes", "edges", "wal"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, kotaerr.Wrap(kotaerr.IOError, err, "create graph directory "+sub)
		}
	}

	s := &Store{
		root:        root,
		logger:      sglog.Scoped("graph", "native graph storage"),
		nodes:       make(map[NodeID]NodeRecord),
		edgesOut:    make(map[NodeID]map[NodeID]edgeBucket),
		edgesByKind: make(map[RelationKind]int),
		edgesIn:     make(map[NodeID]map[NodeID]edgeBucket),
		nodesByType: make(map[string]map[NodeID]bool),
		nodesByName: make(map[string]map[NodeID]bool),
	}

	if err := s.loadPages(); err != nil {
		return nil, err
	}

	archives, err := listArchives(root)
	if err != nil {
		return nil, err
	}
	for _, path := range archives {
		if err := replayWAL(path, s.logger, s.applyRecovered); err != nil {
			return nil, err
		}
	}
	if err := replayWAL(currentWALPath(root), s.logger, s.applyRecovered); err != nil {
		return nil, err
	}

	f, err := rotateWAL(root, time.Now())
	if err != nil {
		return nil, err
	}
	s.wal = f
	return s, nil
}

func (s *Store) loadPages() error {
	nodePaths, err := nodePagePaths(s.root)
	if err != nil {
		return err
	}
	nodePages := make([][]byte, 0, len(nodePaths))
	for _, p := range nodePaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return kotaerr.Wrap(kotaerr.IOError, err, "read node page "+p)
		}
		nodePages = append(nodePages, data)
	}
	nodes, err := unpackNodePages(nodePages)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		s.indexNodeLocked(n)
	}

	edgePaths, err := edgePagePaths(s.root)
	if err != nil {
		return err
	}
	edgePages := make([][]byte, 0, len(edgePaths))
	for _, p := range edgePaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return kotaerr.Wrap(kotaerr.IOError, err, "read edge page "+p)
		}
		edgePages = append(edgePages, data)
	}
	edges, err := unpackEdgePages(edgePages)
	if err != nil {
		return err
	}
	for _, e := range edges {
		s.indexEdgeLocked(e.from, e.to, e.edge)
	}
	return nil
}

// applyRecovered replays one WAL entry during recovery, unlocked (Open
// runs single-threaded before the store is published to callers).
// Duplicate EdgeInsert records with byte-equal payload against an
// existing edge on the same pair are skipped, per spec's idempotent
// recovery rule.
func (s *Store) applyRecovered(e walEntry) error {
	switch e.op {
	case opNodeInsert, opNodeUpdate:
		s.indexNodeLocked(e.node)
	case opNodeDelete:
		s.unindexNodeLocked(e.node.ID)
	case opEdgeInsert:
		if s.hasEqualEdgeLocked(e.from, e.to, e.edge) {
			return nil
		}
		s.indexEdgeLocked(e.from, e.to, e.edge)
	case opEdgeUpdate:
		s.indexEdgeLocked(e.from, e.to, e.edge)
	case opEdgeDelete:
		s.decrementBucketLocked(s.edgesOut[e.from][e.to])
		delete(s.edgesOut[e.from], e.to)
		delete(s.edgesIn[e.to], e.from)
	case opEdgeDeleteByType:
		s.filterBucketLocked(e.from, e.to, e.kind)
	case opEdgeUpdateByType:
		s.updateBucketKindLocked(e.from, e.to, e.kind, e.edge)
	case opCheckpoint:
		// no-op marker
	}
	return nil
}

func (s *Store) hasEqualEdgeLocked(from, to NodeID, edge GraphEdge) bool {
	bucket := s.edgesOut[from][to]
	for _, existing := range bucket {
		if existing.equalPayload(edge) {
			return true
		}
	}
	return false
}

func (s *Store) indexNodeLocked(n NodeRecord) {
	if old, ok := s.nodes[n.ID]; ok {
		if old.Type != n.Type {
			s.removeFromSet(s.nodesByType, old.Type, n.ID)
		}
		if old.Name != n.Name {
			s.removeFromSet(s.nodesByName, old.Name, n.ID)
		}
	}
	s.nodes[n.ID] = n
	s.addToSet(s.nodesByType, n.Type, n.ID)
	s.addToSet(s.nodesByName, n.Name, n.ID)
}

func (s *Store) unindexNodeLocked(id NodeID) {
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	delete(s.nodes, id)
	s.removeFromSet(s.nodesByType, n.Type, id)
	s.removeFromSet(s.nodesByName, n.Name, id)
}

func (s *Store) addToSet(m map[string]map[NodeID]bool, key string, id NodeID) {
	if m[key] == nil {
		m[key] = make(map[NodeID]bool)
	}
	m[key][id] = true
}

func (s *Store) removeFromSet(m map[string]map[NodeID]bool, key string, id NodeID) {
	if set, ok := m[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(m, key)
		}
	}
}

func (s *Store) indexEdgeLocked(from, to NodeID, edge GraphEdge) {
	if s.edgesOut[from] == nil {
		s.edgesOut[from] = make(map[NodeID]edgeBucket)
	}
	s.edgesOut[from][to] = append(s.edgesOut[from][to], edge)
	if s.edgesIn[to] == nil {
		s.edgesIn[to] = make(map[NodeID]edgeBucket)
	}
	s.edgesIn[to][from] = append(s.edgesIn[to][from], edge)
	s.edgeCount++
	s.edgesByKind[edge.Kind]++
}

// decrementBucketLocked decrements the edge counters by the bucket's size,
// decomposed by relation kind. Counters never go below zero.
func (s *Store) decrementBucketLocked(bucket edgeBucket) {
	for _, e := range bucket {
		if s.edgeCount > 0 {
			s.edgeCount--
		}
		if s.edgesByKind[e.Kind] > 0 {
			s.edgesByKind[e.Kind]--
		}
		if s.edgesByKind[e.Kind] == 0 {
			delete(s.edgesByKind, e.Kind)
		}
	}
}

func (s *Store) filterBucketLocked(from, to NodeID, kind RelationKind) {
	out := s.edgesOut[from][to][:0]
	removed := 0
	for _, e := range s.edgesOut[from][to] {
		if e.Kind != kind {
			out = append(out, e)
		} else {
			removed++
		}
	}
	for i := 0; i < removed; i++ {
		if s.edgeCount > 0 {
			s.edgeCount--
		}
		if s.edgesByKind[kind] > 0 {
			s.edgesByKind[kind]--
		}
	}
	if s.edgesByKind[kind] == 0 {
		delete(s.edgesByKind, kind)
	}
	if len(out) == 0 {
		delete(s.edgesOut[from], to)
		delete(s.edgesIn[to], from)
		return
	}
	s.edgesOut[from][to] = out
	s.edgesIn[to][from] = out
}

func (s *Store) updateBucketKindLocked(from, to NodeID, kind RelationKind, edge GraphEdge) {
	for i, e := range s.edgesOut[from][to] {
		if e.Kind == kind {
			s.edgesOut[from][to][i] = edge
		}
	}
	for i, e := range s.edgesIn[to][from] {
		if e.Kind == kind {
			s.edgesIn[to][from][i] = edge
		}
	}
}

// Close flushes the store to pages and closes the WAL handle.
func (s *Store) Close() error {
	if err := s.Sync(context.Background()); err != nil {
		return err
	}
	s.walMu.Lock()
	defer s.walMu.Unlock()
	return kotaerr.Wrap(kotaerr.IOError, s.wal.Close(), "close wal")
}

func (s *Store) appendWAL(e walEntry) error {
	s.walMu.Lock()
	defer s.walMu.Unlock()
	if err := appendWAL(s.wal, e); err != nil {
		return err
	}
	s.walSize += int64(4 + len(encodeWALEntry(e)))
	if s.walSize >= walRotateThreshold {
		f, err := rotateWAL(s.root, time.Now())
		if err != nil {
			return err
		}
		s.wal = f
		s.walSize = 0
	}
	return nil
}
