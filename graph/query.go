package graph

import (
	"context"

	"github.com/kotadb/kotadb-go/kotaerr"
)

// maxSubgraphNodes bounds a single subgraph query so a pathological graph
// cannot make it run unbounded; hitting the cap leaves the BFS queue
// non-empty, which is exactly what Truncated reports.
const maxSubgraphNodes = 100_000

// DefaultMaxTraversalDepth is the path-finding depth cap, per spec §4.6
// ("config, default 10").
const DefaultMaxTraversalDepth = 10

type queueItem struct {
	id    NodeID
	depth int
}

// Subgraph is the result of a BFS extraction from a set of roots.
type Subgraph struct {
	Nodes []NodeRecord
	// Edges groups touched edges by their source node id.
	Edges map[NodeID][]edgeWithTarget
	Stats SubgraphStats
}

type edgeWithTarget struct {
	To   NodeID
	Edge GraphEdge
}

// SubgraphStats is BFS query metadata.
type SubgraphStats struct {
	NodesVisited int
	EdgesTraversed int
	Microseconds int64
	// Truncated reports whether the BFS queue was still non-empty at
	// termination, per spec's literal instruction (design note #3): this
	// is a node-budget cutoff, not a depth-exhaustion signal, since normal
	// depth-bounded BFS always drains its queue.
	Truncated bool
}

// Subgraph performs a BFS over outgoing edges from roots up to maxDepth.
func (s *Store) Subgraph(ctx context.Context, roots []NodeID, maxDepth int) (Subgraph, error) {
	if err := ctx.Err(); err != nil {
		return Subgraph{}, kotaerr.Wrap(kotaerr.Cancelled, err, "subgraph cancelled")
	}

	visited := make(map[NodeID]bool)
	queue := make([]queueItem, 0, len(roots))
	for _, r := range roots {
		if !visited[r] {
			visited[r] = true
			queue = append(queue, queueItem{id: r, depth: 0})
		}
	}

	result := Subgraph{Edges: make(map[NodeID][]edgeWithTarget)}
	stats := SubgraphStats{}

	s.nodesMu.RLock()
	s.edgesOutMu.RLock()
	defer s.edgesOutMu.RUnlock()
	defer s.nodesMu.RUnlock()

	for len(queue) > 0 {
		if stats.NodesVisited >= maxSubgraphNodes {
			break
		}
		item := queue[0]
		queue = queue[1:]

		if n, ok := s.nodes[item.id]; ok {
			result.Nodes = append(result.Nodes, n)
		}
		stats.NodesVisited++

		if item.depth >= maxDepth {
			continue
		}
		for to, bucket := range s.edgesOut[item.id] {
			for _, e := range bucket {
				result.Edges[item.id] = append(result.Edges[item.id], edgeWithTarget{To: to, Edge: e})
				stats.EdgesTraversed++
			}
			if !visited[to] {
				visited[to] = true
				queue = append(queue, queueItem{id: to, depth: item.depth + 1})
			}
		}
	}

	stats.Truncated = len(queue) > 0
	result.Stats = stats
	return result, nil
}

// Path is one simple path from a source to a target node.
type Path struct {
	Nodes []NodeID
	Edges []GraphEdge
}

// FindPaths performs an iterative DFS with an explicit stack (no
// recursion, so it survives deep graphs without stack overflow) from
// `from` to `to`, bounded by maxDepth and returning at most maxPaths
// simple paths. A per-branch visited set prevents cycles.
func (s *Store) FindPaths(ctx context.Context, from, to NodeID, maxDepth, maxPaths int) ([]Path, error) {
	if err := ctx.Err(); err != nil {
		return nil, kotaerr.Wrap(kotaerr.Cancelled, err, "find paths cancelled")
	}

	type frame struct {
		id      NodeID
		edge    GraphEdge
		hasEdge bool
	}

	var paths []Path
	if from == to {
		// The trivial path (length 1, no edges) always exists, per spec §8.
		paths = append(paths, Path{Nodes: []NodeID{from}, Edges: []GraphEdge{}})
		if len(paths) >= maxPaths {
			return paths, nil
		}
	}
	pathNodes := []NodeID{from}
	pathEdges := []GraphEdge{}
	visited := map[NodeID]bool{from: true}

	type stackEntry struct {
		neighbours []frame
		idx        int
	}

	s.edgesOutMu.RLock()
	defer s.edgesOutMu.RUnlock()

	neighboursOf := func(id NodeID) []frame {
		out := make([]frame, 0)
		for to, bucket := range s.edgesOut[id] {
			for _, e := range bucket {
				out = append(out, frame{id: to, edge: e, hasEdge: true})
			}
		}
		return out
	}

	stack := []stackEntry{{neighbours: neighboursOf(from), idx: 0}}

	for len(stack) > 0 && len(paths) < maxPaths {
		top := &stack[len(stack)-1]
		if top.idx >= len(top.neighbours) {
			stack = stack[:len(stack)-1]
			if len(pathNodes) > 1 {
				delete(visited, pathNodes[len(pathNodes)-1])
				pathNodes = pathNodes[:len(pathNodes)-1]
				pathEdges = pathEdges[:len(pathEdges)-1]
			}
			continue
		}
		next := top.neighbours[top.idx]
		top.idx++

		if visited[next.id] {
			continue
		}
		if len(pathNodes) > maxDepth {
			continue
		}

		pathNodes = append(pathNodes, next.id)
		pathEdges = append(pathEdges, next.edge)
		visited[next.id] = true

		if next.id == to {
			paths = append(paths, Path{
				Nodes: append([]NodeID(nil), pathNodes...),
				Edges: append([]GraphEdge(nil), pathEdges...),
			})
			delete(visited, next.id)
			pathNodes = pathNodes[:len(pathNodes)-1]
			pathEdges = pathEdges[:len(pathEdges)-1]
			continue
		}

		if len(pathNodes) >= maxDepth {
			delete(visited, next.id)
			pathNodes = pathNodes[:len(pathNodes)-1]
			pathEdges = pathEdges[:len(pathEdges)-1]
			continue
		}

		stack = append(stack, stackEntry{neighbours: neighboursOf(next.id), idx: 0})
	}

	return paths, nil
}
