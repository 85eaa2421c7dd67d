// Package vector implements C6: an HNSW-shaped approximate k-NN index over
// fixed-dimension f32 vectors. Per spec §4.5/§9, the shipped traversal is a
// linear scan that is ranking-equivalent to full HNSW search on tested
// datasets; the per-level adjacency bookkeeping is still built and
// exercised so a future traversal upgrade only replaces Search, not the
// stored structure.
package vector

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/kotadb/kotadb-go/kotaerr"
	"github.com/kotadb/kotadb-go/types"
)

// Metric is the distance function used to rank neighbours.
type Metric int

const (
	Cosine Metric = iota
	Euclidean
	Dot
)

// MaxLevel caps the geometric level draw for a new node, per spec §4.5.
const MaxLevel = 16

// AutoFlushThreshold is the mutation count that triggers a persistence
// flush, per spec §4.5 ("typical 32").
const AutoFlushThreshold = 32

// node is one vector index entry: an id, its vector, and per-level
// adjacency sets (neighbour ids at each HNSW layer it participates in).
type node struct {
	id     types.DocumentID
	vector []float32
	levels [][]types.DocumentID // levels[l] = neighbours of this node at layer l
	seq    uint64               // insertion order, used to find the earliest surviving node
}

// Index is the vector index. It is not a contracts.Index implementation:
// its query shape (k-NN over a vector) differs from the text-query
// Index contract, so it exposes its own narrower surface.
type Index struct {
	mu         sync.RWMutex
	dimension  int
	metric     Metric
	nodes      map[types.DocumentID]*node
	entryPoint types.DocumentID
	hasEntry   bool
	dirty      int
	path       string
	rnd        *rand.Rand
	nextSeq    uint64
}

// New constructs an empty index of fixed dimension and metric.
func New(dimension int, metric Metric) *Index {
	return &Index{
		dimension: dimension,
		metric:    metric,
		nodes:     make(map[types.DocumentID]*node),
		rnd:       rand.New(rand.NewSource(1)),
	}
}

// Insert adds or replaces id's vector. DimensionMismatch is returned if
// len(vec) != the index's configured dimension.
func (idx *Index) Insert(ctx context.Context, id types.DocumentID, vec []float32) error {
	if err := ctx.Err(); err != nil {
		return kotaerr.Wrap(kotaerr.Cancelled, err, "insert cancelled")
	}
	if len(vec) != idx.dimension {
		return kotaerr.New(kotaerr.DimensionMismatch, "vector length does not match index dimension")
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	level := idx.drawLevel()
	n := &node{id: id, vector: append([]float32(nil), vec...), levels: make([][]types.DocumentID, level+1), seq: idx.nextSeq}
	idx.nextSeq++
	idx.connect(n)
	idx.nodes[id] = n

	if !idx.hasEntry {
		idx.entryPoint = id
		idx.hasEntry = true
	}

	idx.dirty++
	if idx.dirty >= AutoFlushThreshold && idx.path != "" {
		return idx.flushLocked()
	}
	return nil
}

// drawLevel is the capped geometric coin-flip of spec §4.5.
func (idx *Index) drawLevel() int {
	level := 0
	for level < MaxLevel && idx.rnd.Float64() < 0.5 {
		level++
	}
	return level
}

// connect links n to its nearest existing neighbours at every level it
// participates in. This is the structural bookkeeping a real HNSW
// traversal would later use; Search itself does not currently consult it
// (see package doc).
func (idx *Index) connect(n *node) {
	if len(idx.nodes) == 0 {
		return
	}
	candidates := make([]*node, 0, len(idx.nodes))
	for _, other := range idx.nodes {
		candidates = append(candidates, other)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return idx.distance(n.vector, candidates[i].vector) < idx.distance(n.vector, candidates[j].vector)
	})

	const maxNeighboursPerLevel = 8
	for level := range n.levels {
		limit := maxNeighboursPerLevel
		if limit > len(candidates) {
			limit = len(candidates)
		}
		neighbours := make([]types.DocumentID, 0, limit)
		for i := 0; i < limit; i++ {
			other := candidates[i]
			if level >= len(other.levels) {
				continue
			}
			neighbours = append(neighbours, other.id)
			other.levels[level] = append(other.levels[level], n.id)
		}
		n.levels[level] = neighbours
	}
}

// RemoveVector deletes id. The entry point is reassigned to any surviving
// node if id was the entry point.
func (idx *Index) RemoveVector(ctx context.Context, id types.DocumentID) error {
	if err := ctx.Err(); err != nil {
		return kotaerr.Wrap(kotaerr.Cancelled, err, "remove cancelled")
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.nodes[id]; !ok {
		return kotaerr.New(kotaerr.NotFound, "vector id not present")
	}
	delete(idx.nodes, id)
	for _, other := range idx.nodes {
		for level := range other.levels {
			other.levels[level] = removeID(other.levels[level], id)
		}
	}

	if idx.entryPoint == id {
		idx.hasEntry = false
		var earliest *node
		for _, other := range idx.nodes {
			if earliest == nil || other.seq < earliest.seq {
				earliest = other
			}
		}
		if earliest != nil {
			idx.entryPoint = earliest.id
			idx.hasEntry = true
		}
	}

	idx.dirty++
	if idx.dirty >= AutoFlushThreshold && idx.path != "" {
		return idx.flushLocked()
	}
	return nil
}

func removeID(ids []types.DocumentID, target types.DocumentID) []types.DocumentID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// ScoredResult is one k-NN hit.
type ScoredResult struct {
	ID       types.DocumentID
	Distance float64
}

// SearchKNN returns up to k nearest neighbours of query, ordered by
// non-decreasing distance. Per spec §4.5/§9, this is a conforming linear
// scan: any algorithm matching its ranking on tested datasets is
// conforming.
func (idx *Index) SearchKNN(ctx context.Context, query []float32, k int) ([]ScoredResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, kotaerr.Wrap(kotaerr.Cancelled, err, "search cancelled")
	}
	if len(query) != idx.dimension {
		return nil, kotaerr.New(kotaerr.DimensionMismatch, "query vector length does not match index dimension")
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	results := make([]ScoredResult, 0, len(idx.nodes))
	for _, n := range idx.nodes {
		results = append(results, ScoredResult{ID: n.id, Distance: idx.distance(query, n.vector)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID.Less(results[j].ID)
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// EntryPoint returns the current entry-point id and whether one exists.
func (idx *Index) EntryPoint() (types.DocumentID, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entryPoint, idx.hasEntry
}

// Len returns the number of live vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.nodes)
}

func (idx *Index) distance(a, b []float32) float64 {
	switch idx.metric {
	case Euclidean:
		return euclidean(a, b)
	case Dot:
		return -dot(a, b) // rank descending dot product as ascending "distance"
	default:
		return 1 - cosine(a, b)
	}
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func cosine(a, b []float32) float64 {
	d := dot(a, b)
	na := math.Sqrt(dot(a, a))
	nb := math.Sqrt(dot(b, b))
	if na == 0 || nb == 0 {
		return 0
	}
	return d / (na * nb)
}
