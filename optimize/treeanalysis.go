package optimize

// Recommendation is the advisory verdict AnalyzeTree attaches to its
// report, per spec §9 glossary: "balance factor below 0.8 triggers a
// rebalance recommendation."
type Recommendation string

const (
	RecommendNone      Recommendation = "None"
	RecommendRebalance Recommendation = "Rebalance"
	RecommendCompact   Recommendation = "Compact"
)

// TreeAnalysis is the structural report spec §4.10 mandates: depth, total
// entries, balance factor, utilisation, per-level node distribution, leaf
// depth variance, and a rebalance recommendation.
type TreeAnalysis struct {
	Depth          int
	TotalEntries   int
	BalanceFactor  float64
	Utilisation    float64
	// NodeDistribution estimates the node count at each level, root first.
	// Derived from entry count and height, not walked from the tree.
	NodeDistribution []int
	// LeafDepthVariance is zero for any well-formed B+ tree: all leaves
	// sit at equal depth by construction. Reported so an SLA consumer has
	// the field, and as a tripwire if a future tree variant breaks it.
	LeafDepthVariance float64
	Recommendation    Recommendation
}

// rebalanceThreshold is spec §9 glossary's "balance factor below 0.8"
// trigger.
const rebalanceThreshold = 0.8

// AnalyzeTree reports the wrapped index's structure. If inner was
// constructed without a TreeStats, the report carries zero depth/entries
// and RecommendNone — tree shape is unknown, not unhealthy.
func (o *Index) AnalyzeTree() TreeAnalysis {
	if o.stats == nil {
		return TreeAnalysis{Recommendation: RecommendNone}
	}

	o.mu.Lock()
	n := o.stats.TotalKeys()
	h := o.stats.Height()
	o.mu.Unlock()

	bf := o.balanceFactor()
	util := utilisationOf(n, h)

	rec := RecommendNone
	switch {
	case bf < rebalanceThreshold:
		rec = RecommendRebalance
	case util < 0.5 && n > 0:
		rec = RecommendCompact
	}

	return TreeAnalysis{
		Depth:            h,
		TotalEntries:     n,
		BalanceFactor:    bf,
		Utilisation:      util,
		NodeDistribution: estimateNodeDistribution(n, h),
		Recommendation:   rec,
	}
}

// estimateNodeDistribution approximates the per-level node count for a
// degree-3 tree holding n entries at height h: one root, then each level
// fanning out threefold, with the leaf level sized by entries at the
// spec's t-1 minimum occupancy.
func estimateNodeDistribution(n, h int) []int {
	if h <= 0 {
		return nil
	}
	dist := make([]int, h)
	leaves := (n + MinEntriesPerLeaf - 1) / MinEntriesPerLeaf
	if leaves < 1 {
		leaves = 1
	}
	dist[h-1] = leaves
	for level := h - 2; level >= 0; level-- {
		above := (dist[level+1] + 2) / 3
		if above < 1 {
			above = 1
		}
		dist[level] = above
	}
	dist[0] = 1
	return dist
}

// MinEntriesPerLeaf mirrors the B+ tree's MIN_KEYS = t-1 = 2 floor.
const MinEntriesPerLeaf = 2

// utilisationOf approximates fill ratio as entries against the maximum a
// tree of this height could hold at full branching (degree 3, per spec §3 —
// MAX_KEYS=5 per node, so capacity grows as 5*3^(h-1) roughly); this is an
// estimate for advisory purposes only, not an exact occupancy count.
func utilisationOf(n, h int) float64 {
	if h <= 0 {
		return 0
	}
	capacity := 5.0
	for i := 1; i < h; i++ {
		capacity *= 3
	}
	if capacity <= 0 {
		return 0
	}
	u := float64(n) / capacity
	if u > 1 {
		u = 1
	}
	return u
}
