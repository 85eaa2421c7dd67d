package btree

import "fmt"

// checkNode recursively validates structural invariants, returning the
// subtree's leaf depth (as seen from this node) and total key count.
func checkNode[K Key[K], V any](n node[K, V], isRoot bool, depth int) (leafDepth int, count int, err error) {
	if leaf, ok := n.(*leafNode[K, V]); ok {
		if !isRoot && (len(leaf.keys) < MinKeys || len(leaf.keys) > MaxKeys) {
			return 0, 0, fmt.Errorf("leaf key count %d out of range [%d,%d]", len(leaf.keys), MinKeys, MaxKeys)
		}
		if len(leaf.keys) != len(leaf.values) {
			return 0, 0, fmt.Errorf("leaf has %d keys but %d values", len(leaf.keys), len(leaf.values))
		}
		for i := 1; i < len(leaf.keys); i++ {
			if !keyLess(leaf.keys[i-1], leaf.keys[i]) {
				return 0, 0, fmt.Errorf("leaf keys not strictly ascending at index %d", i)
			}
		}
		return depth, len(leaf.keys), nil
	}

	in := n.(*internalNode[K, V])
	if !isRoot && (len(in.keys) < MinKeys || len(in.keys) > MaxKeys) {
		return 0, 0, fmt.Errorf("internal key count %d out of range [%d,%d]", len(in.keys), MinKeys, MaxKeys)
	}
	if len(in.children) != len(in.keys)+1 {
		return 0, 0, fmt.Errorf("internal node has %d keys but %d children", len(in.keys), len(in.children))
	}
	for i := 1; i < len(in.keys); i++ {
		if !keyLess(in.keys[i-1], in.keys[i]) {
			return 0, 0, fmt.Errorf("internal keys not strictly ascending at index %d", i)
		}
	}

	var wantDepth int
	total := 0
	for i, child := range in.children {
		d, c, err := checkNode[K, V](child, false, depth+1)
		if err != nil {
			return 0, 0, err
		}
		if i == 0 {
			wantDepth = d
		} else if d != wantDepth {
			return 0, 0, fmt.Errorf("leaves not at equal depth: %d vs %d", d, wantDepth)
		}
		total += c
	}
	return wantDepth, total, nil
}
