package btree

// Delete removes key, rebalancing any leaf that underflows afterward: borrow
// from the left sibling, else the right sibling, else merge. If the root
// becomes an internal node with zero keys and one child, the tree height
// shrinks by one, per §4.1.
func (t Tree[K, V]) Delete(key K) Tree[K, V] {
	newRoot, removed, _ := deleteNode[K, V](t.root, key, true)
	if !removed {
		return t
	}
	height := t.height
	if in, ok := newRoot.(*internalNode[K, V]); ok && len(in.keys) == 0 && len(in.children) == 1 {
		newRoot = in.children[0]
		height--
	}
	return Tree[K, V]{root: newRoot, height: height, totalKeys: t.totalKeys - 1}
}

// deleteNode removes key from the subtree rooted at n. isRoot suppresses
// underflow rebalancing for the tree root, which is allowed to have fewer
// than MinKeys keys. Returns the new subtree root, whether a key was
// actually removed, and whether the returned node underflows its minimum.
func deleteNode[K Key[K], V any](n node[K, V], key K, isRoot bool) (node[K, V], bool, bool) {
	if leaf, ok := n.(*leafNode[K, V]); ok {
		return deleteLeaf(leaf, key, isRoot)
	}
	return deleteInternal(n.(*internalNode[K, V]), key, isRoot)
}

func deleteLeaf[K Key[K], V any](leaf *leafNode[K, V], key K, isRoot bool) (node[K, V], bool, bool) {
	i, ok := findExact(leaf.keys, key)
	if !ok {
		return leaf, false, false
	}
	newKeys := removeAt(leaf.keys, i)
	newValues := removeAt(leaf.values, i)
	newLeaf := &leafNode[K, V]{keys: newKeys, values: newValues, next: leaf.next}
	underflow := !isRoot && len(newKeys) < MinKeys
	return newLeaf, true, underflow
}

func deleteInternal[K Key[K], V any](in *internalNode[K, V], key K, isRoot bool) (node[K, V], bool, bool) {
	idx := descendIndex(in.keys, key)
	newChild, removed, childUnderflow := deleteNode[K, V](in.children[idx], key, false)
	if !removed {
		return in, false, false
	}

	newChildren := append([]node[K, V](nil), in.children...)
	newChildren[idx] = newChild
	newKeys := append([]K(nil), in.keys...)

	if !childUnderflow {
		return &internalNode[K, V]{keys: newKeys, children: newChildren}, true, false
	}

	newKeys, newChildren = rebalanceChild(newKeys, newChildren, idx)
	underflow := !isRoot && len(newKeys) < MinKeys
	return &internalNode[K, V]{keys: newKeys, children: newChildren}, true, underflow
}

// rebalanceChild fixes an underflowing child at index idx by borrowing from
// a sibling or merging, per §4.1.
func rebalanceChild[K Key[K], V any](keys []K, children []node[K, V], idx int) ([]K, []node[K, V]) {
	if idx > 0 {
		if ok, newKeys, newChildren := tryBorrowLeft(keys, children, idx); ok {
			return newKeys, newChildren
		}
	}
	if idx < len(children)-1 {
		if ok, newKeys, newChildren := tryBorrowRight(keys, children, idx); ok {
			return newKeys, newChildren
		}
	}
	if idx > 0 {
		return mergeChildren(keys, children, idx-1)
	}
	return mergeChildren(keys, children, idx)
}

func tryBorrowLeft[K Key[K], V any](keys []K, children []node[K, V], idx int) (bool, []K, []node[K, V]) {
	left := children[idx-1]
	child := children[idx]

	if leftLeaf, ok := left.(*leafNode[K, V]); ok {
		childLeaf := child.(*leafNode[K, V])
		if len(leftLeaf.keys) <= MinKeys {
			return false, nil, nil
		}
		n := len(leftLeaf.keys)
		borrowKey, borrowVal := leftLeaf.keys[n-1], leftLeaf.values[n-1]
		newLeft := &leafNode[K, V]{keys: leftLeaf.keys[:n-1], values: leftLeaf.values[:n-1], next: leftLeaf.next}
		newChild := &leafNode[K, V]{
			keys:   insertAt(childLeaf.keys, 0, borrowKey),
			values: insertAt(childLeaf.values, 0, borrowVal),
			next:   childLeaf.next,
		}
		newKeys := append([]K(nil), keys...)
		newKeys[idx-1] = newChild.keys[0]
		newChildren := append([]node[K, V](nil), children...)
		newChildren[idx-1] = newLeft
		newChildren[idx] = newChild
		return true, newKeys, newChildren
	}

	leftIn := left.(*internalNode[K, V])
	childIn := child.(*internalNode[K, V])
	if len(leftIn.keys) <= MinKeys {
		return false, nil, nil
	}
	n := len(leftIn.keys)
	borrowedKey := leftIn.keys[n-1]
	borrowedChild := leftIn.children[len(leftIn.children)-1]
	newLeft := &internalNode[K, V]{keys: leftIn.keys[:n-1], children: leftIn.children[:len(leftIn.children)-1]}
	newChild := &internalNode[K, V]{
		keys:     insertAt(childIn.keys, 0, keys[idx-1]),
		children: insertChildAt(childIn.children, 0, borrowedChild),
	}
	newKeys := append([]K(nil), keys...)
	newKeys[idx-1] = borrowedKey
	newChildren := append([]node[K, V](nil), children...)
	newChildren[idx-1] = newLeft
	newChildren[idx] = newChild
	return true, newKeys, newChildren
}

func tryBorrowRight[K Key[K], V any](keys []K, children []node[K, V], idx int) (bool, []K, []node[K, V]) {
	right := children[idx+1]
	child := children[idx]

	if rightLeaf, ok := right.(*leafNode[K, V]); ok {
		childLeaf := child.(*leafNode[K, V])
		if len(rightLeaf.keys) <= MinKeys {
			return false, nil, nil
		}
		borrowKey, borrowVal := rightLeaf.keys[0], rightLeaf.values[0]
		newRight := &leafNode[K, V]{keys: rightLeaf.keys[1:], values: rightLeaf.values[1:], next: rightLeaf.next}
		newChild := &leafNode[K, V]{
			keys:   append(append([]K(nil), childLeaf.keys...), borrowKey),
			values: append(append([]V(nil), childLeaf.values...), borrowVal),
			next:   newRight,
		}
		newKeys := append([]K(nil), keys...)
		newKeys[idx] = newRight.keys[0]
		newChildren := append([]node[K, V](nil), children...)
		newChildren[idx] = newChild
		newChildren[idx+1] = newRight
		return true, newKeys, newChildren
	}

	rightIn := right.(*internalNode[K, V])
	childIn := child.(*internalNode[K, V])
	if len(rightIn.keys) <= MinKeys {
		return false, nil, nil
	}
	borrowedKey := rightIn.keys[0]
	borrowedChild := rightIn.children[0]
	newRight := &internalNode[K, V]{keys: rightIn.keys[1:], children: rightIn.children[1:]}
	newChild := &internalNode[K, V]{
		keys:     append(append([]K(nil), childIn.keys...), keys[idx]),
		children: append(append([]node[K, V](nil), childIn.children...), borrowedChild),
	}
	newKeys := append([]K(nil), keys...)
	newKeys[idx] = borrowedKey
	newChildren := append([]node[K, V](nil), children...)
	newChildren[idx] = newChild
	newChildren[idx+1] = newRight
	return true, newKeys, newChildren
}

// mergeChildren merges children[leftIdx] and children[leftIdx+1], pulling
// down the separator key for internal merges, per §4.1.
func mergeChildren[K Key[K], V any](keys []K, children []node[K, V], leftIdx int) ([]K, []node[K, V]) {
	left := children[leftIdx]
	right := children[leftIdx+1]

	var merged node[K, V]
	if leftLeaf, ok := left.(*leafNode[K, V]); ok {
		rightLeaf := right.(*leafNode[K, V])
		merged = &leafNode[K, V]{
			keys:   append(append([]K(nil), leftLeaf.keys...), rightLeaf.keys...),
			values: append(append([]V(nil), leftLeaf.values...), rightLeaf.values...),
			next:   rightLeaf.next,
		}
	} else {
		leftIn := left.(*internalNode[K, V])
		rightIn := right.(*internalNode[K, V])
		mergedKeys := append(append([]K(nil), leftIn.keys...), keys[leftIdx])
		mergedKeys = append(mergedKeys, rightIn.keys...)
		mergedChildren := append(append([]node[K, V](nil), leftIn.children...), rightIn.children...)
		merged = &internalNode[K, V]{keys: mergedKeys, children: mergedChildren}
	}

	newKeys := removeAt(keys, leftIdx)
	newChildren := make([]node[K, V], 0, len(children)-1)
	newChildren = append(newChildren, children[:leftIdx]...)
	newChildren = append(newChildren, merged)
	newChildren = append(newChildren, children[leftIdx+2:]...)
	return newKeys, newChildren
}

func removeAt[T any](s []T, idx int) []T {
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:idx]...)
	out = append(out, s[idx+1:]...)
	return out
}
