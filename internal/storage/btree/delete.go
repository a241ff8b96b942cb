// Package btree provides an in-memory B+ tree for the ordered tables of obastore.
package btree

// Delete removes key from the tree and returns the value it held.
//
// Algorithm:
// 1. Find the leaf node containing the key
// 2. Remove the key-value pair
// 3. If the leaf underflows (< 50% full):
//    a. Try to borrow from a sibling
//    b. If borrowing fails, merge with a sibling
// 4. Propagate underflow up to the root
func (t *Tree[K, V]) Delete(key K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	leaf, path := t.findLeafWithPath(key)

	idx, found := leaf.findKeyIndex(t.cmp, key)
	if !found {
		var zero V
		return zero, false
	}

	_, value := leaf.removeLeafAt(idx)
	t.length--
	t.version++

	if len(path) > 0 && len(leaf.keys) < t.minLeafKeys() {
		t.handleLeafUnderflow(leaf, path)
	}

	return value, true
}

// minLeafKeys is the minimum number of keys in a non-root leaf.
func (t *Tree[K, V]) minLeafKeys() int {
	return t.leafCap / 2
}

// minChildren is the minimum number of children of a non-root internal node.
func (t *Tree[K, V]) minChildren() int {
	return (t.order + 1) / 2
}

// handleLeafUnderflow rebalances a leaf that fell below the minimum.
func (t *Tree[K, V]) handleLeafUnderflow(leaf *node[K, V], path []pathEntry[K, V]) {
	step := path[len(path)-1]
	parent := step.node
	leafIdx := step.index

	// Try to borrow from left sibling
	if leafIdx > 0 {
		left := parent.children[leafIdx-1]
		if len(left.keys) > t.minLeafKeys() {
			t.borrowFromLeftLeaf(parent, left, leaf, leafIdx)
			return
		}
	}

	// Try to borrow from right sibling
	if leafIdx < len(parent.children)-1 {
		right := parent.children[leafIdx+1]
		if len(right.keys) > t.minLeafKeys() {
			t.borrowFromRightLeaf(parent, leaf, right, leafIdx)
			return
		}
	}

	// Cannot borrow, must merge
	if leafIdx > 0 {
		t.mergeLeaves(parent.children[leafIdx-1], leaf)
		t.deleteFromParent(path, leafIdx-1)
		return
	}

	t.mergeLeaves(leaf, parent.children[leafIdx+1])
	t.deleteFromParent(path, leafIdx)
}

// borrowFromLeftLeaf moves the last entry of left to the front of leaf.
func (t *Tree[K, V]) borrowFromLeftLeaf(parent, left, leaf *node[K, V], leafIdx int) {
	key, value := left.removeLeafAt(len(left.keys) - 1)
	leaf.insertLeafAt(0, key, value)

	// Update the parent's separator key
	parent.keys[leafIdx-1] = leaf.keys[0]
}

// borrowFromRightLeaf moves the first entry of right to the end of leaf.
func (t *Tree[K, V]) borrowFromRightLeaf(parent, leaf, right *node[K, V], leafIdx int) {
	key, value := right.removeLeafAt(0)
	leaf.insertLeafAt(len(leaf.keys), key, value)

	// Update the parent's separator key
	parent.keys[leafIdx] = right.keys[0]
}

// mergeLeaves moves every entry of right into left and unlinks right.
func (t *Tree[K, V]) mergeLeaves(left, right *node[K, V]) {
	left.keys = append(left.keys, right.keys...)
	left.values = append(left.values, right.values...)

	left.next = right.next
	if right.next != nil {
		right.next.prev = left
	}

	right.keys = nil
	right.values = nil
	right.next = nil
	right.prev = nil
}

// deleteFromParent removes the separator at keyIdx and the child to its right
// from the deepest node of path, then fixes any underflow above it.
func (t *Tree[K, V]) deleteFromParent(path []pathEntry[K, V], keyIdx int) {
	parent := path[len(path)-1].node
	parent.removeChildAt(keyIdx)

	// Root with a single child collapses one level
	if len(path) == 1 {
		if len(parent.keys) == 0 && len(parent.children) == 1 {
			t.root = parent.children[0]
		}
		return
	}

	if len(parent.children) < t.minChildren() {
		t.handleInternalUnderflow(path)
	}
}

// handleInternalUnderflow rebalances the deepest internal node of path.
func (t *Tree[K, V]) handleInternalUnderflow(path []pathEntry[K, V]) {
	internal := path[len(path)-1].node
	step := path[len(path)-2]
	parent := step.node
	internalIdx := step.index

	// Try to borrow from left sibling
	if internalIdx > 0 {
		left := parent.children[internalIdx-1]
		if len(left.children) > t.minChildren() {
			t.borrowFromLeftInternal(parent, left, internal, internalIdx)
			return
		}
	}

	// Try to borrow from right sibling
	if internalIdx < len(parent.children)-1 {
		right := parent.children[internalIdx+1]
		if len(right.children) > t.minChildren() {
			t.borrowFromRightInternal(parent, internal, right, internalIdx)
			return
		}
	}

	// Cannot borrow, must merge
	if internalIdx > 0 {
		t.mergeInternals(parent, parent.children[internalIdx-1], internal, internalIdx-1)
		t.deleteFromParent(path[:len(path)-1], internalIdx-1)
		return
	}

	t.mergeInternals(parent, internal, parent.children[internalIdx+1], internalIdx)
	t.deleteFromParent(path[:len(path)-1], internalIdx)
}

// borrowFromLeftInternal rotates the last child of left into internal.
func (t *Tree[K, V]) borrowFromLeftInternal(parent, left, internal *node[K, V], internalIdx int) {
	// Move the parent's separator key down to internal
	separatorKey := parent.keys[internalIdx-1]

	lastKeyIdx := len(left.keys) - 1
	lastChildIdx := len(left.children) - 1
	lastChild := left.children[lastChildIdx]

	// Move the last key from left sibling up to parent
	parent.keys[internalIdx-1] = left.keys[lastKeyIdx]

	internal.keys = append([]K{separatorKey}, internal.keys...)
	internal.children = append([]*node[K, V]{lastChild}, internal.children...)

	var zeroK K
	left.keys[lastKeyIdx] = zeroK
	left.keys = left.keys[:lastKeyIdx]
	left.children[lastChildIdx] = nil
	left.children = left.children[:lastChildIdx]
}

// borrowFromRightInternal rotates the first child of right into internal.
func (t *Tree[K, V]) borrowFromRightInternal(parent, internal, right *node[K, V], internalIdx int) {
	// Move the parent's separator key down to internal
	separatorKey := parent.keys[internalIdx]
	firstChild := right.children[0]

	// Move the first key from right sibling up to parent
	parent.keys[internalIdx] = right.keys[0]

	internal.keys = append(internal.keys, separatorKey)
	internal.children = append(internal.children, firstChild)

	right.keys = append(right.keys[:0], right.keys[1:]...)
	right.children = append(right.children[:0], right.children[1:]...)
}

// mergeInternals pulls the separator down and appends right into left.
func (t *Tree[K, V]) mergeInternals(parent, left, right *node[K, V], keyIdx int) {
	left.keys = append(left.keys, parent.keys[keyIdx])
	left.keys = append(left.keys, right.keys...)
	left.children = append(left.children, right.children...)

	right.keys = nil
	right.children = nil
}
