// Package btree provides an in-memory B+ tree for the ordered tables of obastore.
package btree

// Put stores value under key.
// If the key already exists its value is replaced and the previous value is
// returned with replaced set to true.
//
// Algorithm:
// 1. Find the leaf node for the key
// 2. Replace in place, or insert the pair in sorted order
// 3. If the leaf overflows, split it into two leaves
// 4. Propagate the split up to the parent
// 5. If the root splits, create a new root
func (t *Tree[K, V]) Put(key K, value V) (prev V, replaced bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	leaf, path := t.findLeafWithPath(key)

	idx, found := leaf.findKeyIndex(t.cmp, key)
	if found {
		prev = leaf.values[idx]
		leaf.values[idx] = value
		return prev, true
	}

	leaf.insertLeafAt(idx, key, value)
	t.length++
	t.version++

	if len(leaf.keys) > t.leafCap {
		t.splitLeafAndPropagate(leaf, path)
	}

	return prev, false
}

// splitLeafAndPropagate splits an overflowing leaf and propagates the split.
func (t *Tree[K, V]) splitLeafAndPropagate(leaf *node[K, V], path []pathEntry[K, V]) {
	newLeaf, promotedKey := t.splitLeaf(leaf)
	t.insertIntoParent(path, leaf, promotedKey, newLeaf)
}

// splitLeaf splits a leaf node into two nodes.
// Returns the new right node and the key to promote to the parent.
func (t *Tree[K, V]) splitLeaf(leaf *node[K, V]) (*node[K, V], K) {
	newLeaf := newLeaf[K, V](t.leafCap)

	// Keep more keys in the left node
	splitPoint := (len(leaf.keys) + 1) / 2

	newLeaf.keys = append(newLeaf.keys, leaf.keys[splitPoint:]...)
	newLeaf.values = append(newLeaf.values, leaf.values[splitPoint:]...)

	clear(leaf.keys[splitPoint:])
	clear(leaf.values[splitPoint:])
	leaf.keys = leaf.keys[:splitPoint]
	leaf.values = leaf.values[:splitPoint]

	// Update leaf links
	newLeaf.next = leaf.next
	newLeaf.prev = leaf
	if leaf.next != nil {
		leaf.next.prev = newLeaf
	}
	leaf.next = newLeaf

	// The promoted key is the first key of the new leaf
	return newLeaf, newLeaf.keys[0]
}

// insertIntoParent inserts a separator and right child into the parent.
// If the parent overflows, it splits and propagates up.
func (t *Tree[K, V]) insertIntoParent(path []pathEntry[K, V], left *node[K, V], key K, right *node[K, V]) {
	if len(path) == 0 {
		t.createNewRoot(left, key, right)
		return
	}

	step := path[len(path)-1]
	parent := step.node

	parent.insertChildAt(step.index, key, right)

	if len(parent.children) > t.order {
		newInternal, promotedKey := t.splitInternal(parent)
		t.insertIntoParent(path[:len(path)-1], parent, promotedKey, newInternal)
	}
}

// createNewRoot creates a new root node with two children.
func (t *Tree[K, V]) createNewRoot(left *node[K, V], key K, right *node[K, V]) {
	newRoot := newInternal[K, V](t.order)
	newRoot.keys = append(newRoot.keys, key)
	newRoot.children = append(newRoot.children, left, right)
	t.root = newRoot
}

// splitInternal splits an internal node into two nodes.
// The middle key moves up and is returned with the new right node.
func (t *Tree[K, V]) splitInternal(internal *node[K, V]) (*node[K, V], K) {
	newNode := newInternal[K, V](t.order)

	splitPoint := len(internal.keys) / 2
	promotedKey := internal.keys[splitPoint]

	newNode.keys = append(newNode.keys, internal.keys[splitPoint+1:]...)
	newNode.children = append(newNode.children, internal.children[splitPoint+1:]...)

	clear(internal.keys[splitPoint:])
	clear(internal.children[splitPoint+1:])
	internal.keys = internal.keys[:splitPoint]
	internal.children = internal.children[:splitPoint+1]

	return newNode, promotedKey
}
