// Package btree provides an in-memory B+ tree for the ordered tables of obastore.
package btree

import (
	"sync"
)

// Compare orders two keys: negative if a < b, zero if equal, positive if a > b.
type Compare[K any] func(a, b K) int

// Options tunes the node sizes of a tree.
type Options struct {
	// Order is the maximum number of children per internal node.
	Order int
	// LeafCapacity is the maximum number of entries per leaf.
	LeafCapacity int
}

// Tree is a B+ tree mapping unique keys to values.
type Tree[K, V any] struct {
	mu      sync.RWMutex
	root    *node[K, V]
	cmp     Compare[K]
	order   int
	leafCap int
	length  int

	// version changes on every structural modification; iterators use it
	// to detect that their leaf position may be stale.
	version uint64
}

// New creates an empty tree ordered by cmp with default node sizes.
func New[K, V any](cmp Compare[K]) *Tree[K, V] {
	return NewWithOptions[K, V](cmp, Options{})
}

// NewWithOptions creates an empty tree with the given node sizes.
// Zero or too small sizes are replaced by the defaults.
func NewWithOptions[K, V any](cmp Compare[K], opts Options) *Tree[K, V] {
	if cmp == nil {
		panic("btree: nil comparator")
	}

	order := opts.Order
	if order == 0 {
		order = DefaultOrder
	}
	if order < minOrder {
		order = minOrder
	}

	leafCap := opts.LeafCapacity
	if leafCap == 0 {
		leafCap = DefaultLeafCapacity
	}
	if leafCap < minOrder {
		leafCap = minOrder
	}

	return &Tree[K, V]{
		root:    newLeaf[K, V](leafCap),
		cmp:     cmp,
		order:   order,
		leafCap: leafCap,
	}
}

// Compare returns the comparator of the tree.
func (t *Tree[K, V]) Compare() Compare[K] {
	return t.cmp
}

// Len returns the number of keys in the tree.
func (t *Tree[K, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.length
}

// IsEmpty returns true if the tree has no keys.
func (t *Tree[K, V]) IsEmpty() bool {
	return t.Len() == 0
}

// Get returns the value stored under key.
func (t *Tree[K, V]) Get(key K) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaf := t.findLeaf(key)
	idx, found := leaf.findKeyIndex(t.cmp, key)
	if !found {
		var zero V
		return zero, false
	}
	return leaf.values[idx], true
}

// Has reports whether key is present.
func (t *Tree[K, V]) Has(key K) bool {
	_, ok := t.Get(key)
	return ok
}

// Min returns the smallest key and its value.
func (t *Tree[K, V]) Min() (K, V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaf, idx := t.first()
	return entryAt(leaf, idx)
}

// Max returns the largest key and its value.
func (t *Tree[K, V]) Max() (K, V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaf, idx := t.last()
	return entryAt(leaf, idx)
}

// Ceiling returns the smallest key >= key.
func (t *Tree[K, V]) Ceiling(key K) (K, V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaf, idx := t.seekGE(key)
	return entryAt(leaf, idx)
}

// Floor returns the largest key <= key.
func (t *Tree[K, V]) Floor(key K) (K, V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaf, idx := t.seekLE(key)
	return entryAt(leaf, idx)
}

// Ascend calls fn for every entry in key order until fn returns false.
// The read lock is held for the whole walk, so fn must not modify the tree.
func (t *Tree[K, V]) Ascend(fn func(key K, value V) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for leaf, idx := t.first(); leaf != nil; leaf, idx = leaf.next, 0 {
		for ; idx < len(leaf.keys); idx++ {
			if !fn(leaf.keys[idx], leaf.values[idx]) {
				return
			}
		}
	}
}

// Clear removes every key from the tree.
func (t *Tree[K, V]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.root = newLeaf[K, V](t.leafCap)
	t.length = 0
	t.version++
}

// findLeaf finds the leaf node that should contain the given key.
func (t *Tree[K, V]) findLeaf(key K) *node[K, V] {
	n := t.root
	for !n.leaf {
		n = n.children[n.childIndex(t.cmp, key)]
	}
	return n
}

// pathEntry records one step of a root-to-leaf descent.
type pathEntry[K, V any] struct {
	node  *node[K, V]
	index int // index of the child taken from node
}

// findLeafWithPath finds the leaf for key and the internal nodes above it.
func (t *Tree[K, V]) findLeafWithPath(key K) (*node[K, V], []pathEntry[K, V]) {
	var path []pathEntry[K, V]

	n := t.root
	for !n.leaf {
		idx := n.childIndex(t.cmp, key)
		path = append(path, pathEntry[K, V]{node: n, index: idx})
		n = n.children[idx]
	}
	return n, path
}

// first returns the leftmost entry position, or a nil leaf if the tree is empty.
func (t *Tree[K, V]) first() (*node[K, V], int) {
	n := t.root
	for !n.leaf {
		n = n.children[0]
	}
	if len(n.keys) == 0 {
		return nil, 0
	}
	return n, 0
}

// last returns the rightmost entry position, or a nil leaf if the tree is empty.
func (t *Tree[K, V]) last() (*node[K, V], int) {
	n := t.root
	for !n.leaf {
		n = n.children[len(n.children)-1]
	}
	if len(n.keys) == 0 {
		return nil, 0
	}
	return n, len(n.keys) - 1
}

// seekGE returns the position of the first key >= key.
func (t *Tree[K, V]) seekGE(key K) (*node[K, V], int) {
	leaf := t.findLeaf(key)
	idx, _ := leaf.findKeyIndex(t.cmp, key)
	return forward(leaf, idx)
}

// seekGT returns the position of the first key > key.
func (t *Tree[K, V]) seekGT(key K) (*node[K, V], int) {
	leaf := t.findLeaf(key)
	idx, found := leaf.findKeyIndex(t.cmp, key)
	if found {
		idx++
	}
	return forward(leaf, idx)
}

// seekLE returns the position of the last key <= key.
func (t *Tree[K, V]) seekLE(key K) (*node[K, V], int) {
	leaf := t.findLeaf(key)
	idx, found := leaf.findKeyIndex(t.cmp, key)
	if !found {
		idx--
	}
	return backward(leaf, idx)
}

// seekLT returns the position of the last key < key.
func (t *Tree[K, V]) seekLT(key K) (*node[K, V], int) {
	leaf := t.findLeaf(key)
	idx, _ := leaf.findKeyIndex(t.cmp, key)
	return backward(leaf, idx-1)
}

// forward normalizes a position that may sit past the end of its leaf.
func forward[K, V any](leaf *node[K, V], idx int) (*node[K, V], int) {
	for leaf != nil && idx >= len(leaf.keys) {
		leaf = leaf.next
		idx = 0
	}
	return leaf, idx
}

// backward normalizes a position that may sit before the start of its leaf.
func backward[K, V any](leaf *node[K, V], idx int) (*node[K, V], int) {
	for leaf != nil && idx < 0 {
		leaf = leaf.prev
		if leaf != nil {
			idx = len(leaf.keys) - 1
		}
	}
	return leaf, idx
}

// entryAt returns the entry at a position produced by the seek helpers.
func entryAt[K, V any](leaf *node[K, V], idx int) (K, V, bool) {
	if leaf == nil {
		var zk K
		var zv V
		return zk, zv, false
	}
	return leaf.keys[idx], leaf.values[idx], true
}

// TreeStats holds statistics about the B+ tree.
type TreeStats struct {
	Height        int
	InternalNodes int
	LeafNodes     int
	TotalKeys     int
}

// Stats returns statistics about the tree.
func (t *Tree[K, V]) Stats() TreeStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := TreeStats{TotalKeys: t.length}

	var walk func(n *node[K, V], depth int)
	walk = func(n *node[K, V], depth int) {
		if depth > stats.Height {
			stats.Height = depth
		}
		if n.leaf {
			stats.LeafNodes++
			return
		}
		stats.InternalNodes++
		for _, child := range n.children {
			walk(child, depth+1)
		}
	}
	walk(t.root, 1)

	return stats
}
