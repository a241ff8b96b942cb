// Package btree provides an in-memory B+ tree for the ordered tables of obastore.
package btree

// B+ Tree constants.
const (
	// DefaultOrder is the maximum number of children per internal node.
	DefaultOrder = 64

	// DefaultLeafCapacity is the maximum number of entries per leaf node.
	DefaultLeafCapacity = 64

	// minOrder is the smallest order that keeps splits and merges well formed.
	minOrder = 4
)

// node represents a node in the B+ Tree.
// It is either an internal node (keys and child pointers)
// or a leaf node (keys and values).
type node[K, V any] struct {
	// leaf indicates whether this is a leaf node.
	leaf bool

	// keys holds the ordered keys.
	// For internal nodes: keys[i] separates children[i] and children[i+1];
	// every key under children[i+1] is >= keys[i].
	// For leaf nodes: keys[i] corresponds to values[i].
	keys []K

	// children holds child pointers (internal nodes only).
	// len(children) = len(keys) + 1.
	children []*node[K, V]

	// values holds the stored values (leaf nodes only).
	values []V

	// next and prev link the leaves in key order.
	next *node[K, V]
	prev *node[K, V]
}

// newLeaf creates an empty leaf node.
func newLeaf[K, V any](capacity int) *node[K, V] {
	return &node[K, V]{
		leaf:   true,
		keys:   make([]K, 0, capacity+1),
		values: make([]V, 0, capacity+1),
	}
}

// newInternal creates an empty internal node.
func newInternal[K, V any](order int) *node[K, V] {
	return &node[K, V]{
		keys:     make([]K, 0, order),
		children: make([]*node[K, V], 0, order+1),
	}
}

// findKeyIndex returns the index of the first key >= key and whether that
// key is equal to the search key.
func (n *node[K, V]) findKeyIndex(cmp Compare[K], key K) (int, bool) {
	low, high := 0, len(n.keys)

	for low < high {
		mid := int(uint(low+high) >> 1)
		c := cmp(n.keys[mid], key)
		if c < 0 {
			low = mid + 1
		} else if c > 0 {
			high = mid
		} else {
			return mid, true
		}
	}

	return low, false
}

// childIndex returns the index of the child that covers key.
// Only valid for internal nodes.
func (n *node[K, V]) childIndex(cmp Compare[K], key K) int {
	idx, found := n.findKeyIndex(cmp, key)
	if found {
		return idx + 1
	}
	return idx
}

// insertLeafAt inserts a key-value pair at the given leaf position.
func (n *node[K, V]) insertLeafAt(index int, key K, value V) {
	var zeroK K
	var zeroV V

	n.keys = append(n.keys, zeroK)
	copy(n.keys[index+1:], n.keys[index:])
	n.keys[index] = key

	n.values = append(n.values, zeroV)
	copy(n.values[index+1:], n.values[index:])
	n.values[index] = value
}

// removeLeafAt removes the entry at the given leaf position and returns it.
func (n *node[K, V]) removeLeafAt(index int) (K, V) {
	key := n.keys[index]
	value := n.values[index]

	var zeroK K
	var zeroV V

	copy(n.keys[index:], n.keys[index+1:])
	n.keys[len(n.keys)-1] = zeroK
	n.keys = n.keys[:len(n.keys)-1]

	copy(n.values[index:], n.values[index+1:])
	n.values[len(n.values)-1] = zeroV
	n.values = n.values[:len(n.values)-1]

	return key, value
}

// insertChildAt inserts a separator key at index and the child to its right.
func (n *node[K, V]) insertChildAt(index int, key K, child *node[K, V]) {
	var zeroK K

	n.keys = append(n.keys, zeroK)
	copy(n.keys[index+1:], n.keys[index:])
	n.keys[index] = key

	n.children = append(n.children, nil)
	copy(n.children[index+2:], n.children[index+1:])
	n.children[index+1] = child
}

// removeChildAt removes the separator key at index and the child to its right.
func (n *node[K, V]) removeChildAt(index int) {
	var zeroK K

	copy(n.keys[index:], n.keys[index+1:])
	n.keys[len(n.keys)-1] = zeroK
	n.keys = n.keys[:len(n.keys)-1]

	copy(n.children[index+1:], n.children[index+2:])
	n.children[len(n.children)-1] = nil
	n.children = n.children[:len(n.children)-1]
}
