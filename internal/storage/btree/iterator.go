// Package btree provides an in-memory B+ tree for the ordered tables of obastore.
package btree

// position describes where an iterator sits relative to the keys of the tree.
type position int

const (
	// posStart is before the first key.
	posStart position = iota
	// posEnd is after the last key.
	posEnd
	// posBefore is the gap just before pivot: Next yields the first key >= pivot.
	posBefore
	// posAfter is the gap just after pivot: Next yields the first key > pivot.
	posAfter
	// posOn is on the entry (key, value).
	posOn
)

// Iterator walks the entries of a tree in either direction.
// It can be positioned at either end or in the gap before or after any key,
// whether or not that key is present.
type Iterator[K, V any] struct {
	tree   *Tree[K, V]
	pos    position
	pivot  K
	closed bool

	// Current entry, valid when pos == posOn.
	key   K
	value V

	// Leaf position of the current entry and the tree version it was read
	// at; reused for the next step only while the version is unchanged.
	leaf    *node[K, V]
	idx     int
	version uint64
}

// Iterator returns a new iterator positioned before the first key.
func (t *Tree[K, V]) Iterator() *Iterator[K, V] {
	return &Iterator[K, V]{tree: t, pos: posStart}
}

// BeforeFirst positions the iterator before the first key.
func (it *Iterator[K, V]) BeforeFirst() {
	it.reset(posStart)
}

// AfterLast positions the iterator after the last key.
func (it *Iterator[K, V]) AfterLast() {
	it.reset(posEnd)
}

// SeekBefore positions the iterator so that Next returns the first key >= key
// and Prev returns the last key < key.
func (it *Iterator[K, V]) SeekBefore(key K) {
	it.reset(posBefore)
	it.pivot = key
}

// SeekAfter positions the iterator so that Next returns the first key > key
// and Prev returns the last key <= key.
func (it *Iterator[K, V]) SeekAfter(key K) {
	it.reset(posAfter)
	it.pivot = key
}

// Next moves to the next entry. It returns false, leaving the iterator after
// the last key, when there is none.
func (it *Iterator[K, V]) Next() bool {
	if it.closed {
		return false
	}

	t := it.tree
	t.mu.RLock()
	defer t.mu.RUnlock()

	var leaf *node[K, V]
	var idx int

	switch it.pos {
	case posStart:
		leaf, idx = t.first()
	case posEnd:
		return false
	case posBefore:
		leaf, idx = t.seekGE(it.pivot)
	case posAfter:
		leaf, idx = t.seekGT(it.pivot)
	case posOn:
		if it.version == t.version {
			leaf, idx = forward(it.leaf, it.idx+1)
		} else {
			leaf, idx = t.seekGT(it.key)
		}
	}

	if leaf == nil {
		it.reset(posEnd)
		return false
	}
	it.land(leaf, idx)
	return true
}

// Prev moves to the previous entry. It returns false, leaving the iterator
// before the first key, when there is none.
func (it *Iterator[K, V]) Prev() bool {
	if it.closed {
		return false
	}

	t := it.tree
	t.mu.RLock()
	defer t.mu.RUnlock()

	var leaf *node[K, V]
	var idx int

	switch it.pos {
	case posStart:
		return false
	case posEnd:
		leaf, idx = t.last()
	case posBefore:
		leaf, idx = t.seekLT(it.pivot)
	case posAfter:
		leaf, idx = t.seekLE(it.pivot)
	case posOn:
		if it.version == t.version {
			leaf, idx = backward(it.leaf, it.idx-1)
		} else {
			leaf, idx = t.seekLT(it.key)
		}
	}

	if leaf == nil {
		it.reset(posStart)
		return false
	}
	it.land(leaf, idx)
	return true
}

// Valid returns true if the iterator is positioned on an entry.
func (it *Iterator[K, V]) Valid() bool {
	return !it.closed && it.pos == posOn
}

// Key returns the key of the current entry.
// The result is undefined unless Valid returns true.
func (it *Iterator[K, V]) Key() K {
	return it.key
}

// Value returns the value of the current entry as it was when the iterator
// moved onto it. The result is undefined unless Valid returns true.
func (it *Iterator[K, V]) Value() V {
	return it.value
}

// Close releases the iterator. After Close, Next and Prev return false.
func (it *Iterator[K, V]) Close() {
	it.reset(posEnd)
	it.closed = true
}

// land records the entry at (leaf, idx) as the current one.
// Caller must hold the tree read lock.
func (it *Iterator[K, V]) land(leaf *node[K, V], idx int) {
	it.pos = posOn
	it.leaf = leaf
	it.idx = idx
	it.key = leaf.keys[idx]
	it.value = leaf.values[idx]
	it.version = it.tree.version
}

// reset moves the iterator to a gap position and drops the current entry.
func (it *Iterator[K, V]) reset(pos position) {
	var zeroK K
	var zeroV V

	it.pos = pos
	it.pivot = zeroK
	it.key = zeroK
	it.value = zeroV
	it.leaf = nil
	it.idx = 0
}
