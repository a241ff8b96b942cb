package table

import (
	"github.com/KilimcininKorOglu/obastore/internal/storage/btree"
)

// MemoryBacking keeps containers in an in-memory B+ tree.
type MemoryBacking[K, V any] struct {
	tree *btree.Tree[K, Container[V]]
}

// NewMemoryBacking returns an empty backing ordered by keyCmp.
func NewMemoryBacking[K, V any](keyCmp Comparator[K]) *MemoryBacking[K, V] {
	return &MemoryBacking[K, V]{
		tree: btree.New[K, Container[V]](keyCmp.tree()),
	}
}

// Get returns the container stored under key.
func (m *MemoryBacking[K, V]) Get(key K) (Container[V], bool, error) {
	c, ok := m.tree.Get(key)
	return c, ok, nil
}

// Put stores c under key.
func (m *MemoryBacking[K, V]) Put(key K, c Container[V], _ Change[V]) error {
	m.tree.Put(key, c)
	return nil
}

// Delete removes key.
func (m *MemoryBacking[K, V]) Delete(key K) error {
	m.tree.Delete(key)
	return nil
}

// Len returns the number of keys.
func (m *MemoryBacking[K, V]) Len() int {
	return m.tree.Len()
}

// Iterator returns a new iterator positioned before the first key.
func (m *MemoryBacking[K, V]) Iterator() Iterator[K, V] {
	return m.tree.Iterator()
}

// Sync is a no-op.
func (m *MemoryBacking[K, V]) Sync() error { return nil }

// Close is a no-op.
func (m *MemoryBacking[K, V]) Close() error { return nil }

// Destroy drops every key.
func (m *MemoryBacking[K, V]) Destroy() error {
	m.tree.Clear()
	return nil
}
