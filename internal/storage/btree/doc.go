// Package btree implements an in-memory B+ tree ordered by a caller supplied
// comparator.
//
// # Overview
//
// The tree backs the ordered tables of the storage layer. It provides:
//
//   - O(log n) lookup, insertion, and deletion
//   - Range scans via linked leaves
//   - Positionable iterators that walk in both directions
//
// Keys are unique. Multi-valued keys are modelled by the caller storing a
// container as the value.
//
// # Usage
//
//	tree := btree.New[string, int](strings.Compare)
//	tree.Put("uid=alice", 1)
//
//	it := tree.Iterator()
//	defer it.Close()
//	it.SeekBefore("uid=a")
//	for it.Next() {
//	    fmt.Println(it.Key(), it.Value())
//	}
//
// # Concurrency
//
// A tree is guarded by its own RWMutex. Iterators take the read lock for each
// step only. When the tree changed since the previous step, an iterator
// re-seeks from the last key it returned, so it observes keys inserted ahead
// of its position and never returns a key that was deleted before the step.
package btree
