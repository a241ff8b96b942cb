package btree

import (
	"cmp"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSmallTree creates a tree with tiny nodes so that splits and merges
// happen after a handful of operations.
func newSmallTree() *Tree[int, string] {
	return NewWithOptions[int, string](cmp.Compare[int], Options{Order: 4, LeafCapacity: 4})
}

// checkInvariants walks the whole tree and verifies ordering, separators,
// leaf links and the cached length.
func checkInvariants[K, V any](t *testing.T, tree *Tree[K, V]) {
	t.Helper()

	tree.mu.RLock()
	defer tree.mu.RUnlock()

	var leaves []*node[K, V]
	var walk func(n *node[K, V], lo, hi *K, depth int) int
	walk = func(n *node[K, V], lo, hi *K, depth int) int {
		for i := 1; i < len(n.keys); i++ {
			require.Negative(t, tree.cmp(n.keys[i-1], n.keys[i]), "keys out of order")
		}
		for _, k := range n.keys {
			if lo != nil {
				require.GreaterOrEqual(t, tree.cmp(k, *lo), 0, "key below separator")
			}
			if hi != nil {
				require.Negative(t, tree.cmp(k, *hi), "key above separator")
			}
		}
		if n.leaf {
			require.Len(t, n.values, len(n.keys))
			if n != tree.root {
				require.NotEmpty(t, n.keys, "empty non-root leaf")
			}
			leaves = append(leaves, n)
			return depth
		}
		require.Len(t, n.children, len(n.keys)+1)
		leafDepth := -1
		for i, child := range n.children {
			clo, chi := lo, hi
			if i > 0 {
				clo = &n.keys[i-1]
			}
			if i < len(n.keys) {
				chi = &n.keys[i]
			}
			d := walk(child, clo, chi, depth+1)
			if leafDepth == -1 {
				leafDepth = d
			}
			require.Equal(t, leafDepth, d, "leaves at different depths")
		}
		return leafDepth
	}
	walk(tree.root, nil, nil, 1)

	total := 0
	for i, leaf := range leaves {
		total += len(leaf.keys)
		if i > 0 {
			require.Same(t, leaves[i-1], leaf.prev)
			require.Same(t, leaf, leaves[i-1].next)
		}
	}
	if len(leaves) > 0 {
		require.Nil(t, leaves[0].prev)
		require.Nil(t, leaves[len(leaves)-1].next)
	}
	require.Equal(t, tree.length, total)
}

func collectKeys[K, V any](tree *Tree[K, V]) []K {
	var keys []K
	tree.Ascend(func(k K, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// =============================================================================
// Basic Operations
// =============================================================================

func TestTreePutGet(t *testing.T) {
	tree := New[string, int](strings.Compare)

	_, replaced := tree.Put("uid=alice", 1)
	assert.False(t, replaced)
	_, replaced = tree.Put("uid=bob", 2)
	assert.False(t, replaced)

	v, ok := tree.Get("uid=alice")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	prev, replaced := tree.Put("uid=alice", 10)
	assert.True(t, replaced)
	assert.Equal(t, 1, prev)

	v, _ = tree.Get("uid=alice")
	assert.Equal(t, 10, v)
	assert.Equal(t, 2, tree.Len())

	_, ok = tree.Get("uid=carol")
	assert.False(t, ok)
	assert.False(t, tree.Has("uid=carol"))
}

func TestTreeEmpty(t *testing.T) {
	tree := newSmallTree()

	assert.True(t, tree.IsEmpty())
	_, _, ok := tree.Min()
	assert.False(t, ok)
	_, _, ok = tree.Max()
	assert.False(t, ok)
	_, _, ok = tree.Ceiling(5)
	assert.False(t, ok)
	_, _, ok = tree.Floor(5)
	assert.False(t, ok)
	_, ok = tree.Delete(5)
	assert.False(t, ok)
}

func TestTreeSplitsAndMerges(t *testing.T) {
	tree := newSmallTree()

	for i := 0; i < 200; i++ {
		tree.Put(i, "v")
	}
	checkInvariants(t, tree)
	assert.Greater(t, tree.Stats().Height, 2)

	for i := 0; i < 200; i += 2 {
		_, ok := tree.Delete(i)
		require.True(t, ok)
		checkInvariants(t, tree)
	}
	assert.Equal(t, 100, tree.Len())

	for i := 1; i < 200; i += 2 {
		_, ok := tree.Delete(i)
		require.True(t, ok)
	}
	checkInvariants(t, tree)
	assert.Equal(t, 0, tree.Len())
	assert.Equal(t, 1, tree.Stats().Height)
}

func TestTreeCeilingFloor(t *testing.T) {
	tree := newSmallTree()
	for _, k := range []int{10, 20, 30, 40, 50, 60, 70} {
		tree.Put(k, "")
	}

	tests := []struct {
		target  int
		ceiling int
		cOK     bool
		floor   int
		fOK     bool
	}{
		{5, 10, true, 0, false},
		{10, 10, true, 10, true},
		{35, 40, true, 30, true},
		{70, 70, true, 70, true},
		{75, 0, false, 70, true},
	}

	for _, tt := range tests {
		k, _, ok := tree.Ceiling(tt.target)
		assert.Equal(t, tt.cOK, ok, "ceiling(%d)", tt.target)
		if ok {
			assert.Equal(t, tt.ceiling, k)
		}
		k, _, ok = tree.Floor(tt.target)
		assert.Equal(t, tt.fOK, ok, "floor(%d)", tt.target)
		if ok {
			assert.Equal(t, tt.floor, k)
		}
	}
}

func TestTreeRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tree := newSmallTree()
	model := make(map[int]string)

	for i := 0; i < 5000; i++ {
		k := rng.Intn(300)
		if rng.Intn(3) == 0 {
			_, got := tree.Delete(k)
			_, want := model[k]
			require.Equal(t, want, got)
			delete(model, k)
		} else {
			tree.Put(k, "x")
			model[k] = "x"
		}
		if i%250 == 0 {
			checkInvariants(t, tree)
		}
	}
	checkInvariants(t, tree)

	want := make([]int, 0, len(model))
	for k := range model {
		want = append(want, k)
	}
	slices.Sort(want)
	assert.Equal(t, want, collectKeys(tree))
}

func TestTreeClear(t *testing.T) {
	tree := newSmallTree()
	for i := 0; i < 50; i++ {
		tree.Put(i, "")
	}
	tree.Clear()
	assert.Equal(t, 0, tree.Len())
	assert.Empty(t, collectKeys(tree))
	checkInvariants(t, tree)
}

func TestNewNilComparatorPanics(t *testing.T) {
	assert.Panics(t, func() { New[int, int](nil) })
}
