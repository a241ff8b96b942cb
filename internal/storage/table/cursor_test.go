package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/obastore/internal/storage"
)

type intTuple = Tuple[int, int]

func newIntDupTable(t *testing.T, data map[int][]int) *Table[int, int] {
	t.Helper()
	tbl, err := New(Options[int, int]{
		Name:         "ints",
		KeyCompare:   Ordered[int](),
		ValueCompare: Ordered[int](),
		Duplicates:   true,
	})
	require.NoError(t, err)
	for k, vs := range data {
		mustPut(t, tbl, k, vs...)
	}
	return tbl
}

func newIntSingleTable(t *testing.T, data map[int]int) *Table[int, int] {
	t.Helper()
	tbl, err := New(Options[int, int]{
		Name:         "ints",
		KeyCompare:   Ordered[int](),
		ValueCompare: Ordered[int](),
	})
	require.NoError(t, err)
	for k, v := range data {
		mustPut(t, tbl, k, v)
	}
	return tbl
}

func next(t *testing.T, c Cursor[int, int]) (intTuple, bool) {
	t.Helper()
	ok, err := c.Next()
	require.NoError(t, err)
	if !ok {
		return intTuple{}, false
	}
	tuple, err := c.Get()
	require.NoError(t, err)
	return tuple, true
}

func prev(t *testing.T, c Cursor[int, int]) (intTuple, bool) {
	t.Helper()
	ok, err := c.Previous()
	require.NoError(t, err)
	if !ok {
		return intTuple{}, false
	}
	tuple, err := c.Get()
	require.NoError(t, err)
	return tuple, true
}

// =============================================================================
// Duplicate Cursor
// =============================================================================

func TestDupCursorAfterTupleStaysInKey(t *testing.T) {
	tbl := newIntDupTable(t, map[int][]int{1: {10, 20}, 2: {5}})
	c, err := tbl.Cursor()
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.After(1, 10))

	got, ok := next(t, c)
	require.True(t, ok)
	assert.Equal(t, intTuple{1, 20}, got)

	got, ok = next(t, c)
	require.True(t, ok)
	assert.Equal(t, intTuple{2, 5}, got)

	_, ok = next(t, c)
	assert.False(t, ok)
}

func TestDupCursorPositioning(t *testing.T) {
	tbl := newIntDupTable(t, map[int][]int{1: {10, 20}, 2: {5}, 4: {1, 2, 3}})

	tests := []struct {
		name   string
		seek   func(c Cursor[int, int]) error
		next   intTuple
		nextOK bool
		prev   intTuple
		prevOK bool
	}{
		{"before present tuple", func(c Cursor[int, int]) error { return c.Before(1, 20) }, intTuple{1, 20}, true, intTuple{1, 10}, true},
		{"before absent value", func(c Cursor[int, int]) error { return c.Before(1, 15) }, intTuple{1, 20}, true, intTuple{1, 10}, true},
		{"before value past key", func(c Cursor[int, int]) error { return c.Before(1, 25) }, intTuple{2, 5}, true, intTuple{1, 20}, true},
		{"after last value of key", func(c Cursor[int, int]) error { return c.After(1, 20) }, intTuple{2, 5}, true, intTuple{1, 20}, true},
		{"before absent key", func(c Cursor[int, int]) error { return c.Before(3, 0) }, intTuple{4, 1}, true, intTuple{2, 5}, true},
		{"after absent key", func(c Cursor[int, int]) error { return c.After(3, 0) }, intTuple{4, 1}, true, intTuple{2, 5}, true},
		{"after last tuple", func(c Cursor[int, int]) error { return c.After(4, 3) }, intTuple{}, false, intTuple{4, 3}, true},
		{"before first tuple", func(c Cursor[int, int]) error { return c.Before(0, 0) }, intTuple{1, 10}, true, intTuple{}, false},
		{"before key", func(c Cursor[int, int]) error { return c.BeforeKey(2) }, intTuple{2, 5}, true, intTuple{1, 20}, true},
		{"after key", func(c Cursor[int, int]) error { return c.AfterKey(2) }, intTuple{4, 1}, true, intTuple{2, 5}, true},
		{"after key with many values", func(c Cursor[int, int]) error { return c.AfterKey(4) }, intTuple{}, false, intTuple{4, 3}, true},
		{"before first", func(c Cursor[int, int]) error { return c.BeforeFirst() }, intTuple{1, 10}, true, intTuple{}, false},
		{"after last", func(c Cursor[int, int]) error { return c.AfterLast() }, intTuple{}, false, intTuple{4, 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tbl.Cursor()
			require.NoError(t, err)
			defer c.Close()

			require.NoError(t, tt.seek(c))
			assert.False(t, c.Available())
			got, ok := next(t, c)
			assert.Equal(t, tt.nextOK, ok)
			assert.Equal(t, tt.next, got)

			require.NoError(t, tt.seek(c))
			got, ok = prev(t, c)
			assert.Equal(t, tt.prevOK, ok)
			assert.Equal(t, tt.prev, got)
		})
	}
}

func TestDupCursorDirectionChange(t *testing.T) {
	tbl := newIntDupTable(t, map[int][]int{1: {10, 20}, 2: {5, 6}})
	c, err := tbl.Cursor()
	require.NoError(t, err)
	defer c.Close()

	var walk []intTuple
	for range 3 {
		got, ok := next(t, c)
		require.True(t, ok)
		walk = append(walk, got)
	}
	assert.Equal(t, []intTuple{{1, 10}, {1, 20}, {2, 5}}, walk)

	got, ok := prev(t, c)
	require.True(t, ok)
	assert.Equal(t, intTuple{1, 20}, got)

	got, ok = next(t, c)
	require.True(t, ok)
	assert.Equal(t, intTuple{2, 5}, got)
}

func TestDupCursorFirstLast(t *testing.T) {
	tbl := newIntDupTable(t, map[int][]int{3: {7, 8}, 9: {1, 2}})
	c, err := tbl.Cursor()
	require.NoError(t, err)
	defer c.Close()

	ok, err := c.First()
	require.NoError(t, err)
	require.True(t, ok)
	got, _ := c.Get()
	assert.Equal(t, intTuple{3, 7}, got)

	ok, err = c.Last()
	require.NoError(t, err)
	require.True(t, ok)
	got, _ = c.Get()
	assert.Equal(t, intTuple{9, 2}, got)
}

// =============================================================================
// Simple Cursor
// =============================================================================

func TestSimpleCursorPositioning(t *testing.T) {
	tbl := newIntSingleTable(t, map[int]int{1: 10, 2: 20, 3: 30})

	tests := []struct {
		name   string
		seek   func(c Cursor[int, int]) error
		next   intTuple
		nextOK bool
		prev   intTuple
		prevOK bool
	}{
		{"before present tuple", func(c Cursor[int, int]) error { return c.Before(2, 20) }, intTuple{2, 20}, true, intTuple{1, 10}, true},
		{"before larger value", func(c Cursor[int, int]) error { return c.Before(2, 25) }, intTuple{3, 30}, true, intTuple{2, 20}, true},
		{"before smaller value", func(c Cursor[int, int]) error { return c.Before(2, 15) }, intTuple{2, 20}, true, intTuple{1, 10}, true},
		{"after present tuple", func(c Cursor[int, int]) error { return c.After(2, 20) }, intTuple{3, 30}, true, intTuple{2, 20}, true},
		{"after smaller value", func(c Cursor[int, int]) error { return c.After(2, 15) }, intTuple{2, 20}, true, intTuple{1, 10}, true},
		{"before key", func(c Cursor[int, int]) error { return c.BeforeKey(2) }, intTuple{2, 20}, true, intTuple{1, 10}, true},
		{"after key", func(c Cursor[int, int]) error { return c.AfterKey(2) }, intTuple{3, 30}, true, intTuple{2, 20}, true},
		{"after last key", func(c Cursor[int, int]) error { return c.AfterKey(3) }, intTuple{}, false, intTuple{3, 30}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tbl.Cursor()
			require.NoError(t, err)
			defer c.Close()

			require.NoError(t, tt.seek(c))
			got, ok := next(t, c)
			assert.Equal(t, tt.nextOK, ok)
			assert.Equal(t, tt.next, got)

			require.NoError(t, tt.seek(c))
			got, ok = prev(t, c)
			assert.Equal(t, tt.prevOK, ok)
			assert.Equal(t, tt.prev, got)
		})
	}
}

func TestSimpleCursorTupleWithoutComparator(t *testing.T) {
	tbl, err := New(Options[int, int]{Name: "t", KeyCompare: Ordered[int]()})
	require.NoError(t, err)
	mustPut(t, tbl, 1, 1)

	c, err := tbl.Cursor()
	require.NoError(t, err)
	defer c.Close()

	assert.ErrorIs(t, c.Before(1, 1), storage.ErrUnsupported)
	assert.ErrorIs(t, c.After(1, 1), storage.ErrUnsupported)
	require.NoError(t, c.BeforeKey(1))
	got, ok := next(t, c)
	require.True(t, ok)
	assert.Equal(t, intTuple{1, 1}, got)
}

// =============================================================================
// State Machine
// =============================================================================

func TestCursorInvalidPosition(t *testing.T) {
	for name, tbl := range map[string]*Table[int, int]{
		"simple": newIntSingleTable(t, map[int]int{1: 1}),
		"dup":    newIntDupTable(t, map[int][]int{1: {1}}),
	} {
		t.Run(name, func(t *testing.T) {
			c, err := tbl.Cursor()
			require.NoError(t, err)
			defer c.Close()

			assert.False(t, c.Available())
			_, err = c.Get()
			assert.ErrorIs(t, err, storage.ErrInvalidPosition)

			_, ok := next(t, c)
			require.True(t, ok)
			assert.True(t, c.Available())

			_, ok = next(t, c)
			require.False(t, ok)
			assert.False(t, c.Available())
			_, err = c.Get()
			assert.ErrorIs(t, err, storage.ErrInvalidPosition)
		})
	}
}

func TestCursorInvalidatedByTableClose(t *testing.T) {
	tbl := newIntDupTable(t, map[int][]int{1: {1, 2}})
	c, err := tbl.Cursor()
	require.NoError(t, err)

	_, ok := next(t, c)
	require.True(t, ok)

	require.NoError(t, tbl.Close())

	assert.False(t, c.Available())
	_, err = c.Next()
	assert.ErrorIs(t, err, storage.ErrCursorClosed)
	_, err = c.Get()
	assert.ErrorIs(t, err, storage.ErrCursorClosed)
	assert.ErrorIs(t, c.BeforeFirst(), storage.ErrCursorClosed)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestCursorClose(t *testing.T) {
	tbl := newIntSingleTable(t, map[int]int{1: 1})
	c, err := tbl.Cursor()
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, err = c.Previous()
	assert.ErrorIs(t, err, storage.ErrCursorClosed)
}

// =============================================================================
// Weak Consistency
// =============================================================================

func TestDupCursorWeakConsistency(t *testing.T) {
	tbl := newIntDupTable(t, map[int][]int{1: {10, 20}, 2: {5}})
	c, err := tbl.Cursor()
	require.NoError(t, err)
	defer c.Close()

	got, ok := next(t, c)
	require.True(t, ok)
	assert.Equal(t, intTuple{1, 10}, got)

	// Ahead of the position: observed.
	mustPut(t, tbl, 1, 15)
	mustPut(t, tbl, 2, 6)
	mustPut(t, tbl, 3, 1)
	// Behind the position: not visited.
	mustPut(t, tbl, 0, 1)
	mustPut(t, tbl, 1, 5)

	// The current tuple is stable.
	got, err = c.Get()
	require.NoError(t, err)
	assert.Equal(t, intTuple{1, 10}, got)

	var rest []intTuple
	for {
		got, ok := next(t, c)
		if !ok {
			break
		}
		rest = append(rest, got)
	}
	assert.Equal(t, []intTuple{{1, 15}, {1, 20}, {2, 5}, {2, 6}, {3, 1}}, rest)
}

func TestSimpleCursorSkipsRemovedKeys(t *testing.T) {
	tbl := newIntSingleTable(t, map[int]int{1: 1, 2: 2, 3: 3, 4: 4})
	c, err := tbl.Cursor()
	require.NoError(t, err)
	defer c.Close()

	_, ok := next(t, c)
	require.True(t, ok)

	_, err = tbl.Remove(2)
	require.NoError(t, err)
	_, err = tbl.Remove(3)
	require.NoError(t, err)

	got, ok := next(t, c)
	require.True(t, ok)
	assert.Equal(t, intTuple{4, 4}, got)
}

// =============================================================================
// Key and Value Cursors
// =============================================================================

func TestKeyCursor(t *testing.T) {
	tbl := newIntDupTable(t, map[int][]int{1: {10, 20, 30}, 2: {5}})
	c, err := tbl.CursorAt(1)
	require.NoError(t, err)
	defer c.Close()

	tuples, err := Collect(c)
	require.NoError(t, err)
	assert.Equal(t, []intTuple{{1, 10}, {1, 20}, {1, 30}}, tuples)

	ok, err := c.Last()
	require.NoError(t, err)
	require.True(t, ok)
	got, _ := c.Get()
	assert.Equal(t, intTuple{1, 30}, got)

	require.NoError(t, c.After(1, 10))
	got, ok = next(t, c)
	require.True(t, ok)
	assert.Equal(t, intTuple{1, 20}, got)

	require.NoError(t, c.BeforeKey(0))
	got, ok = next(t, c)
	require.True(t, ok)
	assert.Equal(t, intTuple{1, 10}, got)

	require.NoError(t, c.AfterKey(7))
	_, ok = next(t, c)
	assert.False(t, ok)
	got, ok = prev(t, c)
	require.True(t, ok)
	assert.Equal(t, intTuple{1, 30}, got)

	require.NoError(t, c.Before(2, 0))
	_, ok = next(t, c)
	assert.False(t, ok)

	// Repositioning picks up values added since.
	mustPut(t, tbl, 1, 40)
	tuples, err = Collect(c)
	require.NoError(t, err)
	assert.Len(t, tuples, 4)
}

func TestKeyCursorMissingKey(t *testing.T) {
	tbl := newIntDupTable(t, map[int][]int{1: {10}})
	c, err := tbl.CursorAt(5)
	require.NoError(t, err)
	defer c.Close()

	tuples, err := Collect(c)
	require.NoError(t, err)
	assert.Empty(t, tuples)

	ok, err := c.Last()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValueCursor(t *testing.T) {
	tbl := newIntDupTable(t, map[int][]int{1: {10, 20, 30}, 2: {5}})

	tests := []struct {
		key  int
		want []int
	}{
		{1, []int{10, 20, 30}},
		{2, []int{5}},
		{3, nil},
	}

	for _, tt := range tests {
		vc, err := tbl.ValueCursor(tt.key)
		require.NoError(t, err)

		_, err = vc.Get()
		assert.ErrorIs(t, err, storage.ErrInvalidPosition)

		var got []int
		for {
			ok, err := vc.Next()
			require.NoError(t, err)
			if !ok {
				break
			}
			v, err := vc.Get()
			require.NoError(t, err)
			got = append(got, v)
		}
		assert.Equal(t, tt.want, got, "key %d", tt.key)

		// Exhausted forward, walk back once.
		ok, err := vc.Previous()
		require.NoError(t, err)
		assert.Equal(t, tt.want != nil, ok)

		require.NoError(t, vc.Close())
		_, err = vc.Next()
		assert.ErrorIs(t, err, storage.ErrCursorClosed)
	}
}

func TestSingletonValueCursorSeek(t *testing.T) {
	vc := newValueCursor[int](Singleton[int]{Value: 10}, Ordered[int]())

	tests := []struct {
		name   string
		seek   func() error
		nextOK bool
	}{
		{"before equal", func() error { return vc.Before(10) }, true},
		{"before smaller", func() error { return vc.Before(5) }, true},
		{"before larger", func() error { return vc.Before(15) }, false},
		{"after equal", func() error { return vc.After(10) }, false},
		{"after smaller", func() error { return vc.After(5) }, true},
	}

	for _, tt := range tests {
		require.NoError(t, tt.seek())
		ok, err := vc.Next()
		require.NoError(t, err)
		assert.Equal(t, tt.nextOK, ok, tt.name)

		require.NoError(t, tt.seek())
		ok, err = vc.Previous()
		require.NoError(t, err)
		assert.Equal(t, !tt.nextOK, ok, tt.name)
	}
}
