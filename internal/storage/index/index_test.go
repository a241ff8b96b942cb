package index

import (
	"cmp"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/obastore/internal/storage"
	"github.com/KilimcininKorOglu/obastore/internal/storage/journal"
	"github.com/KilimcininKorOglu/obastore/internal/storage/table"
)

func cnOptions() Options[string, uint64] {
	return Options[string, uint64]{
		Attribute:    "cn",
		ValueCompare: strings.Compare,
		IDCompare:    cmp.Compare[uint64],
		Normalizer:   CaseIgnoreNormalizer{},
	}
}

func newCNIndex(t *testing.T) *Index[string, uint64] {
	t.Helper()
	idx, err := New(cnOptions())
	require.NoError(t, err)
	return idx
}

// =============================================================================
// Normalizers
// =============================================================================

func TestCaseIgnoreNormalizer(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Paris", "paris"},
		{"  New   York ", "new york"},
		{"A\tB\nC", "a b c"},
		{"", ""},
		{"ÇAĞRI Öz", "çağri öz"},
	}

	for _, tt := range tests {
		got, err := CaseIgnoreNormalizer{}.Normalize(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "normalize %q", tt.in)
	}
}

func TestNormalizerFuncError(t *testing.T) {
	errBad := errors.New("invalid syntax")
	opts := cnOptions()
	opts.Normalizer = NormalizerFunc[string](func(s string) (string, error) {
		if s == "" {
			return "", errBad
		}
		return s, nil
	})
	idx, err := New(opts)
	require.NoError(t, err)

	err = idx.Add("", 1)
	assert.ErrorIs(t, err, errBad)
	assert.Zero(t, idx.Count())
}

func TestParseIndexType(t *testing.T) {
	for in, want := range map[string]IndexType{
		"":          IndexEquality,
		"Equality":  IndexEquality,
		"pres":      IndexPresence,
		"SUBSTRING": IndexSubstring,
	} {
		got, err := ParseIndexType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.NotEqual(t, "unknown", got.String())
	}

	_, err := ParseIndexType("approx")
	assert.Error(t, err)
}

// =============================================================================
// Mutations
// =============================================================================

func TestIndexConsistencyScenario(t *testing.T) {
	idx := newCNIndex(t)
	const id1, id2 = uint64(1), uint64(2)

	require.NoError(t, idx.Add("paris", id1))
	require.NoError(t, idx.Add("paris", id2))
	require.NoError(t, idx.DropValue("paris", id1))

	ok, err := idx.Reverse(id1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = idx.ForwardValue("paris", id2)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, idx.Verify())
}

func TestIndexNormalizesValues(t *testing.T) {
	idx := newCNIndex(t)
	require.NoError(t, idx.Add("  Alice   Smith ", 7))

	ok, err := idx.Forward("alice smith")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = idx.ForwardValue("ALICE SMITH", 7)
	require.NoError(t, err)
	assert.True(t, ok)

	// Stored values are normalized.
	v, ok, err := idx.ReverseLookup(7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice smith", v)

	ok, err = idx.ReverseValue(7, "Alice Smith")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIndexDropID(t *testing.T) {
	idx := newCNIndex(t)
	require.NoError(t, idx.Add("alice", 1))
	require.NoError(t, idx.Add("al", 1))
	require.NoError(t, idx.Add("alice", 2))

	require.NoError(t, idx.Drop(1))

	ok, _ := idx.Reverse(1)
	assert.False(t, ok)
	ok, _ = idx.ForwardValue("alice", 1)
	assert.False(t, ok)
	ok, _ = idx.Forward("al")
	assert.False(t, ok)
	ok, _ = idx.ForwardValue("alice", 2)
	assert.True(t, ok)
	assert.Equal(t, 1, idx.Count())

	// Dropping an unknown id is a no-op.
	require.NoError(t, idx.Drop(99))
	require.NoError(t, idx.Verify())
}

func TestIndexAddIdempotent(t *testing.T) {
	idx := newCNIndex(t)
	require.NoError(t, idx.Add("bob", 3))
	require.NoError(t, idx.Add("Bob", 3))
	assert.Equal(t, 1, idx.Count())

	n, err := idx.CountValue("BOB")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSingleValuedIndexReplaces(t *testing.T) {
	opts := cnOptions()
	opts.Attribute = "entryUUID"
	opts.SingleValued = true
	idx, err := New(opts)
	require.NoError(t, err)
	assert.True(t, idx.IsSingleValued())

	require.NoError(t, idx.Add("first", 1))
	require.NoError(t, idx.Add("second", 1))

	ok, _ := idx.Forward("first")
	assert.False(t, ok)
	values, err := idx.Values(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, values)
	assert.Equal(t, 1, idx.Count())
	require.NoError(t, idx.Verify())

	_, err = idx.ReverseGreaterOrEqValue(1, "a")
	assert.ErrorIs(t, err, storage.ErrUnsupported)
}

// =============================================================================
// Range Predicates and Lookups
// =============================================================================

func TestIndexRanges(t *testing.T) {
	idx := newCNIndex(t)
	require.NoError(t, idx.Add("b", 10))
	require.NoError(t, idx.Add("b", 20))
	require.NoError(t, idx.Add("d", 30))

	check := func(name string, got bool, err error, want bool) {
		t.Helper()
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	ok, err := idx.ForwardGreaterOrEq("C")
	check("forward >= c", ok, err, true)
	ok, err = idx.ForwardGreaterOrEq("e")
	check("forward >= e", ok, err, false)
	ok, err = idx.ForwardLessOrEq("a")
	check("forward <= a", ok, err, false)
	ok, err = idx.ForwardLessOrEq("B")
	check("forward <= b", ok, err, true)

	ok, err = idx.ForwardGreaterOrEqID("b", 15)
	check("b has id >= 15", ok, err, true)
	ok, err = idx.ForwardGreaterOrEqID("b", 21)
	check("b has id >= 21", ok, err, false)
	ok, err = idx.ForwardLessOrEqID("b", 9)
	check("b has id <= 9", ok, err, false)
	ok, err = idx.ForwardLessOrEqID("b", 10)
	check("b has id <= 10", ok, err, true)

	ok, err = idx.ReverseGreaterOrEq(25)
	check("id >= 25", ok, err, true)
	ok, err = idx.ReverseLessOrEq(5)
	check("id <= 5", ok, err, false)
	ok, err = idx.ReverseGreaterOrEqValue(30, "c")
	check("30 has value >= c", ok, err, true)
	ok, err = idx.ReverseLessOrEqValue(30, "c")
	check("30 has value <= c", ok, err, false)

	id, ok, err := idx.ForwardLookup("B")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(10), id)
}

func TestIndexCursors(t *testing.T) {
	idx := newCNIndex(t)
	require.NoError(t, idx.Add("x", 2))
	require.NoError(t, idx.Add("x", 1))
	require.NoError(t, idx.Add("y", 1))

	c, err := idx.ForwardCursorAt("X")
	require.NoError(t, err)
	tuples, err := table.Collect(c)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.Equal(t, []table.Tuple[string, uint64]{{"x", 1}, {"x", 2}}, tuples)

	rc, err := idx.ReverseCursorAt(1)
	require.NoError(t, err)
	rtuples, err := table.Collect(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, []table.Tuple[uint64, string]{{1, "x"}, {1, "y"}}, rtuples)
}

// =============================================================================
// Bidirectional Invariant
// =============================================================================

// failingBacking fails every mutation while fail is set.
type failingBacking[K, V any] struct {
	*table.MemoryBacking[K, V]
	fail bool
}

var errDisk = errors.New("disk full")

func (f *failingBacking[K, V]) Put(key K, c table.Container[V], change table.Change[V]) error {
	if f.fail {
		return errDisk
	}
	return f.MemoryBacking.Put(key, c, change)
}

func (f *failingBacking[K, V]) Delete(key K) error {
	if f.fail {
		return errDisk
	}
	return f.MemoryBacking.Delete(key)
}

func newIndexWithFailingReverse(t *testing.T, single bool) (*Index[string, uint64], *failingBacking[uint64, string]) {
	t.Helper()
	opts := cnOptions()
	opts.SingleValued = single

	forward, err := table.New(table.Options[string, uint64]{
		Name:         "cn.forward",
		KeyCompare:   strings.Compare,
		ValueCompare: cmp.Compare[uint64],
		Duplicates:   true,
	})
	require.NoError(t, err)

	backing := &failingBacking[uint64, string]{
		MemoryBacking: table.NewMemoryBacking[uint64, string](cmp.Compare[uint64]),
	}
	reverse, err := table.NewWithBacking(table.Options[uint64, string]{
		Name:         "cn.reverse",
		KeyCompare:   cmp.Compare[uint64],
		ValueCompare: strings.Compare,
		Duplicates:   !single,
	}, backing)
	require.NoError(t, err)

	idx, err := NewWithTables(opts, forward, reverse)
	require.NoError(t, err)
	return idx, backing
}

func TestIndexAddRollsBack(t *testing.T) {
	idx, backing := newIndexWithFailingReverse(t, false)
	require.NoError(t, idx.Add("alice", 1))

	backing.fail = true
	err := idx.Add("bob", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errDisk)
	assert.True(t, storage.IsStoreError(err))

	ok, _ := idx.Forward("bob")
	assert.False(t, ok)
	assert.Equal(t, 1, idx.Count())
	require.NoError(t, idx.Verify())
}

func TestSingleValuedAddRollsBack(t *testing.T) {
	idx, backing := newIndexWithFailingReverse(t, true)
	require.NoError(t, idx.Add("alice", 1))

	backing.fail = true
	require.Error(t, idx.Add("bob", 1))

	ok, _ := idx.ForwardValue("alice", 1)
	assert.True(t, ok)
	ok, _ = idx.Forward("bob")
	assert.False(t, ok)
	require.NoError(t, idx.Verify())
}

func TestIndexDropRollsBack(t *testing.T) {
	idx, backing := newIndexWithFailingReverse(t, false)
	require.NoError(t, idx.Add("alice", 1))
	require.NoError(t, idx.Add("bob", 1))

	backing.fail = true
	require.Error(t, idx.Drop(1))
	require.Error(t, idx.DropValue("bob", 1))

	assert.Equal(t, 2, idx.Count())
	require.NoError(t, idx.Verify())
}

// budgetBacking accepts allow mutations and fails every later one.
type budgetBacking[K, V any] struct {
	*table.MemoryBacking[K, V]
	allow int
}

var errUndo = errors.New("undo write failed")

func (b *budgetBacking[K, V]) spend() error {
	if b.allow <= 0 {
		return errUndo
	}
	b.allow--
	return nil
}

func (b *budgetBacking[K, V]) Put(key K, c table.Container[V], change table.Change[V]) error {
	if err := b.spend(); err != nil {
		return err
	}
	return b.MemoryBacking.Put(key, c, change)
}

func (b *budgetBacking[K, V]) Delete(key K) error {
	if err := b.spend(); err != nil {
		return err
	}
	return b.MemoryBacking.Delete(key)
}

func TestIndexAddReportsFailedRollback(t *testing.T) {
	forward, err := table.NewWithBacking(table.Options[string, uint64]{
		Name: "cn.forward", KeyCompare: strings.Compare, ValueCompare: cmp.Compare[uint64], Duplicates: true,
	}, &budgetBacking[string, uint64]{
		MemoryBacking: table.NewMemoryBacking[string, uint64](strings.Compare),
		allow:         1,
	})
	require.NoError(t, err)
	reverse, err := table.NewWithBacking(table.Options[uint64, string]{
		Name: "cn.reverse", KeyCompare: cmp.Compare[uint64], ValueCompare: strings.Compare, Duplicates: true,
	}, &failingBacking[uint64, string]{
		MemoryBacking: table.NewMemoryBacking[uint64, string](cmp.Compare[uint64]),
		fail:          true,
	})
	require.NoError(t, err)

	idx, err := NewWithTables(cnOptions(), forward, reverse)
	require.NoError(t, err)

	// The forward put succeeds, the reverse put fails, and undoing the
	// forward put fails too.
	err = idx.Add("bob", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errDisk)
	assert.ErrorIs(t, err, errUndo)

	ok, err := idx.ForwardValue("bob", 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.ErrorIs(t, idx.Verify(), ErrInconsistent)
}

func TestVerifyDetectsMismatch(t *testing.T) {
	forward, err := table.New(table.Options[string, uint64]{
		Name: "cn.forward", KeyCompare: strings.Compare, ValueCompare: cmp.Compare[uint64], Duplicates: true,
	})
	require.NoError(t, err)
	reverse, err := table.New(table.Options[uint64, string]{
		Name: "cn.reverse", KeyCompare: cmp.Compare[uint64], ValueCompare: strings.Compare, Duplicates: true,
	})
	require.NoError(t, err)

	idx, err := NewWithTables(cnOptions(), forward, reverse)
	require.NoError(t, err)
	require.NoError(t, idx.Add("alice", 1))

	// Write behind the index's back.
	_, _, err = forward.Put("ghost", 9)
	require.NoError(t, err)
	_, _, err = reverse.Put(8, "phantom")
	require.NoError(t, err)

	err = idx.Verify()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInconsistent)
	assert.Contains(t, err.Error(), "2 mismatches")
}

func TestNewWithTablesRequiresDuplicateForward(t *testing.T) {
	forward, err := table.New(table.Options[string, uint64]{Name: "f", KeyCompare: strings.Compare})
	require.NoError(t, err)
	reverse, err := table.New(table.Options[uint64, string]{Name: "r", KeyCompare: cmp.Compare[uint64]})
	require.NoError(t, err)

	_, err = NewWithTables(cnOptions(), forward, reverse)
	assert.ErrorIs(t, err, storage.ErrUnsupported)

	_, err = New(Options[string, uint64]{ValueCompare: strings.Compare, IDCompare: cmp.Compare[uint64]})
	assert.ErrorIs(t, err, ErrInvalidAttribute)
}

// =============================================================================
// Candidates
// =============================================================================

func TestCandidates(t *testing.T) {
	idx := newCNIndex(t)
	for id, v := range map[uint64]string{1: "a", 2: "b", 3: "b", 4: "c", 5: "d"} {
		require.NoError(t, idx.Add(v, id))
	}

	ids, err := Equal(idx, "B")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3}, ids.ToArray())

	ids, err = GreaterOrEqual(idx, "c")
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5}, ids.ToArray())

	ids, err = LessOrEqual(idx, "b")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, ids.ToArray())

	ids, err = Present(idx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), ids.GetCardinality())

	ids, err = Equal(idx, "zzz")
	require.NoError(t, err)
	assert.True(t, ids.IsEmpty())
}

// =============================================================================
// Persistence
// =============================================================================

func TestIndexOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(dir, cnOptions(), journal.DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, idx.Add("Alice", 1))
	require.NoError(t, idx.Add("Bob", 2))
	require.NoError(t, idx.Add("bob", 3))
	require.NoError(t, idx.Drop(1))
	require.NoError(t, idx.Sync())
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())

	idx, err = Open(dir, cnOptions(), journal.DefaultOptions())
	require.NoError(t, err)
	defer idx.Close()

	ids, err := Equal(idx, "BOB")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3}, ids.ToArray())
	ok, _ := idx.Reverse(1)
	assert.False(t, ok)
	require.NoError(t, idx.Verify())

	stats, err := idx.Stats()
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "cn.forward", stats[0].Name)
	assert.Equal(t, 2, stats[1].Count)
}

// =============================================================================
// Randomized Invariant
// =============================================================================

// requireMatchesModel checks every id against model through the reverse
// cursor and every (value, id) pair through the forward table.
func requireMatchesModel(t *testing.T, idx *Index[string, uint64], model map[uint64]map[string]bool, ids int, values []string) {
	t.Helper()

	pairs := 0
	for id := uint64(1); id <= uint64(ids); id++ {
		want := []string{}
		for _, v := range values {
			if model[id][v] {
				want = append(want, v)
			}
		}
		pairs += len(want)

		c, err := idx.ReverseCursorAt(id)
		require.NoError(t, err)
		tuples, err := table.Collect(c)
		require.NoError(t, err)
		require.NoError(t, c.Close())

		got := []string{}
		for _, tuple := range tuples {
			require.Equal(t, id, tuple.Key)
			got = append(got, tuple.Value)
		}
		require.Equal(t, want, got, "reverse values of id %d", id)

		for _, v := range values {
			ok, err := idx.ForwardValue(v, id)
			require.NoError(t, err)
			require.Equal(t, model[id][v], ok, "forward (%s, %d)", v, id)
		}
	}
	require.Equal(t, pairs, idx.Count())
}

func TestIndexInvariantRandomized(t *testing.T) {
	// Sorted so the model matches reverse cursor order.
	values := []string{"alice", "bob", "carol", "dave", "eve"}
	const ids = 12

	for _, single := range []bool{false, true} {
		t.Run(fmt.Sprintf("single=%v", single), func(t *testing.T) {
			opts := cnOptions()
			opts.SingleValued = single
			idx, err := New(opts)
			require.NoError(t, err)

			rng := rand.New(rand.NewSource(11))
			model := make(map[uint64]map[string]bool)

			for i := 0; i < 1500; i++ {
				id := uint64(rng.Intn(ids) + 1)
				v := values[rng.Intn(len(values))]

				switch op := rng.Intn(10); {
				case op < 2:
					require.NoError(t, idx.Drop(id))
					delete(model, id)
				case op < 4:
					require.NoError(t, idx.DropValue(v, id))
					delete(model[id], v)
				default:
					require.NoError(t, idx.Add(v, id))
					if single || model[id] == nil {
						model[id] = make(map[string]bool)
					}
					model[id][v] = true
				}

				requireMatchesModel(t, idx, model, ids, values)
			}
			require.NoError(t, idx.Verify())
		})
	}
}
