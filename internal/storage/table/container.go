package table

import (
	"github.com/KilimcininKorOglu/obastore/internal/storage/btree"
)

// Container holds the values stored under one key.
// It is either a Singleton or an *OrderedSet.
type Container[V any] interface {
	// Len returns the number of values in the container.
	Len() int

	// Values returns the values in ascending order.
	Values() []V

	container()
}

// Singleton is the container of a key with exactly one value.
type Singleton[V any] struct {
	Value V
}

// Len returns 1.
func (s Singleton[V]) Len() int { return 1 }

// Values returns the single value.
func (s Singleton[V]) Values() []V { return []V{s.Value} }

func (Singleton[V]) container() {}

// OrderedSet is the container of a key in a duplicate table. Values are kept
// sorted by the value comparator and are unique under it.
type OrderedSet[V any] struct {
	set *btree.Tree[V, struct{}]
}

// NewOrderedSet returns a set ordered by cmp holding values.
func NewOrderedSet[V any](cmp Comparator[V], values ...V) *OrderedSet[V] {
	s := &OrderedSet[V]{set: btree.New[V, struct{}](cmp.tree())}
	for _, v := range values {
		s.set.Put(v, struct{}{})
	}
	return s
}

// Len returns the number of values in the set.
func (s *OrderedSet[V]) Len() int {
	return s.set.Len()
}

// Values returns the values in ascending order.
func (s *OrderedSet[V]) Values() []V {
	values := make([]V, 0, s.set.Len())
	s.set.Ascend(func(v V, _ struct{}) bool {
		values = append(values, v)
		return true
	})
	return values
}

// Contains reports whether v is in the set.
func (s *OrderedSet[V]) Contains(v V) bool {
	return s.set.Has(v)
}

// Add inserts v and reports whether it was absent.
func (s *OrderedSet[V]) Add(v V) bool {
	_, replaced := s.set.Put(v, struct{}{})
	return !replaced
}

// Remove deletes v and reports whether it was present.
func (s *OrderedSet[V]) Remove(v V) bool {
	_, ok := s.set.Delete(v)
	return ok
}

// Min returns the smallest value.
func (s *OrderedSet[V]) Min() (V, bool) {
	v, _, ok := s.set.Min()
	return v, ok
}

// Max returns the largest value.
func (s *OrderedSet[V]) Max() (V, bool) {
	v, _, ok := s.set.Max()
	return v, ok
}

// Ceiling returns the smallest value >= v.
func (s *OrderedSet[V]) Ceiling(v V) (V, bool) {
	c, _, ok := s.set.Ceiling(v)
	return c, ok
}

// Floor returns the largest value <= v.
func (s *OrderedSet[V]) Floor(v V) (V, bool) {
	f, _, ok := s.set.Floor(v)
	return f, ok
}

func (*OrderedSet[V]) container() {}

// newContainer builds the container for a non-empty list of values.
func newContainer[V any](cmp Comparator[V], values []V) Container[V] {
	if len(values) == 1 {
		return Singleton[V]{Value: values[0]}
	}
	return NewOrderedSet(cmp, values...)
}

// first returns the smallest value of c.
func first[V any](c Container[V]) (V, bool) {
	switch c := c.(type) {
	case Singleton[V]:
		return c.Value, true
	case *OrderedSet[V]:
		return c.Min()
	}
	var zero V
	return zero, false
}

func (s *OrderedSet[V]) iterator() *btree.Iterator[V, struct{}] {
	return s.set.Iterator()
}
