package table

import (
	"bytes"
	"cmp"

	"github.com/google/uuid"

	"github.com/KilimcininKorOglu/obastore/internal/storage/btree"
)

// Comparator is a total order over T.
// It returns a negative number when a < b, zero when a == b and a positive
// number when a > b. Equality under the comparator is the equality used for
// container membership.
type Comparator[T any] func(a, b T) int

// Ordered returns the natural order of an ordered type.
func Ordered[T cmp.Ordered]() Comparator[T] {
	return cmp.Compare[T]
}

// Bytes returns the lexicographic order of byte slices.
func Bytes() Comparator[[]byte] {
	return bytes.Compare
}

// UUID returns the byte order of UUIDs.
func UUID() Comparator[uuid.UUID] {
	return func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	}
}

// Reverse returns the inverse of c.
func Reverse[T any](c Comparator[T]) Comparator[T] {
	return func(a, b T) int {
		return c(b, a)
	}
}

func (c Comparator[T]) tree() btree.Compare[T] {
	return btree.Compare[T](c)
}
