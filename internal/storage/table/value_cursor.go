package table

import (
	"fmt"

	"github.com/KilimcininKorOglu/obastore/internal/storage"
	"github.com/KilimcininKorOglu/obastore/internal/storage/btree"
)

// ValueCursor walks the values of one container in ascending order.
type ValueCursor[V any] interface {
	// BeforeFirst positions the cursor before the smallest value.
	BeforeFirst() error

	// AfterLast positions the cursor after the largest value.
	AfterLast() error

	// Before positions the cursor so that Next yields the smallest value >= v.
	Before(v V) error

	// After positions the cursor so that Next yields the smallest value > v.
	After(v V) error

	// Next moves to the next value and reports whether there was one.
	Next() (bool, error)

	// Previous moves to the previous value and reports whether there was one.
	Previous() (bool, error)

	// Available reports whether the cursor is on a value.
	Available() bool

	// Get returns the current value.
	Get() (V, error)

	// Close releases the cursor. Closing twice is a no-op.
	Close() error
}

func newValueCursor[V any](c Container[V], cmp Comparator[V]) ValueCursor[V] {
	switch c := c.(type) {
	case Singleton[V]:
		return &singletonCursor[V]{value: c.Value, cmp: cmp}
	case *OrderedSet[V]:
		return &setCursor[V]{it: c.iterator()}
	}
	return newEmptyValueCursor[V]()
}

func newEmptyValueCursor[V any]() ValueCursor[V] {
	return &singletonCursor[V]{empty: true}
}

// singletonState is the position of a singletonCursor.
type singletonState uint8

const (
	singleBefore singletonState = iota
	singleOn
	singleAfter
)

// singletonCursor walks a container of at most one value.
type singletonCursor[V any] struct {
	value  V
	cmp    Comparator[V]
	empty  bool
	state  singletonState
	closed bool
}

func (c *singletonCursor[V]) BeforeFirst() error {
	if c.closed {
		return storage.ErrCursorClosed
	}
	c.state = singleBefore
	return nil
}

func (c *singletonCursor[V]) AfterLast() error {
	if c.closed {
		return storage.ErrCursorClosed
	}
	c.state = singleAfter
	return nil
}

func (c *singletonCursor[V]) Before(v V) error {
	return c.seek(v, 0)
}

func (c *singletonCursor[V]) After(v V) error {
	return c.seek(v, 1)
}

// seek places the cursor before the value when cmp(value, v) >= bias:
// bias 0 gives Before semantics, bias 1 gives After.
func (c *singletonCursor[V]) seek(v V, bias int) error {
	if c.closed {
		return storage.ErrCursorClosed
	}
	if c.empty {
		c.state = singleBefore
		return nil
	}
	if c.cmp == nil {
		return fmt.Errorf("%w: value positioning without value comparator", storage.ErrUnsupported)
	}
	if c.cmp(c.value, v) >= bias {
		c.state = singleBefore
	} else {
		c.state = singleAfter
	}
	return nil
}

func (c *singletonCursor[V]) Next() (bool, error) {
	if c.closed {
		return false, storage.ErrCursorClosed
	}
	if c.state == singleBefore && !c.empty {
		c.state = singleOn
		return true, nil
	}
	c.state = singleAfter
	return false, nil
}

func (c *singletonCursor[V]) Previous() (bool, error) {
	if c.closed {
		return false, storage.ErrCursorClosed
	}
	if c.state == singleAfter && !c.empty {
		c.state = singleOn
		return true, nil
	}
	c.state = singleBefore
	return false, nil
}

func (c *singletonCursor[V]) Available() bool {
	return !c.closed && c.state == singleOn
}

func (c *singletonCursor[V]) Get() (V, error) {
	var zero V
	if c.closed {
		return zero, storage.ErrCursorClosed
	}
	if c.state != singleOn {
		return zero, storage.ErrInvalidPosition
	}
	return c.value, nil
}

func (c *singletonCursor[V]) Close() error {
	c.closed = true
	return nil
}

// setCursor walks an OrderedSet.
type setCursor[V any] struct {
	it     *btree.Iterator[V, struct{}]
	avail  bool
	closed bool
}

func (c *setCursor[V]) BeforeFirst() error {
	return c.position(c.it.BeforeFirst)
}

func (c *setCursor[V]) AfterLast() error {
	return c.position(c.it.AfterLast)
}

func (c *setCursor[V]) Before(v V) error {
	return c.position(func() { c.it.SeekBefore(v) })
}

func (c *setCursor[V]) After(v V) error {
	return c.position(func() { c.it.SeekAfter(v) })
}

func (c *setCursor[V]) position(move func()) error {
	if c.closed {
		return storage.ErrCursorClosed
	}
	move()
	c.avail = false
	return nil
}

func (c *setCursor[V]) Next() (bool, error) {
	if c.closed {
		return false, storage.ErrCursorClosed
	}
	c.avail = c.it.Next()
	return c.avail, nil
}

func (c *setCursor[V]) Previous() (bool, error) {
	if c.closed {
		return false, storage.ErrCursorClosed
	}
	c.avail = c.it.Prev()
	return c.avail, nil
}

func (c *setCursor[V]) Available() bool {
	return !c.closed && c.avail
}

func (c *setCursor[V]) Get() (V, error) {
	var zero V
	if c.closed {
		return zero, storage.ErrCursorClosed
	}
	if !c.avail {
		return zero, storage.ErrInvalidPosition
	}
	return c.it.Key(), nil
}

func (c *setCursor[V]) Close() error {
	if !c.closed {
		c.closed = true
		c.avail = false
		c.it.Close()
	}
	return nil
}
