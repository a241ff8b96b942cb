package table

import (
	"fmt"

	"github.com/KilimcininKorOglu/obastore/internal/storage"
)

// Cursor walks the (key, value) tuples of a table in (key, value) order.
//
// A cursor is either unpositioned (before the first or after the last
// tuple, or in the gap around a key), positioned on a tuple, or exhausted.
// Available reports true only while positioned, and Get fails with
// storage.ErrInvalidPosition otherwise. Once the table is closed every call
// fails with storage.ErrCursorClosed.
type Cursor[K, V any] interface {
	// BeforeFirst positions the cursor before the first tuple.
	BeforeFirst() error

	// AfterLast positions the cursor after the last tuple.
	AfterLast() error

	// First moves to the first tuple and reports whether there is one.
	First() (bool, error)

	// Last moves to the last tuple and reports whether there is one.
	Last() (bool, error)

	// BeforeKey positions the cursor before the first tuple whose key is >= key.
	BeforeKey(key K) error

	// AfterKey positions the cursor after the last tuple whose key is <= key.
	AfterKey(key K) error

	// Before positions the cursor just before the tuple (key, value), or
	// where it would be.
	Before(key K, value V) error

	// After positions the cursor just after the tuple (key, value), or
	// where it would be.
	After(key K, value V) error

	// Next moves to the next tuple and reports whether there was one.
	Next() (bool, error)

	// Previous moves to the previous tuple and reports whether there was one.
	Previous() (bool, error)

	// Available reports whether the cursor is positioned on a tuple.
	Available() bool

	// Get returns the current tuple.
	Get() (Tuple[K, V], error)

	// Close releases the cursor. Closing twice is a no-op.
	Close() error
}

// Collect positions c before the first tuple and returns every tuple in
// forward order.
func Collect[K, V any](c Cursor[K, V]) ([]Tuple[K, V], error) {
	if err := c.BeforeFirst(); err != nil {
		return nil, err
	}
	var tuples []Tuple[K, V]
	for {
		ok, err := c.Next()
		if err != nil {
			return tuples, err
		}
		if !ok {
			return tuples, nil
		}
		tuple, err := c.Get()
		if err != nil {
			return tuples, err
		}
		tuples = append(tuples, tuple)
	}
}

// cursorState holds what every cursor flavor shares.
type cursorState[K, V any] struct {
	table  *Table[K, V]
	cur    Tuple[K, V]
	avail  bool
	closed bool
}

func (s *cursorState[K, V]) check() error {
	if s.closed || s.table.closed.Load() {
		return storage.ErrCursorClosed
	}
	return nil
}

func (s *cursorState[K, V]) Available() bool {
	return s.avail && !s.closed && !s.table.closed.Load()
}

func (s *cursorState[K, V]) Get() (Tuple[K, V], error) {
	if err := s.check(); err != nil {
		return Tuple[K, V]{}, err
	}
	if !s.avail {
		return Tuple[K, V]{}, storage.ErrInvalidPosition
	}
	return s.cur, nil
}

func (s *cursorState[K, V]) land(key K, value V) {
	s.cur = Tuple[K, V]{Key: key, Value: value}
	s.avail = true
}

func (s *cursorState[K, V]) unset() {
	s.cur = Tuple[K, V]{}
	s.avail = false
}

// simpleCursor walks a table without duplicates, one tuple per key.
type simpleCursor[K, V any] struct {
	cursorState[K, V]
	it Iterator[K, V]
}

func newSimpleCursor[K, V any](t *Table[K, V]) *simpleCursor[K, V] {
	return &simpleCursor[K, V]{
		cursorState: cursorState[K, V]{table: t},
		it:          t.backing.Iterator(),
	}
}

func (c *simpleCursor[K, V]) BeforeFirst() error {
	return c.position(c.it.BeforeFirst)
}

func (c *simpleCursor[K, V]) AfterLast() error {
	return c.position(c.it.AfterLast)
}

func (c *simpleCursor[K, V]) First() (bool, error) {
	if err := c.BeforeFirst(); err != nil {
		return false, err
	}
	return c.Next()
}

func (c *simpleCursor[K, V]) Last() (bool, error) {
	if err := c.AfterLast(); err != nil {
		return false, err
	}
	return c.Previous()
}

func (c *simpleCursor[K, V]) BeforeKey(key K) error {
	return c.position(func() { c.it.SeekBefore(key) })
}

func (c *simpleCursor[K, V]) AfterKey(key K) error {
	return c.position(func() { c.it.SeekAfter(key) })
}

func (c *simpleCursor[K, V]) Before(key K, value V) error {
	return c.seekTuple(key, value, 0)
}

func (c *simpleCursor[K, V]) After(key K, value V) error {
	return c.seekTuple(key, value, 1)
}

// seekTuple positions the cursor around the single value of key: before it
// when valueCmp(stored, value) >= bias, after it otherwise.
func (c *simpleCursor[K, V]) seekTuple(key K, value V, bias int) error {
	if err := c.check(); err != nil {
		return err
	}
	t := c.table
	if t.valCmp == nil {
		return fmt.Errorf("%w: tuple positioning on table %s without value comparator",
			storage.ErrUnsupported, t.name)
	}

	stored, ok, err := t.backing.Get(key)
	if err != nil {
		return t.wrap("cursor", key, err)
	}
	if ok {
		if v, _ := first(stored); t.valCmp(v, value) < bias {
			return c.position(func() { c.it.SeekAfter(key) })
		}
	}
	return c.position(func() { c.it.SeekBefore(key) })
}

func (c *simpleCursor[K, V]) position(move func()) error {
	if err := c.check(); err != nil {
		return err
	}
	move()
	c.unset()
	return nil
}

func (c *simpleCursor[K, V]) Next() (bool, error) {
	return c.step(c.it.Next)
}

func (c *simpleCursor[K, V]) Previous() (bool, error) {
	return c.step(c.it.Prev)
}

func (c *simpleCursor[K, V]) step(move func() bool) (bool, error) {
	if err := c.check(); err != nil {
		return false, err
	}
	if !move() {
		c.unset()
		return false, nil
	}
	v, _ := first(c.it.Value())
	c.land(c.it.Key(), v)
	return true, nil
}

func (c *simpleCursor[K, V]) Close() error {
	if !c.closed {
		c.closed = true
		c.unset()
		c.it.Close()
	}
	return nil
}
