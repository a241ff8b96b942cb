package table

// dupCursor flattens a duplicate table into (key, value) tuples.
//
// The outer iterator walks keys; inner walks the values of the key the outer
// iterator is on. inner is nil when no key is entered yet, in which case the
// next step moves the outer iterator first.
type dupCursor[K, V any] struct {
	cursorState[K, V]
	outer Iterator[K, V]
	key   K
	inner ValueCursor[V]
}

func newDupCursor[K, V any](t *Table[K, V]) *dupCursor[K, V] {
	return &dupCursor[K, V]{
		cursorState: cursorState[K, V]{table: t},
		outer:       t.backing.Iterator(),
	}
}

func (c *dupCursor[K, V]) BeforeFirst() error {
	return c.position(c.outer.BeforeFirst)
}

func (c *dupCursor[K, V]) AfterLast() error {
	return c.position(c.outer.AfterLast)
}

func (c *dupCursor[K, V]) First() (bool, error) {
	if err := c.BeforeFirst(); err != nil {
		return false, err
	}
	return c.Next()
}

func (c *dupCursor[K, V]) Last() (bool, error) {
	if err := c.AfterLast(); err != nil {
		return false, err
	}
	return c.Previous()
}

func (c *dupCursor[K, V]) BeforeKey(key K) error {
	return c.position(func() { c.outer.SeekBefore(key) })
}

func (c *dupCursor[K, V]) AfterKey(key K) error {
	return c.position(func() { c.outer.SeekAfter(key) })
}

// Before positions the cursor before (key, value). When key is present the
// outer iterator is left on it and the inner cursor is placed before value,
// so the next step stays within key's values.
func (c *dupCursor[K, V]) Before(key K, value V) error {
	if err := c.enter(key); err != nil || c.inner == nil {
		return err
	}
	return c.inner.Before(value)
}

// After positions the cursor after (key, value), leaving the remaining
// values of key ahead of it.
func (c *dupCursor[K, V]) After(key K, value V) error {
	if err := c.enter(key); err != nil || c.inner == nil {
		return err
	}
	return c.inner.After(value)
}

// enter moves the outer iterator onto key and opens an inner cursor over
// its values. When key is absent the outer iterator is left in the gap
// where key would be and inner stays nil.
func (c *dupCursor[K, V]) enter(key K) error {
	if err := c.position(func() { c.outer.SeekBefore(key) }); err != nil {
		return err
	}
	if !c.outer.Next() || c.table.keyCmp(c.outer.Key(), key) != 0 {
		c.outer.SeekBefore(key)
		return nil
	}
	c.key = c.outer.Key()
	c.inner = newValueCursor(c.outer.Value(), c.table.valCmp)
	return nil
}

func (c *dupCursor[K, V]) position(move func()) error {
	if err := c.check(); err != nil {
		return err
	}
	move()
	c.closeInner()
	c.unset()
	return nil
}

func (c *dupCursor[K, V]) Next() (bool, error) {
	if err := c.check(); err != nil {
		return false, err
	}

	for {
		if c.inner != nil {
			ok, err := c.inner.Next()
			if err != nil {
				return false, err
			}
			if ok {
				return c.landInner()
			}
		}

		if !c.outer.Next() {
			c.closeInner()
			c.unset()
			return false, nil
		}
		c.enterCurrent()
		if err := c.inner.BeforeFirst(); err != nil {
			return false, err
		}
	}
}

func (c *dupCursor[K, V]) Previous() (bool, error) {
	if err := c.check(); err != nil {
		return false, err
	}

	for {
		if c.inner != nil {
			ok, err := c.inner.Previous()
			if err != nil {
				return false, err
			}
			if ok {
				return c.landInner()
			}
		}

		if !c.outer.Prev() {
			c.closeInner()
			c.unset()
			return false, nil
		}
		c.enterCurrent()
		if err := c.inner.AfterLast(); err != nil {
			return false, err
		}
	}
}

// enterCurrent opens an inner cursor over the key the outer iterator is on.
func (c *dupCursor[K, V]) enterCurrent() {
	c.closeInner()
	c.key = c.outer.Key()
	c.inner = newValueCursor(c.outer.Value(), c.table.valCmp)
}

func (c *dupCursor[K, V]) landInner() (bool, error) {
	v, err := c.inner.Get()
	if err != nil {
		return false, err
	}
	c.land(c.key, v)
	return true, nil
}

func (c *dupCursor[K, V]) closeInner() {
	if c.inner != nil {
		c.inner.Close()
		c.inner = nil
	}
}

func (c *dupCursor[K, V]) Close() error {
	if !c.closed {
		c.closed = true
		c.closeInner()
		c.unset()
		c.outer.Close()
	}
	return nil
}
