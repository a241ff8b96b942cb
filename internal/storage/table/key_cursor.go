package table

// keyCursor walks the tuples of a single key. The key's container is looked
// up again on every absolute positioning, so a repositioned cursor sees the
// latest values.
type keyCursor[K, V any] struct {
	cursorState[K, V]
	key   K
	inner ValueCursor[V]
}

func newKeyCursor[K, V any](t *Table[K, V], key K) *keyCursor[K, V] {
	return &keyCursor[K, V]{
		cursorState: cursorState[K, V]{table: t},
		key:         key,
		inner:       newEmptyValueCursor[V](),
	}
}

func (c *keyCursor[K, V]) BeforeFirst() error {
	return c.reload(func(inner ValueCursor[V]) error { return inner.BeforeFirst() })
}

func (c *keyCursor[K, V]) AfterLast() error {
	return c.reload(func(inner ValueCursor[V]) error { return inner.AfterLast() })
}

func (c *keyCursor[K, V]) First() (bool, error) {
	if err := c.BeforeFirst(); err != nil {
		return false, err
	}
	return c.Next()
}

func (c *keyCursor[K, V]) Last() (bool, error) {
	if err := c.AfterLast(); err != nil {
		return false, err
	}
	return c.Previous()
}

func (c *keyCursor[K, V]) BeforeKey(key K) error {
	if c.table.keyCmp(key, c.key) <= 0 {
		return c.BeforeFirst()
	}
	return c.AfterLast()
}

func (c *keyCursor[K, V]) AfterKey(key K) error {
	if c.table.keyCmp(key, c.key) < 0 {
		return c.BeforeFirst()
	}
	return c.AfterLast()
}

func (c *keyCursor[K, V]) Before(key K, value V) error {
	switch cmp := c.table.keyCmp(key, c.key); {
	case cmp < 0:
		return c.BeforeFirst()
	case cmp > 0:
		return c.AfterLast()
	}
	return c.reload(func(inner ValueCursor[V]) error { return inner.Before(value) })
}

func (c *keyCursor[K, V]) After(key K, value V) error {
	switch cmp := c.table.keyCmp(key, c.key); {
	case cmp < 0:
		return c.BeforeFirst()
	case cmp > 0:
		return c.AfterLast()
	}
	return c.reload(func(inner ValueCursor[V]) error { return inner.After(value) })
}

// reload replaces the inner cursor with one over the current container of
// the key and positions it with place.
func (c *keyCursor[K, V]) reload(place func(ValueCursor[V]) error) error {
	if err := c.check(); err != nil {
		return err
	}

	stored, ok, err := c.table.backing.Get(c.key)
	if err != nil {
		return c.table.wrap("cursor", c.key, err)
	}

	c.inner.Close()
	if ok {
		c.inner = newValueCursor(stored, c.table.valCmp)
	} else {
		c.inner = newEmptyValueCursor[V]()
	}
	c.unset()
	return place(c.inner)
}

func (c *keyCursor[K, V]) Next() (bool, error) {
	return c.step(c.inner.Next)
}

func (c *keyCursor[K, V]) Previous() (bool, error) {
	return c.step(c.inner.Previous)
}

func (c *keyCursor[K, V]) step(move func() (bool, error)) (bool, error) {
	if err := c.check(); err != nil {
		return false, err
	}
	ok, err := move()
	if err != nil || !ok {
		c.unset()
		return false, err
	}
	v, err := c.inner.Get()
	if err != nil {
		return false, err
	}
	c.land(c.key, v)
	return true, nil
}

func (c *keyCursor[K, V]) Close() error {
	if !c.closed {
		c.closed = true
		c.unset()
		c.inner.Close()
	}
	return nil
}
