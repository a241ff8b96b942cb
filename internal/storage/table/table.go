package table

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/KilimcininKorOglu/obastore/internal/logging"
	"github.com/KilimcininKorOglu/obastore/internal/storage"
	"github.com/KilimcininKorOglu/obastore/internal/storage/journal"
)

// Table errors.
var (
	// ErrNoKeyComparator is returned when a table is created without a key comparator.
	ErrNoKeyComparator = errors.New("table requires a key comparator")

	// ErrInvalidName is returned when a table is created without a name.
	ErrInvalidName = errors.New("table requires a name")
)

// Options describes a table.
type Options[K, V any] struct {
	// Name identifies the table in errors, logs and file names.
	Name string

	// KeyCompare orders keys. Required.
	KeyCompare Comparator[K]

	// ValueCompare orders values. Required when Duplicates is set; without
	// it value-ordered operations fail with storage.ErrUnsupported.
	ValueCompare Comparator[V]

	// Duplicates allows more than one value per key.
	Duplicates bool

	// Logger receives table events. Nil disables logging.
	Logger logging.Logger
}

func (o Options[K, V]) validate() error {
	if o.Name == "" {
		return ErrInvalidName
	}
	if o.KeyCompare == nil {
		return fmt.Errorf("%w: %s", ErrNoKeyComparator, o.Name)
	}
	if o.Duplicates && o.ValueCompare == nil {
		return fmt.Errorf("%w: duplicate table %s without value comparator",
			storage.ErrUnsupported, o.Name)
	}
	return nil
}

// Tuple is a (key, value) pair produced by a cursor.
type Tuple[K, V any] struct {
	Key   K
	Value V
}

// Stats describes a table.
type Stats struct {
	Name       string
	Keys       int
	Count      int
	Duplicates bool
	Journal    *journal.Stats
}

// Table is an ordered map from keys to one or more values.
//
// Mutations are serialized by the table mutex, which also guards the pair
// count. Reads go straight to the backing.
type Table[K, V any] struct {
	mu      sync.Mutex
	name    string
	keyCmp  Comparator[K]
	valCmp  Comparator[V]
	dups    bool
	backing Backing[K, V]
	count   atomic.Int64
	closed  atomic.Bool
	logger  logging.Logger
}

// New creates an empty in-memory table.
func New[K, V any](opts Options[K, V]) (*Table[K, V], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return NewWithBacking(opts, NewMemoryBacking[K, V](opts.KeyCompare))
}

// Open opens a journaled table in fopts.Dir, replaying whatever it holds.
func Open[K, V any](opts Options[K, V], fopts FileOptions[K, V]) (*Table[K, V], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	backing, err := OpenFileBacking(opts, fopts)
	if err != nil {
		return nil, storage.WrapStoreError("open", opts.Name, nil, err)
	}
	return NewWithBacking[K, V](opts, backing)
}

// NewWithBacking creates a table over an existing backing. The pair count
// is computed from what the backing already holds.
func NewWithBacking[K, V any](opts Options[K, V], backing Backing[K, V]) (*Table[K, V], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	t := &Table[K, V]{
		name:    opts.Name,
		keyCmp:  opts.KeyCompare,
		valCmp:  opts.ValueCompare,
		dups:    opts.Duplicates,
		backing: backing,
		logger:  logging.OrNop(opts.Logger).WithFields("table", opts.Name),
	}

	it := backing.Iterator()
	var count int64
	for it.Next() {
		c := it.Value()
		if !t.dups && c.Len() > 1 {
			it.Close()
			return nil, fmt.Errorf("%w: key %s holds %d values in a table without duplicates",
				ErrCorruptJournal, storage.RenderKey(it.Key()), c.Len())
		}
		count += int64(c.Len())
	}
	it.Close()
	t.count.Store(count)

	return t, nil
}

// Name returns the table name.
func (t *Table[K, V]) Name() string {
	return t.name
}

// IsDupsEnabled reports whether keys may hold more than one value.
func (t *Table[K, V]) IsDupsEnabled() bool {
	return t.dups
}

// KeyComparator returns the key order.
func (t *Table[K, V]) KeyComparator() Comparator[K] {
	return t.keyCmp
}

// ValueComparator returns the value order, or nil.
func (t *Table[K, V]) ValueComparator() Comparator[V] {
	return t.valCmp
}

// Count returns the number of (key, value) pairs.
func (t *Table[K, V]) Count() int {
	return int(t.count.Load())
}

// CountKey returns the number of values stored under key.
func (t *Table[K, V]) CountKey(key K) (int, error) {
	c, ok, err := t.get("count", key)
	if err != nil || !ok {
		return 0, err
	}
	return c.Len(), nil
}

// Get returns the value stored under key. For duplicate tables it returns
// the smallest value by the value comparator.
func (t *Table[K, V]) Get(key K) (V, bool, error) {
	var zero V
	c, ok, err := t.get("get", key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, ok := first(c)
	return v, ok, nil
}

// Values returns every value stored under key in ascending order.
func (t *Table[K, V]) Values(key K) ([]V, error) {
	c, ok, err := t.get("values", key)
	if err != nil || !ok {
		return nil, err
	}
	return c.Values(), nil
}

// Has reports whether key holds at least one value.
func (t *Table[K, V]) Has(key K) (bool, error) {
	_, ok, err := t.get("has", key)
	return ok, err
}

// HasValue reports whether (key, value) is stored.
func (t *Table[K, V]) HasValue(key K, value V) (bool, error) {
	if t.valCmp == nil {
		return false, t.unsupported("has value")
	}
	c, ok, err := t.get("has", key)
	if err != nil || !ok {
		return false, err
	}

	switch c := c.(type) {
	case Singleton[V]:
		return t.valCmp(c.Value, value) == 0, nil
	case *OrderedSet[V]:
		return c.Contains(value), nil
	}
	return false, nil
}

// HasGreaterOrEqual reports whether some key >= key exists.
func (t *Table[K, V]) HasGreaterOrEqual(key K) (bool, error) {
	if err := t.checkOpen(); err != nil {
		return false, err
	}
	it := t.backing.Iterator()
	defer it.Close()
	it.SeekBefore(key)
	return it.Next(), nil
}

// HasLessOrEqual reports whether some key <= key exists.
func (t *Table[K, V]) HasLessOrEqual(key K) (bool, error) {
	if err := t.checkOpen(); err != nil {
		return false, err
	}
	it := t.backing.Iterator()
	defer it.Close()
	it.SeekAfter(key)
	return it.Prev(), nil
}

// HasGreaterOrEqualValue reports whether key holds a value >= value.
// It fails with storage.ErrUnsupported on tables without duplicates.
func (t *Table[K, V]) HasGreaterOrEqualValue(key K, value V) (bool, error) {
	if !t.dups {
		return false, t.unsupported("has greater or equal value")
	}
	c, ok, err := t.get("has", key)
	if err != nil || !ok {
		return false, err
	}

	switch c := c.(type) {
	case Singleton[V]:
		return t.valCmp(c.Value, value) >= 0, nil
	case *OrderedSet[V]:
		_, found := c.Ceiling(value)
		return found, nil
	}
	return false, nil
}

// HasLessOrEqualValue reports whether key holds a value <= value.
// It fails with storage.ErrUnsupported on tables without duplicates.
func (t *Table[K, V]) HasLessOrEqualValue(key K, value V) (bool, error) {
	if !t.dups {
		return false, t.unsupported("has less or equal value")
	}
	c, ok, err := t.get("has", key)
	if err != nil || !ok {
		return false, err
	}

	switch c := c.(type) {
	case Singleton[V]:
		return t.valCmp(c.Value, value) <= 0, nil
	case *OrderedSet[V]:
		_, found := c.Floor(value)
		return found, nil
	}
	return false, nil
}

// GreaterThanCount returns the number of pairs whose key is > key.
func (t *Table[K, V]) GreaterThanCount(key K) (int, error) {
	if err := t.checkOpen(); err != nil {
		return 0, err
	}
	it := t.backing.Iterator()
	defer it.Close()

	n := 0
	it.SeekAfter(key)
	for it.Next() {
		n += it.Value().Len()
	}
	return n, nil
}

// LessThanCount returns the number of pairs whose key is < key.
func (t *Table[K, V]) LessThanCount(key K) (int, error) {
	if err := t.checkOpen(); err != nil {
		return 0, err
	}
	it := t.backing.Iterator()
	defer it.Close()

	n := 0
	it.SeekBefore(key)
	for it.Prev() {
		n += it.Value().Len()
	}
	return n, nil
}

// Put stores (key, value).
//
// On a table without duplicates the previous value of key is replaced and
// returned with replaced set to true; the count grows only for a new key.
// On a duplicate table value joins the key's value set; storing a pair that
// already exists changes nothing.
func (t *Table[K, V]) Put(key K, value V) (prev V, replaced bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpen(); err != nil {
		return prev, false, err
	}

	c, exists, err := t.backing.Get(key)
	if err != nil {
		return prev, false, t.wrap("put", key, err)
	}

	if !t.dups {
		if err := t.backing.Put(key, Singleton[V]{Value: value}, Change[V]{Op: ChangeReplace}); err != nil {
			return prev, false, t.wrap("put", key, err)
		}
		if exists {
			prev, _ = first(c)
			return prev, true, nil
		}
		t.count.Add(1)
		return prev, false, nil
	}

	add := Change[V]{Op: ChangeAdd, Value: value}
	switch c := c.(type) {
	case nil:
		err = t.backing.Put(key, Singleton[V]{Value: value}, add)
	case Singleton[V]:
		if t.valCmp(c.Value, value) == 0 {
			return prev, false, nil
		}
		err = t.backing.Put(key, NewOrderedSet(t.valCmp, c.Value, value), add)
	case *OrderedSet[V]:
		if !c.Add(value) {
			return prev, false, nil
		}
		if err = t.backing.Put(key, c, add); err != nil {
			c.Remove(value)
		}
	}
	if err != nil {
		return prev, false, t.wrap("put", key, err)
	}

	t.count.Add(1)
	return prev, false, nil
}

// Remove deletes key and returns the values it held.
func (t *Table[K, V]) Remove(key K) ([]V, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpen(); err != nil {
		return nil, err
	}

	c, exists, err := t.backing.Get(key)
	if err != nil {
		return nil, t.wrap("remove", key, err)
	}
	if !exists {
		return nil, nil
	}

	if err := t.backing.Delete(key); err != nil {
		return nil, t.wrap("remove", key, err)
	}
	values := c.Values()
	t.count.Add(-int64(len(values)))
	return values, nil
}

// RemoveValue deletes the pair (key, value) and reports whether it existed.
// A key whose last value is removed is deleted.
func (t *Table[K, V]) RemoveValue(key K, value V) (bool, error) {
	if t.valCmp == nil {
		return false, t.unsupported("remove value")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpen(); err != nil {
		return false, err
	}

	c, exists, err := t.backing.Get(key)
	if err != nil {
		return false, t.wrap("remove", key, err)
	}
	if !exists {
		return false, nil
	}

	switch c := c.(type) {
	case Singleton[V]:
		if t.valCmp(c.Value, value) != 0 {
			return false, nil
		}
		err = t.backing.Delete(key)
	case *OrderedSet[V]:
		if !c.Remove(value) {
			return false, nil
		}
		if c.Len() == 0 {
			err = t.backing.Delete(key)
		} else {
			err = t.backing.Put(key, c, Change[V]{Op: ChangeRemove, Value: value})
		}
		if err != nil {
			c.Add(value)
		}
	}
	if err != nil {
		return false, t.wrap("remove", key, err)
	}

	t.count.Add(-1)
	return true, nil
}

// Sync persists the table. It is a no-op for in-memory tables.
func (t *Table[K, V]) Sync() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.wrap("sync", nil, t.backing.Sync())
}

// Compact rewrites the persisted state of the table, if it has any.
func (t *Table[K, V]) Compact() error {
	compactor, ok := t.backing.(Compactor)
	if !ok {
		return t.checkOpen()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.wrap("compact", nil, compactor.Compact())
}

// Stats describes the table and, for journaled tables, its journal.
func (t *Table[K, V]) Stats() (Stats, error) {
	stats := Stats{
		Name:       t.name,
		Keys:       t.backing.Len(),
		Count:      t.Count(),
		Duplicates: t.dups,
	}
	if fb, ok := t.backing.(interface{ Stats() (journal.Stats, error) }); ok {
		js, err := fb.Stats()
		if err != nil {
			return stats, t.wrap("stats", nil, err)
		}
		stats.Journal = &js
	}
	return stats, nil
}

// Close releases the table. Cursors opened on it fail with
// storage.ErrCursorClosed afterwards. Closing twice is a no-op.
func (t *Table[K, V]) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.backing.Sync(); err != nil {
		t.logger.Warn("sync on close failed", "error", err)
	}
	return t.wrap("close", nil, t.backing.Close())
}

// Destroy closes the table and deletes everything it persisted.
func (t *Table[K, V]) Destroy() error {
	t.closed.Store(true)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.count.Store(0)
	return t.wrap("destroy", nil, t.backing.Destroy())
}

// Cursor returns a cursor over every (key, value) pair, positioned before
// the first one.
func (t *Table[K, V]) Cursor() (Cursor[K, V], error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	if t.dups {
		return newDupCursor(t), nil
	}
	return newSimpleCursor(t), nil
}

// CursorAt returns a cursor over the pairs of a single key, positioned
// before the first one.
func (t *Table[K, V]) CursorAt(key K) (Cursor[K, V], error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	c := newKeyCursor(t, key)
	if err := c.BeforeFirst(); err != nil {
		return nil, err
	}
	return c, nil
}

// ValueCursor returns a cursor over the values of key, positioned before the
// first one. A missing key yields an empty cursor.
func (t *Table[K, V]) ValueCursor(key K) (ValueCursor[V], error) {
	c, ok, err := t.get("cursor", key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return newEmptyValueCursor[V](), nil
	}
	return newValueCursor(c, t.valCmp), nil
}

func (t *Table[K, V]) get(op string, key K) (Container[V], bool, error) {
	if err := t.checkOpen(); err != nil {
		return nil, false, err
	}
	c, ok, err := t.backing.Get(key)
	if err != nil {
		return nil, false, t.wrap(op, key, err)
	}
	return c, ok, nil
}

func (t *Table[K, V]) checkOpen() error {
	if t.closed.Load() {
		return fmt.Errorf("%w: %s", storage.ErrTableClosed, t.name)
	}
	return nil
}

func (t *Table[K, V]) unsupported(op string) error {
	return fmt.Errorf("%w: %s on table %s", storage.ErrUnsupported, op, t.name)
}

func (t *Table[K, V]) wrap(op string, key any, err error) error {
	if err == nil {
		return nil
	}
	return storage.WrapStoreError(op, t.name, key, err)
}
