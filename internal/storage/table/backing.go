package table

// ChangeOp identifies how a container changed in a Backing.Put call.
type ChangeOp uint8

// Container changes.
const (
	// ChangeReplace replaces the whole container of the key.
	ChangeReplace ChangeOp = iota
	// ChangeAdd adds Change.Value to the key's value set.
	ChangeAdd
	// ChangeRemove removes Change.Value from the key's value set.
	ChangeRemove
)

// Change describes the mutation that produced a container, so a persistent
// backing can record the delta instead of the full container.
type Change[V any] struct {
	Op    ChangeOp
	Value V
}

// Backing is the ordered map a Table stores its containers in.
// A backing belongs to exactly one table; the table serializes mutations.
type Backing[K, V any] interface {
	// Get returns the container stored under key.
	Get(key K) (Container[V], bool, error)

	// Put stores c under key. change describes how c differs from the
	// container previously stored under key.
	Put(key K, c Container[V], change Change[V]) error

	// Delete removes key and its container.
	Delete(key K) error

	// Len returns the number of keys.
	Len() int

	// Iterator returns a new iterator positioned before the first key.
	Iterator() Iterator[K, V]

	// Sync makes all previous changes durable.
	Sync() error

	// Close releases the backing. Closing twice is a no-op.
	Close() error

	// Destroy closes the backing and deletes anything it persisted.
	Destroy() error
}

// Iterator walks the keys of a Backing in key order.
// It is positioned either at an end, in the gap before or after a key, or on
// an entry; see btree.Iterator for the exact semantics.
type Iterator[K, V any] interface {
	BeforeFirst()
	AfterLast()
	SeekBefore(key K)
	SeekAfter(key K)
	Next() bool
	Prev() bool
	Key() K
	Value() Container[V]
	Close()
}

// Compactor is implemented by backings that can rewrite their persisted
// state into a compact form.
type Compactor interface {
	Compact() error
}
