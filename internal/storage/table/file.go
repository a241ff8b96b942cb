package table

import (
	"errors"
	"fmt"
	"sync"

	"github.com/KilimcininKorOglu/obastore/internal/logging"
	"github.com/KilimcininKorOglu/obastore/internal/storage/btree"
	"github.com/KilimcininKorOglu/obastore/internal/storage/journal"
)

// ErrCorruptJournal is returned when a replayed record contradicts the
// configuration of the table.
var ErrCorruptJournal = errors.New("journal contradicts table configuration")

// FileOptions configures a FileBacking.
type FileOptions[K, V any] struct {
	// Dir is the directory holding the journal files.
	Dir string

	// KeyCodec and ValueCodec encode keys and values. Both default to CBOR.
	KeyCodec   Codec[K]
	ValueCodec Codec[V]

	// Journal configures the underlying journal.
	Journal journal.Options
}

// FileBacking keeps containers in memory and makes every change durable
// through a journal. The full table is rebuilt from the journal on open.
type FileBacking[K, V any] struct {
	mu       sync.Mutex
	name     string
	tree     *btree.Tree[K, Container[V]]
	journal  *journal.Journal
	keyCodec Codec[K]
	valCodec Codec[V]
	valCmp   Comparator[V]
	dups     bool
	logger   logging.Logger
	closed   bool
}

// OpenFileBacking opens the journal for the table described by opts and
// replays it.
func OpenFileBacking[K, V any](opts Options[K, V], fopts FileOptions[K, V]) (*FileBacking[K, V], error) {
	if fopts.KeyCodec == nil {
		fopts.KeyCodec = NewCBORCodec[K]()
	}
	if fopts.ValueCodec == nil {
		fopts.ValueCodec = NewCBORCodec[V]()
	}

	logger := logging.OrNop(opts.Logger)
	if fopts.Journal.Logger == nil {
		fopts.Journal.Logger = logger
	}

	j, err := journal.Open(fopts.Dir, opts.Name, fopts.Journal)
	if err != nil {
		return nil, err
	}

	f := &FileBacking[K, V]{
		name:     opts.Name,
		tree:     btree.New[K, Container[V]](opts.KeyCompare.tree()),
		journal:  j,
		keyCodec: fopts.KeyCodec,
		valCodec: fopts.ValueCodec,
		valCmp:   opts.ValueCompare,
		dups:     opts.Duplicates,
		logger:   logger.WithFields("table", opts.Name),
	}

	records := 0
	if err := j.Replay(func(rec journal.Record) error {
		records++
		return f.apply(rec)
	}); err != nil {
		j.Close()
		return nil, fmt.Errorf("replay %s: %w", opts.Name, err)
	}

	f.logger.Debug("table loaded", "keys", f.tree.Len(), "records", records)
	return f, nil
}

// apply replays one journal record into the tree.
func (f *FileBacking[K, V]) apply(rec journal.Record) error {
	key, err := f.keyCodec.Decode(rec.Key)
	if err != nil {
		return err
	}

	switch rec.Op {
	case journal.OpDelete:
		f.tree.Delete(key)
		return nil
	case journal.OpCheckpoint:
		return nil
	}

	values := make([]V, 0, len(rec.Values))
	for _, raw := range rec.Values {
		v, err := f.valCodec.Decode(raw)
		if err != nil {
			return err
		}
		values = append(values, v)
	}

	current, exists := f.tree.Get(key)

	switch rec.Op {
	case journal.OpPut:
		if len(values) > 1 && !f.dups {
			return fmt.Errorf("%w: %d values for one key", ErrCorruptJournal, len(values))
		}
		f.tree.Put(key, newContainer(f.valCmp, values))

	case journal.OpAddValues:
		if !f.dups {
			return fmt.Errorf("%w: value set change", ErrCorruptJournal)
		}
		var set *OrderedSet[V]
		switch c := current.(type) {
		case *OrderedSet[V]:
			set = c
		case Singleton[V]:
			set = NewOrderedSet(f.valCmp, c.Value)
		default:
			if len(values) == 1 {
				f.tree.Put(key, newContainer(f.valCmp, values))
				return nil
			}
			set = NewOrderedSet[V](f.valCmp)
		}
		for _, v := range values {
			set.Add(v)
		}
		f.tree.Put(key, set)

	case journal.OpRemoveValues:
		if !f.dups {
			return fmt.Errorf("%w: value set change", ErrCorruptJournal)
		}
		if !exists {
			return nil
		}
		switch c := current.(type) {
		case *OrderedSet[V]:
			for _, v := range values {
				c.Remove(v)
			}
			if c.Len() == 0 {
				f.tree.Delete(key)
			}
		case Singleton[V]:
			for _, v := range values {
				if f.valCmp(c.Value, v) == 0 {
					f.tree.Delete(key)
					break
				}
			}
		}
	}
	return nil
}

// Get returns the container stored under key.
func (f *FileBacking[K, V]) Get(key K) (Container[V], bool, error) {
	c, ok := f.tree.Get(key)
	return c, ok, nil
}

// Put journals the change and stores c under key.
func (f *FileBacking[K, V]) Put(key K, c Container[V], change Change[V]) error {
	rawKey, err := f.keyCodec.Encode(key)
	if err != nil {
		return err
	}

	rec := journal.Record{Key: rawKey}
	switch change.Op {
	case ChangeAdd, ChangeRemove:
		raw, err := f.valCodec.Encode(change.Value)
		if err != nil {
			return err
		}
		rec.Op = journal.OpAddValues
		if change.Op == ChangeRemove {
			rec.Op = journal.OpRemoveValues
		}
		rec.Values = [][]byte{raw}
	default:
		rec.Op = journal.OpPut
		if rec.Values, err = f.encodeValues(c); err != nil {
			return err
		}
	}

	if err := f.journal.Append(rec); err != nil {
		return err
	}
	f.tree.Put(key, c)
	return nil
}

// Delete journals the removal and drops key.
func (f *FileBacking[K, V]) Delete(key K) error {
	rawKey, err := f.keyCodec.Encode(key)
	if err != nil {
		return err
	}
	if err := f.journal.Append(journal.Record{Op: journal.OpDelete, Key: rawKey}); err != nil {
		return err
	}
	f.tree.Delete(key)
	return nil
}

// Len returns the number of keys.
func (f *FileBacking[K, V]) Len() int {
	return f.tree.Len()
}

// Iterator returns a new iterator positioned before the first key.
func (f *FileBacking[K, V]) Iterator() Iterator[K, V] {
	return f.tree.Iterator()
}

// Sync makes the journal durable and compacts it once it has grown past
// its threshold.
func (f *FileBacking[K, V]) Sync() error {
	if err := f.journal.Sync(); err != nil {
		return err
	}
	if f.journal.NeedsCompaction() {
		return f.Compact()
	}
	return nil
}

// Compact rewrites the journal as a snapshot of the current tree.
func (f *FileBacking[K, V]) Compact() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.journal.Compact(func(emit func(journal.Record) error) error {
		var err error
		f.tree.Ascend(func(key K, c Container[V]) bool {
			var rec journal.Record
			rec.Op = journal.OpPut
			if rec.Key, err = f.keyCodec.Encode(key); err != nil {
				return false
			}
			if rec.Values, err = f.encodeValues(c); err != nil {
				return false
			}
			err = emit(rec)
			return err == nil
		})
		return err
	})
}

// Stats returns the state of the journal.
func (f *FileBacking[K, V]) Stats() (journal.Stats, error) {
	return f.journal.Stats()
}

// Close closes the journal. Closing twice is a no-op.
func (f *FileBacking[K, V]) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	return f.journal.Close()
}

// Destroy closes the backing and removes its journal files.
func (f *FileBacking[K, V]) Destroy() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.tree.Clear()
	return f.journal.Remove()
}

func (f *FileBacking[K, V]) encodeValues(c Container[V]) ([][]byte, error) {
	values := c.Values()
	out := make([][]byte, 0, len(values))
	for _, v := range values {
		raw, err := f.valCodec.Encode(v)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}
