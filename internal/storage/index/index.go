package index

import (
	"errors"
	"fmt"
	"sync"

	"github.com/KilimcininKorOglu/obastore/internal/logging"
	"github.com/KilimcininKorOglu/obastore/internal/storage"
	"github.com/KilimcininKorOglu/obastore/internal/storage/journal"
	"github.com/KilimcininKorOglu/obastore/internal/storage/table"
)

// Index errors.
var (
	// ErrInconsistent is returned by Verify when forward and reverse disagree.
	ErrInconsistent = errors.New("index forward and reverse tables disagree")

	// ErrInvalidAttribute is returned when an index is created without an attribute name.
	ErrInvalidAttribute = errors.New("index requires an attribute name")
)

// Table name suffixes.
const (
	ForwardSuffix = ".forward"
	ReverseSuffix = ".reverse"
)

// Options describes an index.
type Options[V, ID any] struct {
	// Attribute is the indexed attribute, used to name the two tables.
	Attribute string

	// ValueCompare orders normalized values. Required.
	ValueCompare table.Comparator[V]

	// IDCompare orders entry ids. Required.
	IDCompare table.Comparator[ID]

	// Normalizer canonicalizes values. Nil leaves values unchanged.
	Normalizer Normalizer[V]

	// SingleValued restricts every id to one value. Adding a second value
	// for an id replaces the first.
	SingleValued bool

	// Logger receives index events. Nil disables logging.
	Logger logging.Logger
}

func (o Options[V, ID]) tableOptions() (table.Options[V, ID], table.Options[ID, V]) {
	logger := logging.OrNop(o.Logger)
	forward := table.Options[V, ID]{
		Name:         o.Attribute + ForwardSuffix,
		KeyCompare:   o.ValueCompare,
		ValueCompare: o.IDCompare,
		Duplicates:   true,
		Logger:       logger,
	}
	reverse := table.Options[ID, V]{
		Name:         o.Attribute + ReverseSuffix,
		KeyCompare:   o.IDCompare,
		ValueCompare: o.ValueCompare,
		Duplicates:   !o.SingleValued,
		Logger:       logger,
	}
	return forward, reverse
}

// Index maps normalized attribute values to entry ids and back.
type Index[V, ID any] struct {
	mu      sync.Mutex
	attr    string
	forward *table.Table[V, ID]
	reverse *table.Table[ID, V]
	norm    Normalizer[V]
	single  bool
	valCmp  table.Comparator[V]
	idCmp   table.Comparator[ID]
	logger  logging.Logger
}

// New creates an empty in-memory index.
func New[V, ID any](opts Options[V, ID]) (*Index[V, ID], error) {
	if opts.Attribute == "" {
		return nil, ErrInvalidAttribute
	}
	fopts, ropts := opts.tableOptions()

	forward, err := table.New(fopts)
	if err != nil {
		return nil, err
	}
	reverse, err := table.New(ropts)
	if err != nil {
		return nil, err
	}
	return NewWithTables(opts, forward, reverse)
}

// Open opens a journaled index in dir.
func Open[V, ID any](dir string, opts Options[V, ID], jopts journal.Options) (*Index[V, ID], error) {
	if opts.Attribute == "" {
		return nil, ErrInvalidAttribute
	}
	fopts, ropts := opts.tableOptions()

	forward, err := table.Open(fopts, table.FileOptions[V, ID]{Dir: dir, Journal: jopts})
	if err != nil {
		return nil, err
	}
	reverse, err := table.Open(ropts, table.FileOptions[ID, V]{Dir: dir, Journal: jopts})
	if err != nil {
		forward.Close()
		return nil, err
	}
	return NewWithTables(opts, forward, reverse)
}

// NewWithTables builds an index over existing forward and reverse tables.
func NewWithTables[V, ID any](opts Options[V, ID], forward *table.Table[V, ID], reverse *table.Table[ID, V]) (*Index[V, ID], error) {
	if opts.Attribute == "" {
		return nil, ErrInvalidAttribute
	}
	if !forward.IsDupsEnabled() {
		return nil, fmt.Errorf("%w: forward table %s must allow duplicates",
			storage.ErrUnsupported, forward.Name())
	}

	var norm Normalizer[V] = NoopNormalizer[V]{}
	if opts.Normalizer != nil {
		norm = opts.Normalizer
	}

	return &Index[V, ID]{
		attr:    opts.Attribute,
		forward: forward,
		reverse: reverse,
		norm:    norm,
		single:  opts.SingleValued,
		valCmp:  opts.ValueCompare,
		idCmp:   opts.IDCompare,
		logger:  logging.OrNop(opts.Logger).WithFields("index", opts.Attribute),
	}, nil
}

// Attribute returns the indexed attribute.
func (x *Index[V, ID]) Attribute() string {
	return x.attr
}

// IsSingleValued reports whether each id holds at most one value.
func (x *Index[V, ID]) IsSingleValued() bool {
	return x.single
}

// Normalize returns the normalized form of v.
func (x *Index[V, ID]) Normalize(v V) (V, error) {
	n, err := x.norm.Normalize(v)
	if err != nil {
		return n, fmt.Errorf("normalize %s value %s: %w", x.attr, storage.RenderKey(v), err)
	}
	return n, nil
}

// Add indexes (value, id). Both tables hold the pair when Add returns nil;
// on error neither holds anything Add wrote.
func (x *Index[V, ID]) Add(value V, id ID) error {
	nv, err := x.Normalize(value)
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	var undo undoLog

	if x.single {
		old, ok, err := x.reverse.Get(id)
		if err != nil {
			return err
		}
		if ok {
			if x.valCmp(old, nv) == 0 {
				return nil
			}
			if _, err := x.forward.RemoveValue(old, id); err != nil {
				return err
			}
			undo.push(func() error {
				_, _, err := x.forward.Put(old, id)
				return err
			})
		}
	}

	existed, err := x.forward.HasValue(nv, id)
	if err != nil {
		return undo.rollback(x.logger, err)
	}
	if _, _, err := x.forward.Put(nv, id); err != nil {
		return undo.rollback(x.logger, err)
	}
	if !existed {
		undo.push(func() error {
			_, err := x.forward.RemoveValue(nv, id)
			return err
		})
	}

	if _, _, err := x.reverse.Put(id, nv); err != nil {
		return undo.rollback(x.logger, err)
	}
	return nil
}

// Drop removes id and every value indexed for it.
func (x *Index[V, ID]) Drop(id ID) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	values, err := x.reverseValues(id)
	if err != nil || len(values) == 0 {
		return err
	}

	var undo undoLog
	for _, v := range values {
		removed, err := x.forward.RemoveValue(v, id)
		if err != nil {
			return undo.rollback(x.logger, err)
		}
		if removed {
			undo.push(func() error {
				_, _, err := x.forward.Put(v, id)
				return err
			})
		}
	}

	if _, err := x.reverse.Remove(id); err != nil {
		return undo.rollback(x.logger, err)
	}
	return nil
}

// reverseValues walks the reverse cursor of id.
func (x *Index[V, ID]) reverseValues(id ID) ([]V, error) {
	c, err := x.reverse.CursorAt(id)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	tuples, err := table.Collect(c)
	if err != nil {
		return nil, err
	}
	values := make([]V, 0, len(tuples))
	for _, t := range tuples {
		values = append(values, t.Value)
	}
	return values, nil
}

// DropValue removes the single pairing (value, id).
func (x *Index[V, ID]) DropValue(value V, id ID) error {
	nv, err := x.Normalize(value)
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	removed, err := x.forward.RemoveValue(nv, id)
	if err != nil {
		return err
	}

	var undo undoLog
	if removed {
		undo.push(func() error {
			_, _, err := x.forward.Put(nv, id)
			return err
		})
	}

	if _, err := x.reverse.RemoveValue(id, nv); err != nil {
		return undo.rollback(x.logger, err)
	}
	return nil
}

// Forward reports whether any id is indexed under value.
func (x *Index[V, ID]) Forward(value V) (bool, error) {
	nv, err := x.Normalize(value)
	if err != nil {
		return false, err
	}
	return x.forward.Has(nv)
}

// ForwardValue reports whether (value, id) is indexed.
func (x *Index[V, ID]) ForwardValue(value V, id ID) (bool, error) {
	nv, err := x.Normalize(value)
	if err != nil {
		return false, err
	}
	return x.forward.HasValue(nv, id)
}

// Reverse reports whether id has any indexed value.
func (x *Index[V, ID]) Reverse(id ID) (bool, error) {
	return x.reverse.Has(id)
}

// ReverseValue reports whether id is indexed with value.
func (x *Index[V, ID]) ReverseValue(id ID, value V) (bool, error) {
	nv, err := x.Normalize(value)
	if err != nil {
		return false, err
	}
	return x.reverse.HasValue(id, nv)
}

// ForwardGreaterOrEq reports whether some indexed value is >= value.
func (x *Index[V, ID]) ForwardGreaterOrEq(value V) (bool, error) {
	nv, err := x.Normalize(value)
	if err != nil {
		return false, err
	}
	return x.forward.HasGreaterOrEqual(nv)
}

// ForwardGreaterOrEqID reports whether value is indexed for some id >= id.
func (x *Index[V, ID]) ForwardGreaterOrEqID(value V, id ID) (bool, error) {
	nv, err := x.Normalize(value)
	if err != nil {
		return false, err
	}
	return x.forward.HasGreaterOrEqualValue(nv, id)
}

// ForwardLessOrEq reports whether some indexed value is <= value.
func (x *Index[V, ID]) ForwardLessOrEq(value V) (bool, error) {
	nv, err := x.Normalize(value)
	if err != nil {
		return false, err
	}
	return x.forward.HasLessOrEqual(nv)
}

// ForwardLessOrEqID reports whether value is indexed for some id <= id.
func (x *Index[V, ID]) ForwardLessOrEqID(value V, id ID) (bool, error) {
	nv, err := x.Normalize(value)
	if err != nil {
		return false, err
	}
	return x.forward.HasLessOrEqualValue(nv, id)
}

// ReverseGreaterOrEq reports whether some indexed id is >= id.
func (x *Index[V, ID]) ReverseGreaterOrEq(id ID) (bool, error) {
	return x.reverse.HasGreaterOrEqual(id)
}

// ReverseGreaterOrEqValue reports whether id holds a value >= value.
// Single-valued indexes fail with storage.ErrUnsupported.
func (x *Index[V, ID]) ReverseGreaterOrEqValue(id ID, value V) (bool, error) {
	nv, err := x.Normalize(value)
	if err != nil {
		return false, err
	}
	return x.reverse.HasGreaterOrEqualValue(id, nv)
}

// ReverseLessOrEq reports whether some indexed id is <= id.
func (x *Index[V, ID]) ReverseLessOrEq(id ID) (bool, error) {
	return x.reverse.HasLessOrEqual(id)
}

// ReverseLessOrEqValue reports whether id holds a value <= value.
// Single-valued indexes fail with storage.ErrUnsupported.
func (x *Index[V, ID]) ReverseLessOrEqValue(id ID, value V) (bool, error) {
	nv, err := x.Normalize(value)
	if err != nil {
		return false, err
	}
	return x.reverse.HasLessOrEqualValue(id, nv)
}

// Count returns the number of (value, id) pairs.
func (x *Index[V, ID]) Count() int {
	return x.forward.Count()
}

// CountValue returns the number of ids indexed under value.
func (x *Index[V, ID]) CountValue(value V) (int, error) {
	nv, err := x.Normalize(value)
	if err != nil {
		return 0, err
	}
	return x.forward.CountKey(nv)
}

// ForwardLookup returns the smallest id indexed under value.
func (x *Index[V, ID]) ForwardLookup(value V) (ID, bool, error) {
	nv, err := x.Normalize(value)
	if err != nil {
		var zero ID
		return zero, false, err
	}
	return x.forward.Get(nv)
}

// ReverseLookup returns the smallest value indexed for id.
func (x *Index[V, ID]) ReverseLookup(id ID) (V, bool, error) {
	return x.reverse.Get(id)
}

// Values returns every value indexed for id.
func (x *Index[V, ID]) Values(id ID) ([]V, error) {
	return x.reverse.Values(id)
}

// ForwardCursor returns a cursor over (value, id) pairs.
func (x *Index[V, ID]) ForwardCursor() (table.Cursor[V, ID], error) {
	return x.forward.Cursor()
}

// ForwardCursorAt returns a cursor over the ids indexed under value.
func (x *Index[V, ID]) ForwardCursorAt(value V) (table.Cursor[V, ID], error) {
	nv, err := x.Normalize(value)
	if err != nil {
		return nil, err
	}
	return x.forward.CursorAt(nv)
}

// ReverseCursor returns a cursor over (id, value) pairs.
func (x *Index[V, ID]) ReverseCursor() (table.Cursor[ID, V], error) {
	return x.reverse.Cursor()
}

// ReverseCursorAt returns a cursor over the values indexed for id.
func (x *Index[V, ID]) ReverseCursorAt(id ID) (table.Cursor[ID, V], error) {
	return x.reverse.CursorAt(id)
}

// Stats returns the stats of the forward and reverse tables.
func (x *Index[V, ID]) Stats() ([]table.Stats, error) {
	fs, err := x.forward.Stats()
	if err != nil {
		return nil, err
	}
	rs, err := x.reverse.Stats()
	if err != nil {
		return nil, err
	}
	return []table.Stats{fs, rs}, nil
}

// Sync persists both tables.
func (x *Index[V, ID]) Sync() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return errors.Join(x.forward.Sync(), x.reverse.Sync())
}

// Compact rewrites the persisted state of both tables.
func (x *Index[V, ID]) Compact() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return errors.Join(x.forward.Compact(), x.reverse.Compact())
}

// Close closes both tables. Closing twice is a no-op.
func (x *Index[V, ID]) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return errors.Join(x.forward.Close(), x.reverse.Close())
}

// Destroy closes both tables and deletes what they persisted.
func (x *Index[V, ID]) Destroy() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return errors.Join(x.forward.Destroy(), x.reverse.Destroy())
}

// maxReported caps the number of mismatches Verify describes.
const maxReported = 5

// Verify checks that every forward pair has its reverse twin and the other
// way round.
func (x *Index[V, ID]) Verify() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	var problems []string
	missing := 0
	report := func(format string, args ...any) {
		missing++
		if len(problems) < maxReported {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	fc, err := x.forward.Cursor()
	if err != nil {
		return err
	}
	defer fc.Close()
	forward, err := table.Collect(fc)
	if err != nil {
		return err
	}
	for _, t := range forward {
		ok, err := x.reverse.HasValue(t.Value, t.Key)
		if err != nil {
			return err
		}
		if !ok {
			report("forward (%s, %s) has no reverse pair",
				storage.RenderKey(t.Key), storage.RenderKey(t.Value))
		}
	}

	rc, err := x.reverse.Cursor()
	if err != nil {
		return err
	}
	defer rc.Close()
	reverse, err := table.Collect(rc)
	if err != nil {
		return err
	}
	for _, t := range reverse {
		ok, err := x.forward.HasValue(t.Value, t.Key)
		if err != nil {
			return err
		}
		if !ok {
			report("reverse (%s, %s) has no forward pair",
				storage.RenderKey(t.Key), storage.RenderKey(t.Value))
		}
	}

	if missing > 0 {
		return fmt.Errorf("%w: %s: %d mismatches: %v", ErrInconsistent, x.attr, missing, problems)
	}
	return nil
}

// undoLog collects compensating actions for a multi-table update.
type undoLog []func() error

func (u *undoLog) push(f func() error) {
	*u = append(*u, f)
}

// rollback runs the compensating actions newest first. It returns cause
// joined with every failure met while undoing; such a failure leaves the
// two tables out of step until Verify and a rebuild repair them.
func (u undoLog) rollback(logger logging.Logger, cause error) error {
	errs := []error{cause}
	for i := len(u) - 1; i >= 0; i-- {
		if err := u[i](); err != nil {
			logger.Error("index rollback failed", "error", err, "cause", cause)
			errs = append(errs, fmt.Errorf("rollback: %w", err))
		}
	}
	return errors.Join(errs...)
}
