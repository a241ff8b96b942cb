package partition

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/KilimcininKorOglu/obastore/internal/config"
	"github.com/KilimcininKorOglu/obastore/internal/logging"
	"github.com/KilimcininKorOglu/obastore/internal/storage/index"
	"github.com/KilimcininKorOglu/obastore/internal/storage/journal"
	"github.com/KilimcininKorOglu/obastore/internal/storage/table"
)

// Partition errors.
var (
	// ErrPartitionClosed is returned by every operation after Close.
	ErrPartitionClosed = errors.New("partition is closed")

	// ErrEntryExists is returned when an id or entryUUID is already taken.
	ErrEntryExists = errors.New("entry already exists")

	// ErrEntryNotFound is returned when an id names no entry.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrInvalidEntry is returned for entries the partition cannot store.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrIndexNotFound is returned when a search names an unindexed attribute.
	ErrIndexNotFound = errors.New("attribute is not indexed")

	// ErrInvalidConfig is returned by Open when the configuration does not validate.
	ErrInvalidConfig = errors.New("invalid partition configuration")
)

// Fixed table and index names.
const (
	MasterTable       = "id2entry"
	UUIDAttribute     = "entryuuid"
	PresenceAttribute = "_presence"
)

// Partition is an entry store with its attribute indexes.
type Partition struct {
	mu     sync.RWMutex
	closed bool

	master   *table.Table[uint64, Entry]
	uuids    *index.Index[uuid.UUID, uint64]
	presence *index.Index[string, uint64]
	equality map[string]*index.Index[string, uint64]
	single   map[string]bool
	substr   map[string]*index.SubstringIndex

	nextID  uint64
	backend string
	dataDir string
	logger  logging.Logger
}

// store opens tables and indexes on the configured backend.
type store struct {
	file  bool
	dir   string
	jopts journal.Options
}

func openTable[K, V any](s store, opts table.Options[K, V]) (*table.Table[K, V], error) {
	if !s.file {
		return table.New(opts)
	}
	return table.Open(opts, table.FileOptions[K, V]{Dir: s.dir, Journal: s.jopts})
}

func openIndex[V any](s store, opts index.Options[V, uint64]) (*index.Index[V, uint64], error) {
	if !s.file {
		return index.New(opts)
	}
	return index.Open(s.dir, opts, s.jopts)
}

// Open creates or reopens the partition described by cfg.
func Open(cfg *config.Config, logger logging.Logger) (*Partition, error) {
	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	logger = logging.OrNop(logger).WithFields("partition", cfg.Storage.DataDir)

	s := store{
		file: cfg.Storage.Backend == config.BackendFile,
		dir:  cfg.Storage.DataDir,
		jopts: journal.Options{
			SyncOnWrite:      cfg.Storage.SyncOnWrite,
			Compress:         cfg.Storage.Compress,
			CompressionLevel: cfg.Storage.CompressionLevel,
			CompactThreshold: cfg.Storage.CompactThreshold,
			Logger:           logger,
		},
	}
	if s.file {
		if err := os.MkdirAll(s.dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	p := &Partition{
		equality: make(map[string]*index.Index[string, uint64]),
		single:   make(map[string]bool),
		substr:   make(map[string]*index.SubstringIndex),
		backend:  cfg.Storage.Backend,
		dataDir:  cfg.Storage.DataDir,
		logger:   logger,
	}
	if err := p.open(s, cfg); err != nil {
		if cerr := p.fanOut("close", component.Close); cerr != nil {
			logger.Warn("close after failed open", "error", cerr)
		}
		return nil, err
	}

	logger.Info("partition opened",
		"backend", p.backend,
		"entries", p.master.Count(),
		"indexes", len(p.equality)+len(p.substr),
	)
	return p, nil
}

func (p *Partition) open(s store, cfg *config.Config) error {
	var err error

	p.master, err = openTable(s, table.Options[uint64, Entry]{
		Name:       MasterTable,
		KeyCompare: table.Ordered[uint64](),
		Logger:     p.logger,
	})
	if err != nil {
		return err
	}

	p.uuids, err = openIndex(s, index.Options[uuid.UUID, uint64]{
		Attribute:    UUIDAttribute,
		ValueCompare: table.UUID(),
		IDCompare:    table.Ordered[uint64](),
		SingleValued: true,
		Logger:       p.logger,
	})
	if err != nil {
		return err
	}

	p.presence, err = openIndex(s, attributeOptions(PresenceAttribute, false, p.logger))
	if err != nil {
		return err
	}

	for _, ic := range cfg.Indexes {
		attr := strings.ToLower(ic.Attribute)
		typ, err := index.ParseIndexType(ic.Type)
		if err != nil {
			return err
		}

		switch typ {
		case index.IndexEquality:
			idx, err := openIndex(s, attributeOptions(attr, ic.SingleValued, p.logger))
			if err != nil {
				return err
			}
			p.equality[attr] = idx
			p.single[attr] = ic.SingleValued
		case index.IndexSubstring:
			opts := index.SubstringOptions(attr)
			opts.Logger = p.logger
			idx, err := openIndex(s, opts)
			if err != nil {
				return err
			}
			p.substr[attr] = index.NewSubstringIndex(idx, cfg.Storage.NgramSize)
		case index.IndexPresence:
			// Served by the presence index.
		}
	}

	p.nextID, err = p.maxID()
	if err != nil {
		return err
	}
	p.nextID++
	return nil
}

// attributeOptions describes a case-ignore index over string values.
func attributeOptions(attr string, single bool, logger logging.Logger) index.Options[string, uint64] {
	return index.Options[string, uint64]{
		Attribute:    attr,
		ValueCompare: strings.Compare,
		IDCompare:    cmp.Compare[uint64],
		Normalizer:   index.CaseIgnoreNormalizer{},
		SingleValued: single,
		Logger:       logger,
	}
}

// maxID returns the largest stored id, or zero for an empty partition.
func (p *Partition) maxID() (uint64, error) {
	c, err := p.master.Cursor()
	if err != nil {
		return 0, err
	}
	defer c.Close()

	ok, err := c.Last()
	if err != nil || !ok {
		return 0, err
	}
	t, err := c.Get()
	if err != nil {
		return 0, err
	}
	return t.Key, nil
}

// Add stores e and indexes its attributes. A zero ID is replaced by the next
// free id and a nil UUID by a random one. The stored entry is returned.
//
// The id counter is not persisted. Open resumes it after the largest stored
// id, so ids deleted from the top of the range are handed out again after a
// reopen. Callers that need ids unique for all time should rely on the UUID.
func (p *Partition) Add(e Entry) (Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkOpen(); err != nil {
		return Entry{}, err
	}

	e = e.Clone()
	e.Attributes = canonicalAttributes(e.Attributes)
	if err := p.validate(e); err != nil {
		return Entry{}, err
	}

	if e.ID == 0 {
		e.ID = p.nextID
	} else if ok, err := p.master.Has(e.ID); err != nil {
		return Entry{}, err
	} else if ok {
		return Entry{}, fmt.Errorf("%w: id %d", ErrEntryExists, e.ID)
	}

	if e.UUID == uuid.Nil {
		e.UUID = uuid.New()
	} else if ok, err := p.uuids.Forward(e.UUID); err != nil {
		return Entry{}, err
	} else if ok {
		return Entry{}, fmt.Errorf("%w: entryUUID %s", ErrEntryExists, e.UUID)
	}

	if _, _, err := p.master.Put(e.ID, e); err != nil {
		return Entry{}, err
	}
	if err := p.index(e); err != nil {
		p.unwind(e.ID, nil)
		return Entry{}, err
	}

	if e.ID >= p.nextID {
		p.nextID = e.ID + 1
	}
	p.logger.Debug("entry added", "id", e.ID, "dn", e.DN)
	return e.Clone(), nil
}

// Delete removes the entry with id and everything indexed for it.
func (p *Partition) Delete(id uint64) (Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkOpen(); err != nil {
		return Entry{}, err
	}

	old, err := p.get(id)
	if err != nil {
		return Entry{}, err
	}

	if err := p.unindex(id); err != nil {
		p.unwind(id, &old)
		return Entry{}, err
	}
	if _, err := p.master.Remove(id); err != nil {
		p.unwind(id, &old)
		return Entry{}, err
	}

	p.logger.Debug("entry deleted", "id", id, "dn", old.DN)
	return old, nil
}

// Modify replaces the attributes of the entry with id and reindexes it.
// The DN and entryUUID are kept.
func (p *Partition) Modify(id uint64, attrs map[string][]string) (Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkOpen(); err != nil {
		return Entry{}, err
	}

	old, err := p.get(id)
	if err != nil {
		return Entry{}, err
	}

	updated := old.Clone()
	updated.Attributes = canonicalAttributes(attrs)
	if err := p.validate(updated); err != nil {
		return Entry{}, err
	}

	if err := p.unindex(id); err != nil {
		p.unwind(id, &old)
		return Entry{}, err
	}
	if _, _, err := p.master.Put(id, updated); err != nil {
		p.unwind(id, &old)
		return Entry{}, err
	}
	if err := p.index(updated); err != nil {
		p.unwind(id, &old)
		return Entry{}, err
	}

	p.logger.Debug("entry modified", "id", id, "dn", updated.DN)
	return updated.Clone(), nil
}

// Lookup returns the entry with id.
func (p *Partition) Lookup(id uint64) (Entry, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkOpen(); err != nil {
		return Entry{}, false, err
	}
	e, ok, err := p.master.Get(id)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	return e.Clone(), true, nil
}

// LookupUUID returns the entry whose entryUUID is u.
func (p *Partition) LookupUUID(u uuid.UUID) (Entry, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkOpen(); err != nil {
		return Entry{}, false, err
	}
	id, ok, err := p.uuids.ForwardLookup(u)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	e, ok, err := p.master.Get(id)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	return e.Clone(), true, nil
}

// Scan calls fn for every entry in id order until fn returns false.
func (p *Partition) Scan(fn func(Entry) bool) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkOpen(); err != nil {
		return err
	}
	c, err := p.master.Cursor()
	if err != nil {
		return err
	}
	defer c.Close()

	for {
		ok, err := c.Next()
		if err != nil || !ok {
			return err
		}
		t, err := c.Get()
		if err != nil {
			return err
		}
		if !fn(t.Value.Clone()) {
			return nil
		}
	}
}

// Count returns the number of entries.
func (p *Partition) Count() int {
	return p.master.Count()
}

// Backend returns the configured storage backend.
func (p *Partition) Backend() string {
	return p.backend
}

// IndexedAttributes returns the attributes with an equality index.
func (p *Partition) IndexedAttributes() []string {
	names := make([]string, 0, len(p.equality))
	for name := range p.equality {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// validate rejects entries the indexes cannot hold.
func (p *Partition) validate(e Entry) error {
	if strings.TrimSpace(e.DN) == "" {
		return fmt.Errorf("%w: missing DN", ErrInvalidEntry)
	}
	for name, values := range e.Attributes {
		if p.single[name] && len(values) > 1 {
			return fmt.Errorf("%w: attribute %s is single-valued", ErrInvalidEntry, name)
		}
	}
	return nil
}

// get returns the stored entry with id or ErrEntryNotFound.
func (p *Partition) get(id uint64) (Entry, error) {
	e, ok, err := p.master.Get(id)
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		return Entry{}, fmt.Errorf("%w: id %d", ErrEntryNotFound, id)
	}
	return e, nil
}

// index adds e to every index.
func (p *Partition) index(e Entry) error {
	if err := p.uuids.Add(e.UUID, e.ID); err != nil {
		return err
	}
	for name, values := range e.Attributes {
		if err := p.presence.Add(name, e.ID); err != nil {
			return err
		}
		if idx, ok := p.equality[name]; ok {
			for _, v := range values {
				if err := idx.Add(v, e.ID); err != nil {
					return err
				}
			}
		}
		if si, ok := p.substr[name]; ok {
			if err := si.Set(e.ID, values); err != nil {
				return err
			}
		}
	}
	return nil
}

// unindex drops id from every index.
func (p *Partition) unindex(id uint64) error {
	errs := []error{p.uuids.Drop(id), p.presence.Drop(id)}
	for _, idx := range p.equality {
		errs = append(errs, idx.Drop(id))
	}
	for _, si := range p.substr {
		errs = append(errs, si.Unset(id))
	}
	return errors.Join(errs...)
}

// unwind restores id to prev after a failed update, or removes it entirely
// when prev is nil. Failures are logged, not returned.
func (p *Partition) unwind(id uint64, prev *Entry) {
	if err := p.unindex(id); err != nil {
		p.logger.Error("unwind: unindex failed", "id", id, "error", err)
	}
	if prev == nil {
		if _, err := p.master.Remove(id); err != nil {
			p.logger.Error("unwind: remove failed", "id", id, "error", err)
		}
		return
	}
	if _, _, err := p.master.Put(id, *prev); err != nil {
		p.logger.Error("unwind: restore failed", "id", id, "error", err)
		return
	}
	if err := p.index(*prev); err != nil {
		p.logger.Error("unwind: reindex failed", "id", id, "error", err)
	}
}

func (p *Partition) checkOpen() error {
	if p.closed {
		return ErrPartitionClosed
	}
	return nil
}

// component is the lifecycle shared by tables and indexes.
type component interface {
	Sync() error
	Compact() error
	Close() error
	Destroy() error
}

type namedComponent struct {
	name string
	c    component
}

// components lists the master table and every index that has been opened.
func (p *Partition) components() []namedComponent {
	var out []namedComponent
	if p.master != nil {
		out = append(out, namedComponent{MasterTable, p.master})
	}
	if p.uuids != nil {
		out = append(out, namedComponent{UUIDAttribute, p.uuids})
	}
	if p.presence != nil {
		out = append(out, namedComponent{PresenceAttribute, p.presence})
	}
	for name, idx := range p.equality {
		out = append(out, namedComponent{name, idx})
	}
	for _, si := range p.substr {
		out = append(out, namedComponent{si.Index().Attribute(), si.Index()})
	}
	return out
}

// fanOut runs fn on every component concurrently and returns the first error.
// Every failure is logged.
func (p *Partition) fanOut(op string, fn func(component) error) error {
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, nc := range p.components() {
		g.Go(func() error {
			if err := fn(nc.c); err != nil {
				p.logger.Error("partition "+op+" failed", "component", nc.name, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Sync persists every table.
func (p *Partition) Sync() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkOpen(); err != nil {
		return err
	}
	return p.fanOut("sync", component.Sync)
}

// Compact rewrites the persisted state of every table.
func (p *Partition) Compact() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkOpen(); err != nil {
		return err
	}
	return p.fanOut("compact", component.Compact)
}

// Close syncs and closes every table. Closing twice is a no-op.
func (p *Partition) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	err := p.fanOut("close", component.Close)
	p.logger.Info("partition closed")
	return err
}

// Destroy closes the partition and deletes everything it persisted.
func (p *Partition) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	return p.fanOut("destroy", component.Destroy)
}

// Stats returns the stats of every table, sorted by name.
func (p *Partition) Stats() ([]table.Stats, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkOpen(); err != nil {
		return nil, err
	}

	ms, err := p.master.Stats()
	if err != nil {
		return nil, err
	}
	stats := []table.Stats{ms}
	for _, nc := range p.components() {
		x, ok := nc.c.(interface{ Stats() ([]table.Stats, error) })
		if !ok {
			continue
		}
		s, err := x.Stats()
		if err != nil {
			return nil, err
		}
		stats = append(stats, s...)
	}
	slices.SortFunc(stats, func(a, b table.Stats) int { return strings.Compare(a.Name, b.Name) })
	return stats, nil
}
