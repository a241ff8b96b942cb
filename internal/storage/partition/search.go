package partition

import (
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/google/uuid"

	"github.com/KilimcininKorOglu/obastore/internal/storage/index"
)

// Equal returns the ids of entries with a value of attr equal to value.
func (p *Partition) Equal(attr, value string) (*roaring64.Bitmap, error) {
	return p.compare(attr, value, index.Equal[string], index.Equal[uuid.UUID])
}

// GreaterOrEqual returns the ids of entries with a value of attr >= value.
func (p *Partition) GreaterOrEqual(attr, value string) (*roaring64.Bitmap, error) {
	return p.compare(attr, value, index.GreaterOrEqual[string], index.GreaterOrEqual[uuid.UUID])
}

// LessOrEqual returns the ids of entries with a value of attr <= value.
func (p *Partition) LessOrEqual(attr, value string) (*roaring64.Bitmap, error) {
	return p.compare(attr, value, index.LessOrEqual[string], index.LessOrEqual[uuid.UUID])
}

type candidates[V any] func(*index.Index[V, uint64], V) (*roaring64.Bitmap, error)

func (p *Partition) compare(attr, value string, byString candidates[string], byUUID candidates[uuid.UUID]) (*roaring64.Bitmap, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkOpen(); err != nil {
		return nil, err
	}

	name := strings.ToLower(attr)
	if name == UUIDAttribute {
		u, err := uuid.Parse(value)
		if err != nil {
			return nil, fmt.Errorf("%w: entryUUID %q: %v", ErrInvalidEntry, value, err)
		}
		return byUUID(p.uuids, u)
	}

	idx, ok := p.equality[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, attr)
	}
	return byString(idx, value)
}

// Present returns the ids of entries that carry attr.
func (p *Partition) Present(attr string) (*roaring64.Bitmap, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	return p.present(attr)
}

func (p *Partition) present(attr string) (*roaring64.Bitmap, error) {
	if strings.EqualFold(attr, UUIDAttribute) {
		return index.Present(p.uuids)
	}
	return index.Equal(p.presence, attr)
}

// All returns the ids of every entry.
func (p *Partition) All() (*roaring64.Bitmap, error) {
	return p.Present(UUIDAttribute)
}

// Substring returns the ids of entries with a value of attr matching
// pattern, where '*' matches any run of characters. N-gram candidates are
// confirmed against the stored values, so the result is exact. Patterns too
// short to yield n-grams fall back to checking every entry carrying attr.
func (p *Partition) Substring(attr, pattern string) (*roaring64.Bitmap, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkOpen(); err != nil {
		return nil, err
	}

	name := strings.ToLower(attr)
	si, ok := p.substr[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (substring)", ErrIndexNotFound, attr)
	}

	ids, usable, err := si.Search(pattern)
	if err != nil {
		return nil, err
	}
	if !usable {
		if ids, err = p.present(name); err != nil {
			return nil, err
		}
	}

	matched := roaring64.New()
	it := ids.Iterator()
	for it.HasNext() {
		id := it.Next()
		e, ok, err := p.master.Get(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, v := range e.Get(name) {
			if index.MatchesPattern(v, pattern) {
				matched.Add(id)
				break
			}
		}
	}
	return matched, nil
}
