package partition

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/KilimcininKorOglu/obastore/internal/storage/index"
)

// verifier is implemented by every index.
type verifier interface {
	Verify() error
}

// Verify checks every index for forward/reverse agreement and cross-checks
// the master table against the entryUUID, presence and equality indexes.
// Inconsistencies are reported as index.ErrInconsistent.
func (p *Partition) Verify() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkOpen(); err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, nc := range p.components() {
		v, ok := nc.c.(verifier)
		if !ok {
			continue
		}
		g.Go(v.Verify)
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return p.crossCheck()
}

// crossCheck walks the master table and confirms each entry is indexed.
func (p *Partition) crossCheck() error {
	c, err := p.master.Cursor()
	if err != nil {
		return err
	}
	defer c.Close()

	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	entries, attrs := 0, 0
	for {
		ok, err := c.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		t, err := c.Get()
		if err != nil {
			return err
		}
		e := t.Value
		entries++

		if e.ID != t.Key {
			report("entry %d stored under id %d", e.ID, t.Key)
		}
		if ok, err := p.uuids.ForwardValue(e.UUID, t.Key); err != nil {
			return err
		} else if !ok {
			report("entry %d: entryUUID %s not indexed", t.Key, e.UUID)
		}

		for name, values := range e.Attributes {
			attrs++
			if ok, err := p.presence.ForwardValue(name, t.Key); err != nil {
				return err
			} else if !ok {
				report("entry %d: presence of %s not indexed", t.Key, name)
			}

			idx, indexed := p.equality[name]
			if !indexed {
				continue
			}
			for _, v := range values {
				if ok, err := idx.ForwardValue(v, t.Key); err != nil {
					return err
				} else if !ok {
					report("entry %d: %s=%q not indexed", t.Key, name, v)
				}
			}
		}
	}

	if n := p.uuids.Count(); n != entries {
		report("entryUUID index holds %d ids for %d entries", n, entries)
	}
	if n := p.presence.Count(); n != attrs {
		report("presence index holds %d pairs for %d attributes", n, attrs)
	}

	if len(problems) > 0 {
		if len(problems) > maxReported {
			problems = append(problems[:maxReported], fmt.Sprintf("and %d more", len(problems)-maxReported))
		}
		return fmt.Errorf("%w: partition: %v", index.ErrInconsistent, problems)
	}
	return nil
}

// maxReported caps the number of problems Verify describes.
const maxReported = 5
