package partition

import (
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Entry is a directory entry as stored in the master table.
type Entry struct {
	ID         uint64              `cbor:"1,keyasint"`
	UUID       uuid.UUID           `cbor:"2,keyasint"`
	DN         string              `cbor:"3,keyasint"`
	Attributes map[string][]string `cbor:"4,keyasint,omitempty"`
}

// Get returns the values of attr, matching the name case-insensitively.
func (e Entry) Get(attr string) []string {
	if values, ok := e.Attributes[strings.ToLower(attr)]; ok {
		return values
	}
	for name, values := range e.Attributes {
		if strings.EqualFold(name, attr) {
			return values
		}
	}
	return nil
}

// Has reports whether the entry carries attr.
func (e Entry) Has(attr string) bool {
	return len(e.Get(attr)) > 0
}

// Names returns the attribute names of the entry in sorted order.
func (e Entry) Names() []string {
	return slices.Sorted(maps.Keys(e.Attributes))
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	c := e
	if e.Attributes != nil {
		c.Attributes = make(map[string][]string, len(e.Attributes))
		for name, values := range e.Attributes {
			c.Attributes[name] = slices.Clone(values)
		}
	}
	return c
}

// canonicalAttributes lower-cases attribute names and merges names that
// differ only in case. Attributes without values and repeated values are
// dropped.
func canonicalAttributes(attrs map[string][]string) map[string][]string {
	out := make(map[string][]string, len(attrs))
	for name, values := range attrs {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		for _, v := range values {
			if !slices.Contains(out[key], v) {
				out[key] = append(out[key], v)
			}
		}
	}
	return out
}
