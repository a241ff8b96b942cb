package index

import (
	"fmt"
	"strings"
)

// IndexType represents the type of index for attribute searching.
type IndexType int

const (
	// IndexEquality supports equality and ordering searches like (uid=alice).
	IndexEquality IndexType = iota
	// IndexPresence supports presence searches like (mail=*).
	IndexPresence
	// IndexSubstring supports substring searches like (cn=*admin*).
	IndexSubstring
)

// String returns the string representation of an IndexType.
func (t IndexType) String() string {
	switch t {
	case IndexEquality:
		return "equality"
	case IndexPresence:
		return "presence"
	case IndexSubstring:
		return "substring"
	default:
		return "unknown"
	}
}

// ParseIndexType parses the name of an index type, case-insensitively.
func ParseIndexType(s string) (IndexType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "eq", "equality":
		return IndexEquality, nil
	case "pres", "presence":
		return IndexPresence, nil
	case "sub", "substring":
		return IndexSubstring, nil
	default:
		return 0, fmt.Errorf("unknown index type %q", s)
	}
}
