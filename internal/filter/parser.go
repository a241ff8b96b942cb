package filter

import (
	"encoding/hex"
	"errors"
	"strings"
)

// Parser errors
var (
	ErrEmptyFilter      = errors.New("empty filter")
	ErrInvalidFilter    = errors.New("invalid filter syntax")
	ErrUnbalancedParens = errors.New("unbalanced parentheses")
	ErrMissingAttribute = errors.New("missing attribute name")
	ErrMissingValue     = errors.New("missing filter value")
	ErrInvalidEscape    = errors.New("invalid escape sequence")
)

// Parse parses an LDAP filter string into a Filter structure.
// Supports RFC 4515 filter syntax:
//   - (attr=value)     - equality
//   - (attr=*)         - presence
//   - (attr=*val*)     - substring
//   - (attr>=value)    - greater or equal
//   - (attr<=value)    - less or equal
//   - (attr~=value)    - approximate match
//   - (&(f1)(f2)...)   - AND
//   - (|(f1)(f2)...)   - OR
//   - (!(filter))      - NOT
//
// Values may carry \XX hex escapes. A bare item without parentheses,
// such as uid=alice, is accepted as a simple filter.
func Parse(filterStr string) (*Filter, error) {
	filterStr = strings.TrimSpace(filterStr)
	if filterStr == "" {
		return nil, ErrEmptyFilter
	}

	return parseFilter(filterStr)
}

func parseFilter(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyFilter
	}

	// Must start and end with parentheses
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		// Try wrapping simple filters
		if !strings.ContainsAny(s, "()") {
			s = "(" + s + ")"
		} else {
			return nil, ErrInvalidFilter
		}
	}

	// Remove outer parentheses
	inner := s[1 : len(s)-1]
	if inner == "" {
		return nil, ErrEmptyFilter
	}

	// Check for composite filters
	switch inner[0] {
	case '&':
		return parseAndFilter(inner[1:])
	case '|':
		return parseOrFilter(inner[1:])
	case '!':
		return parseNotFilter(inner[1:])
	default:
		return parseSimpleFilter(inner)
	}
}

func parseAndFilter(s string) (*Filter, error) {
	children, err := parseFilterList(s)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, ErrInvalidFilter
	}
	return NewAndFilter(children...), nil
}

func parseOrFilter(s string) (*Filter, error) {
	children, err := parseFilterList(s)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, ErrInvalidFilter
	}
	return NewOrFilter(children...), nil
}

func parseNotFilter(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") {
		return nil, ErrInvalidFilter
	}
	child, err := parseFilter(s)
	if err != nil {
		return nil, err
	}
	return NewNotFilter(child), nil
}

func parseFilterList(s string) ([]*Filter, error) {
	var filters []*Filter
	s = strings.TrimSpace(s)

	for len(s) > 0 {
		if s[0] != '(' {
			return nil, ErrInvalidFilter
		}

		// Find matching closing paren
		depth := 0
		end := -1
		for i, c := range s {
			if c == '(' {
				depth++
			} else if c == ')' {
				depth--
				if depth == 0 {
					end = i
					break
				}
			}
		}

		if end == -1 {
			return nil, ErrUnbalancedParens
		}

		f, err := parseFilter(s[:end+1])
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)

		s = strings.TrimSpace(s[end+1:])
	}

	return filters, nil
}

func parseSimpleFilter(s string) (*Filter, error) {
	// Raw parentheses only appear escaped inside an item.
	if strings.ContainsAny(s, "()") {
		return nil, ErrInvalidFilter
	}

	idx := strings.IndexByte(s, '=')
	if idx < 0 {
		return nil, ErrInvalidFilter
	}
	if idx == 0 {
		return nil, ErrMissingAttribute
	}

	op := byte('=')
	attrEnd := idx
	switch s[idx-1] {
	case '>', '<', '~':
		op = s[idx-1]
		attrEnd = idx - 1
	}

	attr := strings.TrimSpace(s[:attrEnd])
	if attr == "" {
		return nil, ErrMissingAttribute
	}
	raw := s[idx+1:]

	if op == '=' {
		// Presence filter: (attr=*)
		if raw == "*" {
			return NewPresentFilter(attr), nil
		}
		if strings.Contains(raw, "*") {
			return parseSubstringFilter(attr, raw)
		}
	}

	if raw == "" {
		return nil, ErrMissingValue
	}
	value, err := unescapeValue(raw)
	if err != nil {
		return nil, err
	}

	switch op {
	case '>':
		return NewGreaterOrEqualFilter(attr, value), nil
	case '<':
		return NewLessOrEqualFilter(attr, value), nil
	case '~':
		return NewApproxMatchFilter(attr, value), nil
	default:
		return NewEqualityFilter(attr, value), nil
	}
}

// parseSubstringFilter unescapes each component between the wildcards.
// An escaped asterisk cannot be told apart from a wildcard in the pattern
// and is rejected.
func parseSubstringFilter(attr, raw string) (*Filter, error) {
	parts := strings.Split(raw, "*")
	for i, part := range parts {
		value, err := unescapeValue(part)
		if err != nil {
			return nil, err
		}
		if strings.Contains(value, "*") {
			return nil, ErrInvalidEscape
		}
		parts[i] = value
	}
	return NewSubstringFilter(attr, strings.Join(parts, "*")), nil
}

// unescapeValue decodes RFC 4515 \XX escapes.
func unescapeValue(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}

	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			sb.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", ErrInvalidEscape
		}
		b, err := hex.DecodeString(s[i+1 : i+3])
		if err != nil {
			return "", ErrInvalidEscape
		}
		sb.WriteByte(b[0])
		i += 2
	}
	return sb.String(), nil
}

// escapeValue encodes the characters RFC 4515 requires to be escaped.
func escapeValue(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '*', '(', ')', '\\', 0:
			sb.WriteByte('\\')
			sb.WriteString(hex.EncodeToString([]byte{c}))
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
