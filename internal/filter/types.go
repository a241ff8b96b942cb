package filter

import "strings"

// FilterType represents the type of LDAP filter operation.
type FilterType int

const (
	// FilterAnd represents an AND filter (&).
	FilterAnd FilterType = iota
	// FilterOr represents an OR filter (|).
	FilterOr
	// FilterNot represents a NOT filter (!).
	FilterNot
	// FilterEquality represents an equality filter (attr=value).
	FilterEquality
	// FilterSubstring represents a substring filter (attr=*value*).
	FilterSubstring
	// FilterGreaterOrEqual represents a greater-or-equal filter (attr>=value).
	FilterGreaterOrEqual
	// FilterLessOrEqual represents a less-or-equal filter (attr<=value).
	FilterLessOrEqual
	// FilterPresent represents a presence filter (attr=*).
	FilterPresent
	// FilterApproxMatch represents an approximate match filter (attr~=value).
	FilterApproxMatch
)

// String returns the string representation of the FilterType.
func (ft FilterType) String() string {
	switch ft {
	case FilterAnd:
		return "AND"
	case FilterOr:
		return "OR"
	case FilterNot:
		return "NOT"
	case FilterEquality:
		return "EQUALITY"
	case FilterSubstring:
		return "SUBSTRING"
	case FilterGreaterOrEqual:
		return "GREATER_OR_EQUAL"
	case FilterLessOrEqual:
		return "LESS_OR_EQUAL"
	case FilterPresent:
		return "PRESENT"
	case FilterApproxMatch:
		return "APPROX_MATCH"
	default:
		return "UNKNOWN"
	}
}

// Filter represents an LDAP search filter.
// For substring filters Value holds the wildcard pattern, e.g. "jo*n*".
type Filter struct {
	Type      FilterType
	Attribute string
	Value     string
	Children  []*Filter // For AND/OR filters
	Child     *Filter   // For NOT filter
}

// NewAndFilter creates a new AND filter with the given children.
func NewAndFilter(children ...*Filter) *Filter {
	return &Filter{Type: FilterAnd, Children: children}
}

// NewOrFilter creates a new OR filter with the given children.
func NewOrFilter(children ...*Filter) *Filter {
	return &Filter{Type: FilterOr, Children: children}
}

// NewNotFilter creates a new NOT filter with the given child.
func NewNotFilter(child *Filter) *Filter {
	return &Filter{Type: FilterNot, Child: child}
}

// NewEqualityFilter creates a new equality filter.
func NewEqualityFilter(attribute, value string) *Filter {
	return &Filter{Type: FilterEquality, Attribute: attribute, Value: value}
}

// NewSubstringFilter creates a new substring filter from a wildcard pattern.
func NewSubstringFilter(attribute, pattern string) *Filter {
	return &Filter{Type: FilterSubstring, Attribute: attribute, Value: pattern}
}

// NewPresentFilter creates a new presence filter.
func NewPresentFilter(attribute string) *Filter {
	return &Filter{Type: FilterPresent, Attribute: attribute}
}

// NewGreaterOrEqualFilter creates a new greater-or-equal filter.
func NewGreaterOrEqualFilter(attribute, value string) *Filter {
	return &Filter{Type: FilterGreaterOrEqual, Attribute: attribute, Value: value}
}

// NewLessOrEqualFilter creates a new less-or-equal filter.
func NewLessOrEqualFilter(attribute, value string) *Filter {
	return &Filter{Type: FilterLessOrEqual, Attribute: attribute, Value: value}
}

// NewApproxMatchFilter creates a new approximate match filter.
func NewApproxMatchFilter(attribute, value string) *Filter {
	return &Filter{Type: FilterApproxMatch, Attribute: attribute, Value: value}
}

// String renders the filter in RFC 4515 form.
func (f *Filter) String() string {
	var sb strings.Builder
	f.write(&sb)
	return sb.String()
}

func (f *Filter) write(sb *strings.Builder) {
	sb.WriteByte('(')
	switch f.Type {
	case FilterAnd, FilterOr:
		if f.Type == FilterAnd {
			sb.WriteByte('&')
		} else {
			sb.WriteByte('|')
		}
		for _, child := range f.Children {
			child.write(sb)
		}
	case FilterNot:
		sb.WriteByte('!')
		if f.Child != nil {
			f.Child.write(sb)
		}
	case FilterEquality:
		sb.WriteString(f.Attribute + "=" + escapeValue(f.Value))
	case FilterSubstring:
		parts := strings.Split(f.Value, "*")
		for i, part := range parts {
			parts[i] = escapeValue(part)
		}
		sb.WriteString(f.Attribute + "=" + strings.Join(parts, "*"))
	case FilterGreaterOrEqual:
		sb.WriteString(f.Attribute + ">=" + escapeValue(f.Value))
	case FilterLessOrEqual:
		sb.WriteString(f.Attribute + "<=" + escapeValue(f.Value))
	case FilterPresent:
		sb.WriteString(f.Attribute + "=*")
	case FilterApproxMatch:
		sb.WriteString(f.Attribute + "~=" + escapeValue(f.Value))
	}
	sb.WriteByte(')')
}
