package index

import (
	"strings"
	"unicode"
)

// Normalizer canonicalizes attribute values before they are indexed or
// used as a lookup key.
type Normalizer[V any] interface {
	Normalize(v V) (V, error)
}

// NormalizerFunc adapts a function to the Normalizer interface.
type NormalizerFunc[V any] func(v V) (V, error)

// Normalize calls f(v).
func (f NormalizerFunc[V]) Normalize(v V) (V, error) {
	return f(v)
}

// NoopNormalizer returns values unchanged.
type NoopNormalizer[V any] struct{}

// Normalize returns v.
func (NoopNormalizer[V]) Normalize(v V) (V, error) {
	return v, nil
}

// CaseIgnoreNormalizer implements the caseIgnoreMatch preparation of
// directory strings: surrounding space is trimmed, inner runs of space are
// collapsed to one and letters are folded to lower case.
type CaseIgnoreNormalizer struct{}

// Normalize returns the case-ignore form of s.
func (CaseIgnoreNormalizer) Normalize(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String(), nil
}
