package index

import (
	"cmp"
	"errors"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Substring index errors.
var (
	ErrEmptyPattern = errors.New("pattern cannot be empty")
)

// SubstringIndex answers wildcard searches from the n-grams of attribute
// values. It stores (n-gram, id) pairs in an Index, so it shares the
// forward/reverse consistency guarantees of every other index.
type SubstringIndex struct {
	idx       *Index[string, uint64]
	ngramSize int
}

// NewSubstringIndex wraps idx, which must be dedicated to n-grams.
func NewSubstringIndex(idx *Index[string, uint64], ngramSize int) *SubstringIndex {
	if ngramSize <= 0 {
		ngramSize = NgramSize
	}
	return &SubstringIndex{idx: idx, ngramSize: ngramSize}
}

// SubstringOptions returns the index options for the n-gram index of attr.
func SubstringOptions(attr string) Options[string, uint64] {
	return Options[string, uint64]{
		Attribute:    attr + ".sub",
		ValueCompare: strings.Compare,
		IDCompare:    cmp.Compare[uint64],
	}
}

// Index returns the underlying n-gram index.
func (si *SubstringIndex) Index() *Index[string, uint64] {
	return si.idx
}

// NgramSize returns the n-gram size used by this index.
func (si *SubstringIndex) NgramSize() int {
	return si.ngramSize
}

// Set replaces the values indexed for id. Values of one id share n-grams,
// so they are always indexed together.
func (si *SubstringIndex) Set(id uint64, values []string) error {
	if err := si.idx.Drop(id); err != nil {
		return err
	}
	for _, g := range GenerateUniqueNgrams(si.ngramSize, values...) {
		if err := si.idx.Add(g, id); err != nil {
			return err
		}
	}
	return nil
}

// Unset removes id from the index.
func (si *SubstringIndex) Unset(id uint64) error {
	return si.idx.Drop(id)
}

// Search returns the ids that may match pattern. When the pattern holds no
// n-gram at all, usable is false and the caller has to scan.
// Candidates must be confirmed with MatchesPattern.
func (si *SubstringIndex) Search(pattern string) (ids *roaring64.Bitmap, usable bool, err error) {
	if pattern == "" {
		return nil, false, ErrEmptyPattern
	}

	ngrams := ExtractSearchableNgrams(pattern, si.ngramSize)
	if len(ngrams) == 0 {
		return nil, false, nil
	}

	for _, g := range ngrams {
		found, err := Equal(si.idx, g)
		if err != nil {
			return nil, false, err
		}
		if ids == nil {
			ids = found
		} else {
			ids.And(found)
		}
		if ids.IsEmpty() {
			break
		}
	}
	return ids, true, nil
}

// SearchSubstring searches for patterns like *substring*.
func (si *SubstringIndex) SearchSubstring(substring string) (*roaring64.Bitmap, bool, error) {
	return si.Search("*" + substring + "*")
}

// SearchPrefix searches for patterns like prefix*.
func (si *SubstringIndex) SearchPrefix(prefix string) (*roaring64.Bitmap, bool, error) {
	return si.Search(prefix + "*")
}

// SearchSuffix searches for patterns like *suffix.
func (si *SubstringIndex) SearchSuffix(suffix string) (*roaring64.Bitmap, bool, error) {
	return si.Search("*" + suffix)
}

// MatchesPattern reports whether value matches a wildcard pattern, ignoring
// case. '*' matches any run of characters, including none.
func MatchesPattern(value, pattern string) bool {
	v := []rune(strings.ToLower(value))
	p := []rune(strings.ToLower(pattern))

	// Greedy match with backtracking to the last star.
	vi, pi := 0, 0
	star, mark := -1, 0
	for vi < len(v) {
		switch {
		case pi < len(p) && p[pi] != '*' && p[pi] == v[vi]:
			vi++
			pi++
		case pi < len(p) && p[pi] == '*':
			star = pi
			mark = vi
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			vi = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
