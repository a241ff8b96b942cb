package index

import (
	"strings"
)

// NgramSize is the default size of n-grams used for substring indexing.
const NgramSize = 3

// GenerateNgrams splits s into overlapping runs of n runes after folding it
// to lower case. A string shorter than n yields itself as its only n-gram;
// an empty string yields nil.
func GenerateNgrams(s string, n int) []string {
	if s == "" {
		return nil
	}
	if n <= 0 {
		n = NgramSize
	}

	runes := []rune(strings.ToLower(s))
	if len(runes) < n {
		return []string{string(runes)}
	}

	ngrams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		ngrams = append(ngrams, string(runes[i:i+n]))
	}
	return ngrams
}

// GenerateUniqueNgrams returns the n-grams of every value once, in order of
// first appearance.
func GenerateUniqueNgrams(n int, values ...string) []string {
	seen := make(map[string]struct{})
	var unique []string

	for _, v := range values {
		for _, g := range GenerateNgrams(v, n) {
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			unique = append(unique, g)
		}
	}
	return unique
}

// ExtractSearchableNgrams returns the n-grams every match of a wildcard
// pattern must contain. Parts between wildcards shorter than n contribute
// nothing, since an indexed value only holds a short n-gram when the whole
// value is that short.
//
// For example, "*admin*" yields ["adm", "dmi", "min"].
func ExtractSearchableNgrams(pattern string, n int) []string {
	if n <= 0 {
		n = NgramSize
	}

	var parts []string
	for _, part := range strings.Split(pattern, "*") {
		if len([]rune(part)) >= n {
			parts = append(parts, part)
		}
	}
	return GenerateUniqueNgrams(n, parts...)
}
