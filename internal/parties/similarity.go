package parties

import (
	"strings"
	"unicode"
)

// NormalizeName canonicalizes a company name for matching: upper case,
// collapsed whitespace, punctuation stripped. Dropping punctuation without
// inserting a space keeps dotted abbreviations intact ("A.S." matches "AS"),
// mirroring the regexp_replace used for database lookups.
func NormalizeName(name string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToUpper(strings.TrimSpace(name)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// SimilarityRatio returns the ratio of matching characters between two
// normalized names, 2*M/(len(a)+len(b)) with M the total length of the
// longest common subsequence. 1.0 means identical, 0.0 means disjoint.
func SimilarityRatio(a, b string) float64 {
	a = NormalizeName(a)
	b = NormalizeName(b)
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	// Single-row LCS over bytes; names are short so O(len(a)*len(b)) is fine.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	m := prev[len(b)]
	return 2.0 * float64(m) / float64(len(a)+len(b))
}
