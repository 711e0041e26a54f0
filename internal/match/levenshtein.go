// Package match maps incoming file columns to schema columns using exact,
// substring, and edit-distance similarity with type-compatibility scoring.
package match

import "strings"

// Levenshtein computes the edit distance between two strings, counted in
// runes. Uses the two-row dynamic programming form.
func Levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Similarity returns the normalized Levenshtein similarity of two strings,
// lower-cased: 1 - distance/max(len). Two empty strings are identical (1.0).
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1.0
	}

	la := len([]rune(a))
	lb := len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	return 1.0 - float64(Levenshtein(a, b))/float64(longest)
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
