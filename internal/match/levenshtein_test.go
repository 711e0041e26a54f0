package match

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"e-mail", "email", 1},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
		{"café", "cafe", 1},
	}
	for _, tc := range cases {
		if got := Levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"", "", 1.0},
		{"email", "email", 1.0},
		{"Email", "email", 1.0},
		{"e-mail", "email", 1.0 - 1.0/6.0},
		{"cat", "car", 1.0 - 1.0/3.0},
		{"abc", "xyz", 0.0},
	}
	for _, tc := range cases {
		if got := Similarity(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %f, want %f", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestProperty_LevenshteinMetric(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("distance is symmetric", prop.ForAll(
		func(a, b string) bool {
			return Levenshtein(a, b) == Levenshtein(b, a)
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("identical strings have distance zero", prop.ForAll(
		func(a string) bool {
			return Levenshtein(a, a) == 0
		},
		gen.AlphaString(),
	))

	properties.Property("distance bounded by longer length", prop.ForAll(
		func(a, b string) bool {
			longest := len([]rune(a))
			if l := len([]rune(b)); l > longest {
				longest = l
			}
			return Levenshtein(a, b) <= longest
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("similarity stays within [0, 1]", prop.ForAll(
		func(a, b string) bool {
			s := Similarity(a, b)
			return s >= 0.0 && s <= 1.0
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
