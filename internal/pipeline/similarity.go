package pipeline

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// ratio returns a 0-100 Levenshtein similarity between two strings.
func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}
	return levenshtein.Similarity(a, b, levenshtein.NewParams()) * 100
}

// tokenSortRatio compares strings independent of word order: uppercase,
// split on whitespace, sort tokens, rejoin, then Levenshtein ratio. This is
// what makes "SMITH JOHN" and "JOHN SMITH" score 100.
func tokenSortRatio(a, b string) float64 {
	return ratio(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	tokens := strings.Fields(strings.ToUpper(s))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// similarityFunc selects the configured comparison algorithm. Unknown names
// fall back to token_sort_ratio, the default.
func similarityFunc(algorithm string) func(a, b string) float64 {
	switch algorithm {
	case "ratio":
		return ratio
	default:
		return tokenSortRatio
	}
}
