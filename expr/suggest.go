package expr

import (
	"sort"

	"github.com/agext/levenshtein"
)

// NearestNames returns the declared names closest to the given name by edit
// distance, sorted lexically. Used to build "did you mean" diagnostics for
// unknown symbol references.
func NearestNames(declared []string, name string) []string {
	bestCost := len(name) + 1
	var best []string
	for _, candidate := range declared {
		distance := levenshtein.Distance(candidate, name, nil)
		switch {
		case distance < bestCost:
			bestCost = distance
			best = []string{candidate}
		case distance == bestCost:
			best = append(best, candidate)
		}
	}
	sort.Strings(best)
	return best
}

// Suggestion formats a "did you mean" fragment for the given unknown name,
// or returns the empty string when nothing is close enough to suggest.
func Suggestion(declared []string, name string) string {
	best := NearestNames(declared, name)
	if len(best) == 0 {
		return ""
	}
	return "; did you mean '" + best[0] + "'?"
}
