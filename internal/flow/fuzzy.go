package flow

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// MatchCutoff is the lowest similarity ratio offered as a suggestion.
const MatchCutoff = 0.6

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range strings.ToLower(s) {
		out = append(out, string(r))
	}
	return out
}

// Similarity returns the matching-blocks ratio of a and b, case-insensitively.
func Similarity(a, b string) float64 {
	return difflib.NewMatcher(chars(b), chars(a)).Ratio()
}

// ClosestMatch returns the candidate most similar to word with a ratio of
// at least MatchCutoff. Ties keep the earlier candidate.
func ClosestMatch(word string, candidates []string) (string, bool) {
	best, score := "", 0.0
	for _, c := range candidates {
		if s := Similarity(word, c); s >= MatchCutoff && s > score {
			best, score = c, s
		}
	}
	return best, score > 0
}
