package ui

import (
	"cmp"
	"slices"
	"strings"
)

const (
	// DefaultMaxDistance is the default maximum edit distance to consider for fuzzy matching
	DefaultMaxDistance = 3
	// DefaultMaxSuggestions is the default maximum number of suggestions to return
	DefaultMaxSuggestions = 3
)

// FuzzyMatchOptions configures fuzzy matching behavior
type FuzzyMatchOptions struct {
	MaxDistance    int  // Maximum Levenshtein distance to consider (default: 3)
	MaxSuggestions int  // Maximum number of suggestions to return (default: 3)
	CaseSensitive  bool // Whether matching is case-sensitive (default: false)
}

// SuggestTypes finds type names close to target. A candidate is scored on
// its full name and on its simple name, so "Dgo" still finds "App.Dog".
//
//	SuggestTypes("App.Animl", []string{"App.Animal", "App.Dog"}, nil)
//	// Returns: ["App.Animal"]
func SuggestTypes(target string, candidates []string, opts *FuzzyMatchOptions) []string {
	o := FuzzyMatchOptions{MaxDistance: DefaultMaxDistance, MaxSuggestions: DefaultMaxSuggestions}
	if opts != nil {
		o.CaseSensitive = opts.CaseSensitive
		if opts.MaxDistance > 0 {
			o.MaxDistance = opts.MaxDistance
		}
		if opts.MaxSuggestions > 0 {
			o.MaxSuggestions = opts.MaxSuggestions
		}
	}

	fold := func(s string) string {
		if o.CaseSensitive {
			return s
		}
		return strings.ToLower(s)
	}

	type match struct {
		name string
		dist int
	}
	want := fold(target)
	var matches []match
	for _, c := range candidates {
		if c == target {
			continue
		}
		name := fold(c)
		d := LevenshteinDistance(want, name)
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			d = min(d, LevenshteinDistance(want, name[i+1:]))
		}
		if d <= o.MaxDistance {
			matches = append(matches, match{c, d})
		}
	}

	slices.SortStableFunc(matches, func(a, b match) int {
		return cmp.Compare(a.dist, b.dist)
	})

	out := make([]string, 0, min(len(matches), o.MaxSuggestions))
	for _, m := range matches[:min(len(matches), o.MaxSuggestions)] {
		out = append(out, m.name)
	}
	return out
}

// LevenshteinDistance returns the number of single-rune edits needed to turn
// s1 into s2
func LevenshteinDistance(s1, s2 string) int {
	a, b := []rune(s1), []rune(s2)
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
