package ui

import (
	"sort"
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
	MaxDistance    int  // Maximum Levenshtein distance (default: 3)
	MaxSuggestions int  // Maximum number of suggestions (default: 3)
	CaseSensitive  bool // Whether matching is case-sensitive (default: false)
}

type suggestion struct {
	value    string
	distance int
}

// FindSimilar returns the candidates closest to target. Qualified names
// ("NS::Widget") also match on their last component, so "Widgt" suggests
// "NS::Widget". Short targets allow fewer edits: the limit is a third of
// the target length, at least one, capped by MaxDistance. Equal distances
// are ordered by name.
func FindSimilar(target string, candidates []string, opts *FuzzyMatchOptions) []string {
	o := FuzzyMatchOptions{MaxDistance: DefaultMaxDistance, MaxSuggestions: DefaultMaxSuggestions}
	if opts != nil {
		o = *opts
		if o.MaxDistance == 0 {
			o.MaxDistance = DefaultMaxDistance
		}
		if o.MaxSuggestions == 0 {
			o.MaxSuggestions = DefaultMaxSuggestions
		}
	}

	fold := func(s string) string {
		if o.CaseSensitive {
			return s
		}
		return strings.ToLower(s)
	}
	t := fold(target)
	limit := distanceLimit(t, o.MaxDistance)

	var found []suggestion
	seen := make(map[string]bool)
	for _, candidate := range candidates {
		if seen[candidate] {
			continue
		}
		seen[candidate] = true

		c := fold(candidate)
		dist := LevenshteinDistance(t, c)
		if i := strings.LastIndex(c, "::"); i >= 0 && !strings.Contains(t, "::") {
			dist = minInt(dist, LevenshteinDistance(t, c[i+2:]))
		}
		if dist <= limit {
			found = append(found, suggestion{value: candidate, distance: dist})
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].distance != found[j].distance {
			return found[i].distance < found[j].distance
		}
		return found[i].value < found[j].value
	})

	result := make([]string, 0, o.MaxSuggestions)
	for i := 0; i < len(found) && i < o.MaxSuggestions; i++ {
		result = append(result, found[i].value)
	}
	return result
}

// LevenshteinDistance returns the minimum number of single-rune insertions,
// deletions or substitutions turning s1 into s2.
func LevenshteinDistance(s1, s2 string) int {
	a, b := []rune(s1), []rune(s2)
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Two rows suffice.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, minInt(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func distanceLimit(target string, ceiling int) int {
	n := len([]rune(target))
	if i := strings.LastIndex(target, "::"); i >= 0 {
		n = len([]rune(target[i+2:]))
	}
	limit := n / 3
	if limit < 1 {
		limit = 1
	}
	return minInt(limit, ceiling)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// FindBestMatch returns the closest candidate, or "".
func FindBestMatch(target string, candidates []string, opts *FuzzyMatchOptions) string {
	matches := FindSimilar(target, candidates, opts)
	if len(matches) == 0 {
		return ""
	}
	return matches[0]
}
