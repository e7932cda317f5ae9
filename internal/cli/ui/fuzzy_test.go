package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		s1       string
		s2       string
		expected int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"Widget", "Widgt", 1},
		{"QString", "QStrin", 1},
		{"größe", "grösse", 2},
	}

	for _, tt := range tests {
		t.Run(tt.s1+"_"+tt.s2, func(t *testing.T) {
			assert.Equal(t, tt.expected, LevenshteinDistance(tt.s1, tt.s2))
			assert.Equal(t, tt.expected, LevenshteinDistance(tt.s2, tt.s1))
		})
	}
}

func TestFindSimilar(t *testing.T) {
	candidates := []string{"Widget", "NS::Widget", "Window", "NS::Gadget", "Label"}

	tests := []struct {
		name     string
		target   string
		opts     *FuzzyMatchOptions
		expected []string
	}{
		{"exact match first", "Widget", nil, []string{"NS::Widget", "Widget", "NS::Gadget"}},
		{"typo", "Widgt", &FuzzyMatchOptions{MaxDistance: 1}, []string{"NS::Widget", "Widget"}},
		{"case insensitive", "label", nil, []string{"Label"}},
		{"case sensitive", "label", &FuzzyMatchOptions{CaseSensitive: true, MaxDistance: 1}, []string{"Label"}},
		{"qualified target", "NS::Gadgte", &FuzzyMatchOptions{MaxDistance: 2}, []string{"NS::Gadget"}},
		{"limit", "Widget", &FuzzyMatchOptions{MaxSuggestions: 1}, []string{"NS::Widget"}},
		{"no match", "Completely", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FindSimilar(tt.target, candidates, tt.opts))
		})
	}
}

func TestFindSimilar_ShortTargetsAllowFewerEdits(t *testing.T) {
	candidates := []string{"Gui::Widget", "List", "Point"}

	assert.Equal(t, []string{"Gui::Widget"}, FindSimilar("Widgt", candidates, nil))
	assert.Equal(t, []string{"List"}, FindSimilar("Lst", candidates, nil))
	assert.Empty(t, FindSimilar("Xy", candidates, nil))
	assert.Empty(t, FindSimilar("Pnt", candidates, nil))
	assert.Equal(t, []string{"Gui::Widget"}, FindSimilar("Widgt", candidates, &FuzzyMatchOptions{MaxDistance: 3}))
}

func TestFindSimilar_Duplicates(t *testing.T) {
	assert.Equal(t, []string{"Point"}, FindSimilar("Pont", []string{"Point", "Point"}, nil))
	assert.Empty(t, FindSimilar("Point", nil, nil))
}

func TestFindBestMatch(t *testing.T) {
	candidates := []string{"QObject", "QWidget", "QString"}
	assert.Equal(t, "QString", FindBestMatch("QStrng", candidates, nil))
	assert.Equal(t, "", FindBestMatch("Unrelated", candidates, nil))
}
