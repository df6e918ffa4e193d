package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAnchor(t *testing.T) {
	assert.Equal(t, "read more", NormalizeAnchor("  Read\n More  "))
	assert.Equal(t, "", NormalizeAnchor("   "))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"kitchen", "renovation", "2024"}, Tokenize("Kitchen Renovation, 2024!"))
	assert.Empty(t, Tokenize("---"))
}

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "kitchen renovation", "kitchen renovation", 1.0},
		{"disjoint", "kitchen renovation", "garden shed", 0.0},
		{"partial", "kitchen renovation cost", "kitchen renovation", 2.0 / 3.0},
		{"both empty", "", "", 1.0},
		{"one empty", "kitchen", "", 0.0},
		{"case insensitive", "Kitchen", "kitchen", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, JaccardSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestTokenOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, TokenOverlap("our kitchen renovation guide", "kitchen renovation"), 1e-9)
	assert.InDelta(t, 0.5, TokenOverlap("our kitchen guide", "kitchen renovation"), 1e-9)
	assert.InDelta(t, 0.0, TokenOverlap("garden shed", "kitchen renovation"), 1e-9)
	assert.InDelta(t, 0.0, TokenOverlap("anything", ""), 1e-9)
}

func TestGlobToRegex(t *testing.T) {
	tests := []struct {
		glob    string
		path    string
		matches bool
	}{
		{"/blog/*", "/blog/post-1", true},
		{"/blog/*", "/blog/2024/post-1", false},
		{"/blog/**", "/blog/2024/post-1", true},
		{"/tag/*", "/category/x", false},
		{"/services/?", "/services/a", true},
		{"/services/?", "/services/ab", false},
	}
	for _, tt := range tests {
		compiled, err := CompileGlobPatterns([]string{tt.glob})
		assert.NoError(t, err)
		assert.Equalf(t, tt.matches, MatchesAny(tt.path, compiled), "glob %q vs path %q", tt.glob, tt.path)
	}
}

func TestCompileGlobPatterns_SkipsEmpty(t *testing.T) {
	compiled, err := CompileGlobPatterns([]string{"", "/a/*"})
	assert.NoError(t, err)
	assert.Len(t, compiled, 1)
}
