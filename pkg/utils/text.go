package utils

import (
	"strings"
	"unicode"
)

// NormalizeSpace collapses all whitespace runs to single spaces and trims
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeAnchor case-normalizes anchor text for aggregation
func NormalizeAnchor(s string) string {
	return strings.ToLower(NormalizeSpace(s))
}

// Tokenize lowercases the input and splits it into alphanumeric tokens
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// TokenSet builds a set from the tokens of s
func TokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(s) {
		set[tok] = struct{}{}
	}
	return set
}

// JaccardSimilarity computes |A∩B| / |A∪B| over the token sets of a and b.
// Two empty inputs compare as fully similar.
func JaccardSimilarity(a, b string) float64 {
	setA := TokenSet(a)
	setB := TokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}
	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// TokenOverlap returns the fraction of needle tokens present in the haystack
// token set. Used for keyword/topic relevance scoring.
func TokenOverlap(haystack, needle string) float64 {
	needleToks := Tokenize(needle)
	if len(needleToks) == 0 {
		return 0.0
	}
	set := TokenSet(haystack)
	hits := 0
	for _, tok := range needleToks {
		if _, ok := set[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(needleToks))
}

// WordCount counts whitespace-separated words
func WordCount(s string) int {
	return len(strings.Fields(s))
}
