package utils

import (
	"regexp"
	"strings"
)

// GlobToRegex translates a glob-style URL path pattern ("*" matches within a
// segment, "**" matches across segments) into an anchored regular expression.
func GlobToRegex(glob string) string {
	var sb strings.Builder
	sb.WriteString("^")
	i := 0
	for i < len(glob) {
		c := glob[i]
		switch c {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' {
				sb.WriteString(".*")
				i += 2
				continue
			}
			sb.WriteString("[^/]*")
		case '?':
			sb.WriteString("[^/]")
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
		i++
	}
	sb.WriteString("$")
	return sb.String()
}

// CompileGlobPatterns compiles glob-style path patterns into usable
// *regexp.Regexp objects. Empty patterns are skipped silently; an invalid
// resulting expression yields a config validation error.
func CompileGlobPatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for i, pattern := range patterns {
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(GlobToRegex(pattern))
		if err != nil {
			return nil, WrapErrorf(ErrConfigValidation, "invalid pattern #%d ('%s'): %v", i+1, pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// MatchesAny reports whether path matches at least one compiled pattern
func MatchesAny(path string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
