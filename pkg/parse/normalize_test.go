package parse

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL_NilInput(t *testing.T) {
	assert.Equal(t, "", NormalizeURL(nil))
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases scheme and host", "HTTPS://Example.COM/Page", "https://example.com/Page"},
		{"strips default https port", "https://example.com:443/a", "https://example.com/a"},
		{"strips default http port", "http://example.com:80/a", "http://example.com/a"},
		{"keeps non-default port", "https://example.com:8443/a", "https://example.com:8443/a"},
		{"empty path becomes root", "https://example.com", "https://example.com/"},
		{"strips trailing slash", "https://example.com/blog/", "https://example.com/blog"},
		{"root keeps slash", "https://example.com/", "https://example.com/"},
		{"strips fragment", "https://example.com/a#section", "https://example.com/a"},
		{"strips query", "https://example.com/a?utm_source=x", "https://example.com/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := url.Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, NormalizeURL(parsed))
		})
	}
}

func TestNormalizeURLString_RejectsRelative(t *testing.T) {
	_, _, err := NormalizeURLString("/relative/path")
	assert.Error(t, err)
}

func TestIsRootPath(t *testing.T) {
	assert.True(t, IsRootPath("https://example.com"))
	assert.True(t, IsRootPath("https://example.com/"))
	assert.False(t, IsRootPath("https://example.com/about"))
}
