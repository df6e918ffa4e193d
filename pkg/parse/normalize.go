package parse

import (
	"net"
	"net/url"
	"strings"
)

// NormalizeURL standardizes a URL for deduplication and graph keying.
// It lowercases the scheme and host, removes default ports (80 for http,
// 443 for https), removes trailing slashes from paths (unless root "/"),
// ensures an empty path becomes "/", and strips fragments and query strings.
// Does not modify the input *url.URL.
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" {
		normalized.Path = "/"
	} else if len(normalized.Path) > 1 && strings.HasSuffix(normalized.Path, "/") {
		normalized.Path = normalized.Path[:len(normalized.Path)-1]
	}

	normalized.Fragment = ""
	normalized.RawQuery = ""

	return normalized.String()
}

// NormalizeURLString parses and normalizes a URL string. Returns the
// normalized string, the parsed URL, and any parse error.
func NormalizeURLString(urlStr string) (string, *url.URL, error) {
	parsed, err := url.ParseRequestURI(urlStr)
	if err != nil {
		return "", nil, err
	}
	return NormalizeURL(parsed), parsed, nil
}

// IsRootPath reports whether the URL addresses the site root ("/" or empty path)
func IsRootPath(urlStr string) bool {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	return parsed.Path == "" || parsed.Path == "/"
}
