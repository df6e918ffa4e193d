package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSitemap_URLSet(t *testing.T) {
	data := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/</loc><lastmod>2024-01-01</lastmod></url>
  <url><loc>https://example.com/about</loc></url>
  <url><loc></loc></url>
</urlset>`)

	content, err := ParseSitemap(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/", "https://example.com/about"}, content.PageURLs)
	assert.Empty(t, content.ChildMaps)
}

func TestParseSitemap_Index(t *testing.T) {
	data := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/sitemap-posts.xml</loc></sitemap>
  <sitemap><loc>https://example.com/sitemap-pages.xml</loc></sitemap>
</sitemapindex>`)

	content, err := ParseSitemap(data)
	require.NoError(t, err)
	assert.Empty(t, content.PageURLs)
	assert.Equal(t, []string{
		"https://example.com/sitemap-posts.xml",
		"https://example.com/sitemap-pages.xml",
	}, content.ChildMaps)
}

func TestParseSitemap_Malformed(t *testing.T) {
	_, err := ParseSitemap([]byte(`<urlset><url><loc>unclosed`))
	assert.Error(t, err)
}
