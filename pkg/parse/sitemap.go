package parse

import (
	"encoding/xml"
	"fmt"

	"site-audit/pkg/utils"
)

// --- XML Structs for Sitemap Parsing ---

// XMLURL represents a <url> element in a sitemap
type XMLURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// XMLURLSet represents a <urlset> element in a sitemap
type XMLURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []XMLURL `xml:"url"`
}

// XMLSitemap represents a <sitemap> element in a sitemap index file
type XMLSitemap struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// XMLSitemapIndex represents a <sitemapindex> element
type XMLSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []XMLSitemap `xml:"sitemap"`
}

// SitemapContent is the result of parsing one sitemap document: either page
// URLs (urlset) or child sitemap URLs (sitemapindex), never both.
type SitemapContent struct {
	PageURLs    []string
	ChildMaps   []string
}

// ParseSitemap decodes sitemap XML, handling both <urlset> and
// <sitemapindex> documents. Empty <loc> entries are dropped.
func ParseSitemap(data []byte) (*SitemapContent, error) {
	var urlSet XMLURLSet
	if err := xml.Unmarshal(data, &urlSet); err == nil && len(urlSet.URLs) > 0 {
		content := &SitemapContent{}
		for _, u := range urlSet.URLs {
			if u.Loc != "" {
				content.PageURLs = append(content.PageURLs, u.Loc)
			}
		}
		return content, nil
	}

	var index XMLSitemapIndex
	if err := xml.Unmarshal(data, &index); err == nil && len(index.Sitemaps) > 0 {
		content := &SitemapContent{}
		for _, sm := range index.Sitemaps {
			if sm.Loc != "" {
				content.ChildMaps = append(content.ChildMaps, sm.Loc)
			}
		}
		return content, nil
	}

	// Re-run the urlset decode to surface a useful XML error for evidence
	if err := xml.Unmarshal(data, &urlSet); err != nil {
		return nil, fmt.Errorf("%w: sitemap XML: %v", utils.ErrParsing, err)
	}
	return &SitemapContent{}, nil // well-formed but empty
}
