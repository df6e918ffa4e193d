package extract

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"site-audit/pkg/models"
	"site-audit/pkg/parse"
	"site-audit/pkg/utils"
)

// outlinkKey identifies one distinct link relationship on a page
type outlinkKey struct {
	target    string
	anchor    string
	rel       string
	navLikely bool
}

// navAncestorMarkers are class/id substrings that mark navigation chrome
var navAncestorMarkers = []string{"nav", "menu", "breadcrumb", "sidebar"}

// CollectOutlinks walks every a[href] in the document, resolves hrefs against
// the page's final URL, and groups them into internal/external link
// relationships. Identical (target, anchor, rel, nav-likely) tuples collapse
// into a single Outlink with Occurrences counting the repetitions. The third
// return value counts anchors with no accessible label at all.
func CollectOutlinks(doc *goquery.Document, finalURL *url.URL, internalHosts map[string]bool) (internal, external []models.Outlink, unlabeled int) {
	counts := make(map[outlinkKey]int)
	isInternal := make(map[outlinkKey]bool)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		linkURL, err := finalURL.Parse(href)
		if err != nil {
			return
		}
		if linkURL.Scheme != "http" && linkURL.Scheme != "https" {
			return // mailto:, tel:, javascript: and friends
		}

		anchor := utils.NormalizeSpace(sel.Text())
		if anchor == "" {
			anchor = altFromNestedImage(sel)
		}
		if !hasAccessibleLabel(sel, anchor) {
			unlabeled++
		}

		rel, _ := sel.Attr("rel")
		key := outlinkKey{
			target:    parse.NormalizeURL(linkURL),
			anchor:    anchor,
			rel:       strings.ToLower(strings.TrimSpace(rel)),
			navLikely: isNavLikely(sel),
		}
		counts[key]++
		isInternal[key] = internalHosts[strings.ToLower(linkURL.Hostname())]
	})

	for key, occurrences := range counts {
		link := models.Outlink{
			TargetURL:   key.target,
			AnchorText:  key.anchor,
			Rel:         key.rel,
			IsNavLikely: key.navLikely,
			Occurrences: occurrences,
		}
		if isInternal[key] {
			internal = append(internal, link)
		} else {
			external = append(external, link)
		}
	}
	sortOutlinks(internal)
	sortOutlinks(external)
	return internal, external, unlabeled
}

// hasAccessibleLabel reports whether the anchor exposes any text to assistive
// technology: visible text, nested image alt, aria-label, or title.
func hasAccessibleLabel(sel *goquery.Selection, anchorText string) bool {
	if anchorText != "" {
		return true
	}
	if label, ok := sel.Attr("aria-label"); ok && strings.TrimSpace(label) != "" {
		return true
	}
	if title, ok := sel.Attr("title"); ok && strings.TrimSpace(title) != "" {
		return true
	}
	return false
}

// altFromNestedImage returns the alt text of the first nested <img>, if any
func altFromNestedImage(sel *goquery.Selection) string {
	alt, _ := sel.Find("img[alt]").First().Attr("alt")
	return utils.NormalizeSpace(alt)
}

// isNavLikely reports whether the anchor sits inside navigation chrome:
// a nav/header/footer/aside ancestor, or any ancestor whose class or id
// contains a navigation marker.
func isNavLikely(sel *goquery.Selection) bool {
	if sel.Closest("nav, header, footer, aside").Length() > 0 {
		return true
	}
	likely := false
	sel.Parents().EachWithBreak(func(_ int, parent *goquery.Selection) bool {
		class, _ := parent.Attr("class")
		id, _ := parent.Attr("id")
		haystack := strings.ToLower(class + " " + id)
		for _, marker := range navAncestorMarkers {
			if strings.Contains(haystack, marker) {
				likely = true
				return false
			}
		}
		return true
	})
	return likely
}

// sortOutlinks orders link relationships deterministically
func sortOutlinks(links []models.Outlink) {
	sort.Slice(links, func(i, j int) bool {
		if links[i].TargetURL != links[j].TargetURL {
			return links[i].TargetURL < links[j].TargetURL
		}
		if links[i].AnchorText != links[j].AnchorText {
			return links[i].AnchorText < links[j].AnchorText
		}
		if links[i].Rel != links[j].Rel {
			return links[i].Rel < links[j].Rel
		}
		return !links[i].IsNavLikely && links[j].IsNavLikely
	})
}
