package rules

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"site-audit/pkg/models"
	"site-audit/pkg/utils"
)

const (
	// repeated-content detection bounds
	minRepeatedBlockLen = 80
	maxRepeatedGroups   = 8
)

// evaluateSite runs the cross-page checks that need no network access
func evaluateSite(rc *RuleContext) []models.Issue {
	var issues []models.Issue
	issues = append(issues, checkAvailability(rc)...)
	issues = append(issues, checkDuplicateField(rc, "title", func(p *models.PageExtract) string { return p.Title })...)
	issues = append(issues, checkDuplicateField(rc, "description", func(p *models.PageExtract) string { return p.MetaDescription })...)
	issues = append(issues, checkRepeatedContent(rc)...)
	issues = append(issues, checkSitemapCanonicalConflicts(rc)...)
	issues = append(issues, checkFocusInlinks(rc)...)
	issues = append(issues, checkFocusAnchorQuality(rc)...)
	return issues
}

// checkAvailability reports every crawled URL that did not yield a usable page
func checkAvailability(rc *RuleContext) []models.Issue {
	var issues []models.Issue
	for _, page := range rc.Pages {
		if page.IsAvailable() {
			continue
		}
		if page.Status >= 200 && page.Status < 300 {
			// the resource responded; it just was not auditable HTML
			continue
		}
		evidence := models.Evidence{Type: "status", URL: page.URL, Status: page.Status}
		if page.FetchErr != "" {
			evidence.Message = page.FetchErr
		} else {
			evidence.Message = fmt.Sprintf("HTTP %d", page.Status)
		}
		issues = append(issues, models.Issue{
			ID:           "page_not_available",
			Category:     models.CategoryTechnical,
			Severity:     models.SeverityError,
			Rank:         9,
			Title:        "Page not available",
			Description:  "A discovered page could not be fetched successfully.",
			AffectedURLs: []string{page.URL},
			Evidence:     []models.Evidence{evidence},
			Tags:         []string{"availability"},
		})
	}
	return issues
}

// checkDuplicateField groups available pages by a normalized field value and
// reports every group of two or more
func checkDuplicateField(rc *RuleContext, field string, value func(*models.PageExtract) string) []models.Issue {
	groups := make(map[string][]string)
	for _, page := range rc.Pages {
		if !page.IsAvailable() {
			continue
		}
		normalized := strings.ToLower(utils.NormalizeSpace(value(page)))
		if normalized == "" {
			continue
		}
		groups[normalized] = append(groups[normalized], page.FinalURL)
	}

	keys := make([]string, 0, len(groups))
	for key, urls := range groups {
		if len(urls) >= 2 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var issues []models.Issue
	for _, key := range keys {
		urls := groups[key]
		sort.Strings(urls)
		issues = append(issues, models.Issue{
			ID:           "duplicate_" + field,
			Category:     models.CategoryContent,
			Severity:     models.SeverityWarning,
			Rank:         6,
			Title:        fmt.Sprintf("Duplicate %s across pages", field),
			Description:  fmt.Sprintf("Several pages share the same %s: %q.", field, key),
			AffectedURLs: urls,
			Evidence: []models.Evidence{{
				Type:    "sample",
				Message: fmt.Sprintf("%d pages share this %s", len(urls), field),
				Details: key,
			}},
			Recommendation: fmt.Sprintf("Give every page a unique %s.", field),
			Tags:           []string{"serp", "duplication"},
		})
	}
	return issues
}

// checkRepeatedContent finds paragraph-sized text blocks repeated across the
// site. Blocks come from each page's markdown rendering; groups are keyed by
// exact normalized text and only the largest ones are reported.
func checkRepeatedContent(rc *RuleContext) []models.Issue {
	type occurrence struct{ urls []string }
	groups := make(map[string]*occurrence)

	for _, page := range rc.Pages {
		if !page.IsAvailable() {
			continue
		}
		for _, block := range markdownParagraphs([]byte(page.ContentMarkdown)) {
			normalized := utils.NormalizeSpace(block)
			if len(normalized) < minRepeatedBlockLen {
				continue
			}
			group := groups[normalized]
			if group == nil {
				group = &occurrence{}
				groups[normalized] = group
			}
			group.urls = append(group.urls, page.FinalURL)
		}
	}

	type repeated struct {
		block string
		urls  []string
	}
	var candidates []repeated
	for block, group := range groups {
		if len(group.urls) >= 2 {
			candidates = append(candidates, repeated{block: block, urls: group.urls})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i].urls) != len(candidates[j].urls) {
			return len(candidates[i].urls) > len(candidates[j].urls)
		}
		return candidates[i].block < candidates[j].block
	})
	if len(candidates) > maxRepeatedGroups {
		candidates = candidates[:maxRepeatedGroups]
	}

	var issues []models.Issue
	for _, cand := range candidates {
		urls := append([]string(nil), cand.urls...)
		sort.Strings(urls)
		issues = append(issues, models.Issue{
			ID:           "repeated_content_block",
			Category:     models.CategoryContent,
			Severity:     models.SeverityNotice,
			Rank:         3,
			Title:        "Content block repeated across pages",
			Description:  fmt.Sprintf("An identical text block appears on multiple pages: %q.", truncateRaw(cand.block, 120)),
			AffectedURLs: urls,
			Evidence: []models.Evidence{{
				Type:    "sample",
				Message: fmt.Sprintf("%d occurrences", len(cand.urls)),
				Details: truncateRaw(cand.block, 300),
			}},
			Tags: []string{"duplication"},
		})
	}
	return issues
}

// markdownParagraphs parses markdown and returns the text of every paragraph
func markdownParagraphs(markdown []byte) []string {
	if len(markdown) == 0 {
		return nil
	}
	reader := text.NewReader(markdown)
	parser := goldmark.DefaultParser()
	doc := parser.Parse(reader)

	var paragraphs []string
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if paragraph, ok := n.(*ast.Paragraph); ok {
			var buf bytes.Buffer
			for child := paragraph.FirstChild(); child != nil; child = child.NextSibling() {
				if textNode, ok := child.(*ast.Text); ok {
					buf.Write(textNode.Segment.Value(markdown))
					if textNode.SoftLineBreak() || textNode.HardLineBreak() {
						buf.WriteByte(' ')
					}
				}
			}
			if buf.Len() > 0 {
				paragraphs = append(paragraphs, buf.String())
			}
		}
		return ast.WalkContinue, nil
	})
	return paragraphs
}

// checkSitemapCanonicalConflicts reports sitemap entries whose crawled page
// canonicalizes to a different URL
func checkSitemapCanonicalConflicts(rc *RuleContext) []models.Issue {
	if len(rc.SitemapURLs) == 0 {
		return nil
	}
	byURL := make(map[string]*models.PageExtract, len(rc.Pages))
	for _, page := range rc.Pages {
		byURL[page.URL] = page
		byURL[page.FinalURL] = page
	}

	var evidence []models.Evidence
	var affected []string
	for _, sitemapURL := range rc.SitemapURLs {
		page, crawled := byURL[sitemapURL]
		if !crawled || !page.IsAvailable() || page.Canonical == "" {
			continue
		}
		if page.Canonical == page.FinalURL {
			continue
		}
		affected = append(affected, sitemapURL)
		evidence = append(evidence, models.Evidence{
			Type: "comparison", SourceURL: sitemapURL, TargetURL: page.Canonical,
			Message: "sitemap entry canonicalizes elsewhere",
		})
	}
	if len(affected) == 0 {
		return nil
	}
	sort.Strings(affected)
	return []models.Issue{{
		ID:           "sitemap_canonical_conflict",
		Category:     models.CategoryIndexing,
		Severity:     models.SeverityWarning,
		Rank:         5,
		Title:        "Sitemap entries canonicalize elsewhere",
		Description:  "URLs listed in the sitemap declare a canonical pointing to a different URL.",
		AffectedURLs: affected,
		Evidence:     evidence,
		Recommendation: "List only canonical URLs in the sitemap.",
		Tags:         []string{"indexing", "sitemap"},
	}}
}

// checkFocusInlinks compares the focus page's inlink count to its threshold
func checkFocusInlinks(rc *RuleContext) []models.Issue {
	if rc.FocusURL == "" || rc.MinFocusInlinks <= 0 {
		return nil
	}
	count := rc.Graph.FocusInlinksCount
	if count >= rc.MinFocusInlinks {
		return nil
	}
	return []models.Issue{{
		ID:           "focus_inlinks_low",
		Category:     models.CategoryLinks,
		Severity:     models.SeverityWarning,
		Rank:         7,
		Title:        "Focus page has too few internal links",
		Description:  "The focus page receives fewer internal links than the configured minimum.",
		AffectedURLs: []string{rc.FocusURL},
		Evidence: []models.Evidence{{
			Type: "sample", URL: rc.FocusURL,
			Message: fmt.Sprintf("%d inlinks, minimum %d", count, rc.MinFocusInlinks),
		}},
		Recommendation: "Add internal links from topically related pages; see the internal link plan.",
		Tags:           []string{"internal-links", "focus"},
	}}
}

// checkFocusAnchorQuality measures the share of generic anchors among the
// distinct link relationships pointing at the focus page
func checkFocusAnchorQuality(rc *RuleContext) []models.Issue {
	if rc.FocusURL == "" || rc.MaxGenericAnchorPercent <= 0 {
		return nil
	}
	anchors := rc.Graph.AnchorsByTarget[rc.FocusURL]
	if len(anchors) == 0 {
		return nil
	}
	lexicon := make(map[string]bool, len(rc.GenericAnchors))
	for _, anchor := range rc.GenericAnchors {
		lexicon[utils.NormalizeAnchor(anchor)] = true
	}

	total, generic := 0, 0
	for _, anchor := range anchors {
		total += anchor.Count
		if lexicon[anchor.Anchor] {
			generic += anchor.Count
		}
	}
	if total == 0 {
		return nil
	}
	percent := 100 * float64(generic) / float64(total)
	if percent <= rc.MaxGenericAnchorPercent {
		return nil
	}
	return []models.Issue{{
		ID:           "focus_anchor_quality",
		Category:     models.CategoryLinks,
		Severity:     models.SeverityWarning,
		Rank:         5,
		Title:        "Generic anchors dominate links to the focus page",
		Description:  "Too many internal links to the focus page use low-information anchor text.",
		AffectedURLs: []string{rc.FocusURL},
		Evidence: []models.Evidence{{
			Type: "sample", URL: rc.FocusURL,
			Message: fmt.Sprintf("%.1f%% generic anchors, threshold %.1f%%", percent, rc.MaxGenericAnchorPercent),
		}},
		Recommendation: "Replace generic anchors with descriptive, keyword-bearing text.",
		Tags:           []string{"internal-links", "focus"},
	}}
}
