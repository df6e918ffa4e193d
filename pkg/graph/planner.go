package graph

import (
	"sort"
	"strings"
	"unicode/utf8"

	"site-audit/pkg/models"
	"site-audit/pkg/utils"
)

const contextMaxLen = 180

// BuildLinkPlan proposes internal links pointing at the focus page. Candidate
// sources are crawled pages that do not already link to the focus page;
// they are scored by lexical overlap between their title+main-text and the
// focus keyword. Output is fully deterministic: score descending, then
// source URL ascending.
func BuildLinkPlan(pages []*models.PageExtract, focusURL, keyword string, limit int) []models.LinkPlanEntry {
	if focusURL == "" || keyword == "" || limit <= 0 {
		return nil
	}

	var focusTitle string
	finalByURL := make(map[string]string, len(pages))
	for _, page := range pages {
		if page.FinalURL == focusURL {
			focusTitle = page.Title
		}
		finalByURL[page.URL] = page.FinalURL
	}

	var entries []models.LinkPlanEntry
	for _, page := range pages {
		if !page.IsAvailable() || page.FinalURL == focusURL {
			continue
		}
		if linksTo(page, focusURL, finalByURL) {
			continue
		}

		content := page.Title + " " + page.MainText
		score := utils.TokenOverlap(content, keyword)
		if score == 0 {
			continue
		}

		entries = append(entries, models.LinkPlanEntry{
			SourceURL:                page.FinalURL,
			SuggestedAnchor:          suggestAnchor(content, keyword, focusTitle),
			SuggestedSentenceContext: suggestContext(page.MainText, keyword),
			Score:                    score,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].SourceURL < entries[j].SourceURL
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// linksTo reports whether the page already has an internal link to target,
// counting links to crawled aliases that redirect to it.
func linksTo(page *models.PageExtract, target string, finalByURL map[string]string) bool {
	for _, link := range page.OutlinksInternal {
		if link.TargetURL == target || finalByURL[link.TargetURL] == target {
			return true
		}
	}
	return false
}

// suggestAnchor uses the focus keyword itself when the candidate's content
// contains every keyword token, otherwise falls back to the focus page title.
func suggestAnchor(content, keyword, focusTitle string) string {
	if utils.TokenOverlap(content, keyword) >= 1.0 {
		return keyword
	}
	if focusTitle != "" {
		return focusTitle
	}
	return keyword
}

// suggestContext returns the first sentence of the candidate's main text that
// mentions a keyword token, truncated to a readable length.
func suggestContext(mainText, keyword string) string {
	keywordTokens := utils.TokenSet(keyword)
	for _, sentence := range splitSentences(mainText) {
		for token := range utils.TokenSet(sentence) {
			if _, ok := keywordTokens[token]; ok {
				return truncate(sentence, contextMaxLen)
			}
		}
	}
	return ""
}

// splitSentences performs a rough sentence split on terminal punctuation
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if idx := strings.LastIndexByte(s[:max], ' '); idx > 0 {
		return s[:idx] + "…"
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "…"
}
