package rules

import (
	"fmt"
	"net/url"
	"strings"

	"site-audit/pkg/models"
	"site-audit/pkg/utils"
)

// Length bounds for SERP snippets
const (
	titleMinLen       = 30
	titleMaxLen       = 60
	descriptionMinLen = 70
	descriptionMaxLen = 155
)

// titleH1SimilarityThreshold is the token-Jaccard floor below which a title
// and H1 are considered semantically mismatched
const titleH1SimilarityThreshold = 0.3

// serviceIntentSections are the content sections a service-like page is
// expected to cover, with the keyword heuristics that detect them
var serviceIntentSections = []struct {
	name     string
	keywords []string
}{
	{"target audience", []string{"for whom", "who is this for", "we work with", "our clients"}},
	{"process", []string{"process", "how it works", "how we work", "step by step", "our approach"}},
	{"pricing", []string{"price", "pricing", "cost", "costs", "fee", "rates", "quote"}},
	{"faq", []string{"faq", "frequently asked", "common questions"}},
}

type pageCheck func(page *models.PageExtract, rc *RuleContext) []models.Issue

var pageChecks = []pageCheck{
	checkTitle,
	checkDescription,
	checkHeadings,
	checkTitleH1Mismatch,
	checkCanonical,
	checkRobotsDirectives,
	checkHTTPS,
	checkMixedContent,
	checkSecurityHeaders,
	checkJSONLD,
	checkOrganizationSchema,
	checkBreadcrumbSchema,
	checkAccessibility,
	checkThinContent,
	checkServiceIntent,
}

// evaluatePage runs every synchronous check against one available page.
// Pages whose fetch failed are covered by the availability check alone.
func evaluatePage(page *models.PageExtract, rc *RuleContext) []models.Issue {
	if !page.IsAvailable() {
		return nil // reported site-wide by the availability check
	}
	var issues []models.Issue
	for _, check := range pageChecks {
		issues = append(issues, check(page, rc)...)
	}
	return issues
}

func checkTitle(page *models.PageExtract, _ *RuleContext) []models.Issue {
	if page.Title == "" {
		return []models.Issue{{
			ID:           "title_missing",
			Category:     models.CategoryContent,
			Severity:     models.SeverityError,
			Rank:         9,
			Title:        "Missing page title",
			Description:  "The page has no <title> element or it is empty.",
			AffectedURLs: []string{page.FinalURL},
			Recommendation: "Add a unique, descriptive title of 30-60 characters.",
			Tags:         []string{"serp", "on-page"},
		}}
	}
	length := len([]rune(page.Title))
	if length < titleMinLen || length > titleMaxLen {
		return []models.Issue{{
			ID:          "title_length",
			Category:    models.CategoryContent,
			Severity:    models.SeverityWarning,
			Rank:        5,
			Title:       "Title length outside recommended bounds",
			Description: fmt.Sprintf("Page titles should be %d-%d characters long.", titleMinLen, titleMaxLen),
			AffectedURLs: []string{page.FinalURL},
			Evidence: []models.Evidence{{
				Type: "sample", URL: page.FinalURL,
				Message: fmt.Sprintf("title is %d characters", length),
				Details: page.Title,
			}},
			Recommendation: "Rewrite the title to fit the recommended length.",
			Tags:           []string{"serp", "on-page"},
		}}
	}
	return nil
}

func checkDescription(page *models.PageExtract, _ *RuleContext) []models.Issue {
	if page.MetaDescription == "" {
		return []models.Issue{{
			ID:           "description_missing",
			Category:     models.CategoryContent,
			Severity:     models.SeverityWarning,
			Rank:         7,
			Title:        "Missing meta description",
			Description:  "The page has no meta description.",
			AffectedURLs: []string{page.FinalURL},
			Recommendation: "Add a meta description of 70-155 characters summarizing the page.",
			Tags:         []string{"serp", "on-page"},
		}}
	}
	length := len([]rune(page.MetaDescription))
	if length < descriptionMinLen || length > descriptionMaxLen {
		return []models.Issue{{
			ID:          "description_length",
			Category:    models.CategoryContent,
			Severity:    models.SeverityNotice,
			Rank:        3,
			Title:       "Meta description length outside recommended bounds",
			Description: fmt.Sprintf("Meta descriptions should be %d-%d characters long.", descriptionMinLen, descriptionMaxLen),
			AffectedURLs: []string{page.FinalURL},
			Evidence: []models.Evidence{{
				Type: "sample", URL: page.FinalURL,
				Message: fmt.Sprintf("description is %d characters", length),
			}},
			Tags: []string{"serp", "on-page"},
		}}
	}
	return nil
}

func checkHeadings(page *models.PageExtract, _ *RuleContext) []models.Issue {
	var issues []models.Issue

	h1Count := 0
	for _, h := range page.Headings {
		if h.Level == 1 {
			h1Count++
		}
	}
	switch {
	case h1Count == 0:
		issues = append(issues, models.Issue{
			ID:           "h1_missing",
			Category:     models.CategoryContent,
			Severity:     models.SeverityWarning,
			Rank:         6,
			Title:        "Missing H1 heading",
			Description:  "The page has no H1 heading.",
			AffectedURLs: []string{page.FinalURL},
			Recommendation: "Add exactly one H1 that states the page topic.",
			Tags:         []string{"on-page", "structure"},
		})
	case h1Count > 1:
		issues = append(issues, models.Issue{
			ID:           "h1_multiple",
			Category:     models.CategoryContent,
			Severity:     models.SeverityNotice,
			Rank:         3,
			Title:        "Multiple H1 headings",
			Description:  "The page has more than one H1 heading.",
			AffectedURLs: []string{page.FinalURL},
			Evidence: []models.Evidence{{
				Type: "sample", URL: page.FinalURL,
				Message: fmt.Sprintf("%d H1 headings found", h1Count),
			}},
			Tags: []string{"on-page", "structure"},
		})
	}

	prevLevel := 0
	for _, h := range page.Headings {
		if prevLevel > 0 && h.Level > prevLevel+1 {
			issues = append(issues, models.Issue{
				ID:           "heading_skip",
				Category:     models.CategoryContent,
				Severity:     models.SeverityNotice,
				Rank:         2,
				Title:        "Heading level skipped",
				Description:  "The heading outline skips one or more levels.",
				AffectedURLs: []string{page.FinalURL},
				Evidence: []models.Evidence{{
					Type: "sample", URL: page.FinalURL,
					Message: fmt.Sprintf("h%d follows h%d", h.Level, prevLevel),
					Details: h.Text,
				}},
				Tags: []string{"structure", "accessibility"},
			})
			break // one report per page is enough
		}
		prevLevel = h.Level
	}
	return issues
}

func checkTitleH1Mismatch(page *models.PageExtract, _ *RuleContext) []models.Issue {
	if page.Title == "" {
		return nil
	}
	var h1 string
	for _, h := range page.Headings {
		if h.Level == 1 {
			h1 = h.Text
			break
		}
	}
	if h1 == "" {
		return nil
	}
	similarity := utils.JaccardSimilarity(page.Title, h1)
	if similarity >= titleH1SimilarityThreshold {
		return nil
	}
	return []models.Issue{{
		ID:           "title_h1_mismatch",
		Category:     models.CategoryContent,
		Severity:     models.SeverityNotice,
		Rank:         3,
		Title:        "Title and H1 diverge semantically",
		Description:  "The page title and its H1 share too few terms to target the same topic.",
		AffectedURLs: []string{page.FinalURL},
		Evidence: []models.Evidence{{
			Type: "comparison", URL: page.FinalURL,
			Message: fmt.Sprintf("token similarity %.2f", similarity),
			Details: fmt.Sprintf("title=%q h1=%q", page.Title, h1),
		}},
		Tags: []string{"on-page"},
	}}
}

func checkCanonical(page *models.PageExtract, _ *RuleContext) []models.Issue {
	if page.Canonical == "" {
		return []models.Issue{{
			ID:           "canonical_missing",
			Category:     models.CategoryIndexing,
			Severity:     models.SeverityNotice,
			Rank:         4,
			Title:        "Missing canonical link",
			Description:  "The page declares no canonical URL.",
			AffectedURLs: []string{page.FinalURL},
			Recommendation: "Add a self-referencing rel=canonical link.",
			Tags:         []string{"indexing"},
		}}
	}
	if page.Canonical != page.FinalURL {
		return []models.Issue{{
			ID:           "canonical_mismatch",
			Category:     models.CategoryIndexing,
			Severity:     models.SeverityWarning,
			Rank:         6,
			Title:        "Canonical points to a different URL",
			Description:  "The page canonicalizes to a URL other than itself.",
			AffectedURLs: []string{page.FinalURL},
			Evidence: []models.Evidence{{
				Type: "comparison", SourceURL: page.FinalURL, TargetURL: page.Canonical,
				Message: "canonical target differs from the page URL",
			}},
			Tags: []string{"indexing"},
		}}
	}
	return nil
}

func checkRobotsDirectives(page *models.PageExtract, _ *RuleContext) []models.Issue {
	var issues []models.Issue

	metaNoindex := strings.Contains(page.MetaRobots, "noindex")
	headerNoindex := strings.Contains(page.XRobotsTag, "noindex")

	if metaNoindex || headerNoindex {
		source := "meta robots"
		if headerNoindex {
			source = "X-Robots-Tag header"
		}
		issues = append(issues, models.Issue{
			ID:           "meta_noindex",
			Category:     models.CategoryIndexing,
			Severity:     models.SeverityError,
			Rank:         10,
			Title:        "Page is blocked from indexing",
			Description:  "A noindex directive excludes this page from search results.",
			AffectedURLs: []string{page.FinalURL},
			Evidence: []models.Evidence{{
				Type: "sample", URL: page.FinalURL,
				Message: "noindex via " + source,
			}},
			Recommendation: "Remove the noindex directive if the page should rank.",
			Tags:           []string{"indexing", "critical"},
		})
	}

	if page.MetaRobots != "" && page.XRobotsTag != "" && metaNoindex != headerNoindex {
		issues = append(issues, models.Issue{
			ID:           "robots_conflict",
			Category:     models.CategoryIndexing,
			Severity:     models.SeverityWarning,
			Rank:         6,
			Title:        "Conflicting robots directives",
			Description:  "The meta robots tag and the X-Robots-Tag header disagree about indexing.",
			AffectedURLs: []string{page.FinalURL},
			Evidence: []models.Evidence{{
				Type: "comparison", URL: page.FinalURL,
				Details: fmt.Sprintf("meta=%q header=%q", page.MetaRobots, page.XRobotsTag),
			}},
			Tags: []string{"indexing"},
		})
	}
	return issues
}

func checkHTTPS(page *models.PageExtract, _ *RuleContext) []models.Issue {
	if page.Security.HTTPS {
		return nil
	}
	return []models.Issue{{
		ID:           "https_missing",
		Category:     models.CategorySecurity,
		Severity:     models.SeverityError,
		Rank:         9,
		Title:        "Page served over plain HTTP",
		Description:  "The page is not served over HTTPS.",
		AffectedURLs: []string{page.FinalURL},
		Recommendation: "Serve all pages over HTTPS and redirect HTTP traffic.",
		Tags:         []string{"security", "critical"},
	}}
}

func checkMixedContent(page *models.PageExtract, _ *RuleContext) []models.Issue {
	if len(page.Security.MixedContent) == 0 {
		return nil
	}
	evidence := make([]models.Evidence, 0, len(page.Security.MixedContent))
	for _, resource := range page.Security.MixedContent {
		evidence = append(evidence, models.Evidence{
			Type: "sample", SourceURL: page.FinalURL, TargetURL: resource,
			Message: "insecure resource on a secure page",
		})
	}
	return []models.Issue{{
		ID:           "mixed_content",
		Category:     models.CategorySecurity,
		Severity:     models.SeverityWarning,
		Rank:         7,
		Title:        "Mixed content on HTTPS page",
		Description:  "The page loads sub-resources over plain HTTP.",
		AffectedURLs: []string{page.FinalURL},
		Evidence:     evidence,
		Recommendation: "Load every sub-resource over HTTPS.",
		Tags:         []string{"security"},
	}}
}

func checkSecurityHeaders(page *models.PageExtract, _ *RuleContext) []models.Issue {
	if len(page.Security.MissingHeaders) == 0 {
		return nil
	}
	return []models.Issue{{
		ID:           "security_headers_missing",
		Category:     models.CategorySecurity,
		Severity:     models.SeverityNotice,
		Rank:         2,
		Title:        "Security response headers missing",
		Description:  "Recommended security headers are absent from the response.",
		AffectedURLs: []string{page.FinalURL},
		Evidence: []models.Evidence{{
			Type: "sample", URL: page.FinalURL,
			Details: strings.Join(page.Security.MissingHeaders, ", "),
		}},
		Tags: []string{"security"},
	}}
}

func checkJSONLD(page *models.PageExtract, _ *RuleContext) []models.Issue {
	var evidence []models.Evidence
	for _, block := range page.JSONLD {
		if block.ParseErr != "" {
			evidence = append(evidence, models.Evidence{
				Type: "sample", URL: page.FinalURL,
				Message: block.ParseErr,
				Details: truncateRaw(block.Raw, 200),
			})
		}
	}
	if len(evidence) == 0 {
		return nil
	}
	return []models.Issue{{
		ID:           "jsonld_invalid",
		Category:     models.CategoryStructured,
		Severity:     models.SeverityWarning,
		Rank:         5,
		Title:        "Invalid JSON-LD block",
		Description:  "One or more structured-data blocks fail to parse.",
		AffectedURLs: []string{page.FinalURL},
		Evidence:     evidence,
		Recommendation: "Fix the JSON syntax of the affected ld+json blocks.",
		Tags:         []string{"structured-data"},
	}}
}

func checkOrganizationSchema(page *models.PageExtract, _ *RuleContext) []models.Issue {
	for _, block := range page.JSONLD {
		if block.Parsed == nil || !hasType(block.Types, "Organization") {
			continue
		}
		var missing []string
		for _, field := range []string{"name", "url"} {
			if !fieldPresent(block.Parsed, field) {
				missing = append(missing, field)
			}
		}
		if len(missing) == 0 {
			continue
		}
		return []models.Issue{{
			ID:           "organization_schema_incomplete",
			Category:     models.CategoryStructured,
			Severity:     models.SeverityNotice,
			Rank:         3,
			Title:        "Organization schema missing fields",
			Description:  "The Organization structured data omits recommended fields.",
			AffectedURLs: []string{page.FinalURL},
			Evidence: []models.Evidence{{
				Type: "sample", URL: page.FinalURL,
				Details: "missing: " + strings.Join(missing, ", "),
			}},
			Tags: []string{"structured-data"},
		}}
	}
	return nil
}

func checkBreadcrumbSchema(page *models.PageExtract, _ *RuleContext) []models.Issue {
	for _, block := range page.JSONLD {
		if block.Parsed == nil || !hasType(block.Types, "BreadcrumbList") {
			continue
		}
		items, ok := block.Parsed["itemListElement"].([]any)
		if ok && len(items) > 0 {
			continue
		}
		return []models.Issue{{
			ID:           "breadcrumb_schema_incomplete",
			Category:     models.CategoryStructured,
			Severity:     models.SeverityNotice,
			Rank:         2,
			Title:        "Breadcrumb schema has no items",
			Description:  "The BreadcrumbList structured data declares no itemListElement entries.",
			AffectedURLs: []string{page.FinalURL},
			Tags:         []string{"structured-data"},
		}}
	}
	return nil
}

func checkAccessibility(page *models.PageExtract, _ *RuleContext) []models.Issue {
	var issues []models.Issue

	if page.Lang == "" {
		issues = append(issues, models.Issue{
			ID:           "lang_missing",
			Category:     models.CategoryAccessibility,
			Severity:     models.SeverityNotice,
			Rank:         3,
			Title:        "Missing lang attribute",
			Description:  "The <html> element declares no language.",
			AffectedURLs: []string{page.FinalURL},
			Tags:         []string{"accessibility"},
		})
	}

	if page.UnlabeledLinks > 0 {
		issues = append(issues, models.Issue{
			ID:           "unlabeled_links",
			Category:     models.CategoryAccessibility,
			Severity:     models.SeverityWarning,
			Rank:         4,
			Title:        "Links without accessible labels",
			Description:  "Some links expose no text, aria-label, title or image alt to assistive technology.",
			AffectedURLs: []string{page.FinalURL},
			Evidence: []models.Evidence{{
				Type: "sample", URL: page.FinalURL,
				Message: fmt.Sprintf("%d unlabeled links", page.UnlabeledLinks),
			}},
			Tags: []string{"accessibility"},
		})
	}

	if page.Images.MissingAlt > 0 || page.Images.WeakAlt > 0 {
		issues = append(issues, models.Issue{
			ID:           "weak_alt_text",
			Category:     models.CategoryAccessibility,
			Severity:     models.SeverityNotice,
			Rank:         3,
			Title:        "Images with missing or weak alt text",
			Description:  "Images lack alt text or use alt text too generic to describe them.",
			AffectedURLs: []string{page.FinalURL},
			Evidence: []models.Evidence{{
				Type: "sample", URL: page.FinalURL,
				Message: fmt.Sprintf("%d missing, %d weak of %d images", page.Images.MissingAlt, page.Images.WeakAlt, page.Images.Total),
			}},
			Tags: []string{"accessibility"},
		})
	}
	return issues
}

func checkThinContent(page *models.PageExtract, rc *RuleContext) []models.Issue {
	threshold := rc.ThinContentWords
	service := isServicePath(page.FinalURL)
	if service {
		threshold = rc.ServiceThinContentWords
	}
	if page.WordCount >= threshold {
		return nil
	}
	description := fmt.Sprintf("The page body holds fewer than %d words.", threshold)
	if service {
		description = fmt.Sprintf("Service pages should hold at least %d words; this page falls short.", threshold)
	}
	return []models.Issue{{
		ID:           "thin_content",
		Category:     models.CategoryContent,
		Severity:     models.SeverityWarning,
		Rank:         6,
		Title:        "Thin content",
		Description:  description,
		AffectedURLs: []string{page.FinalURL},
		Evidence: []models.Evidence{{
			Type: "sample", URL: page.FinalURL,
			Message: fmt.Sprintf("%d words, threshold %d", page.WordCount, threshold),
		}},
		Recommendation: "Expand the page with substantive, topic-relevant content.",
		Tags:           []string{"content"},
	}}
}

func checkServiceIntent(page *models.PageExtract, rc *RuleContext) []models.Issue {
	if !rc.SERPChecks || !isServicePath(page.FinalURL) {
		return nil
	}
	haystack := strings.ToLower(page.MainText)
	var missing []string
	for _, section := range serviceIntentSections {
		found := false
		for _, keyword := range section.keywords {
			if strings.Contains(haystack, keyword) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, section.name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return []models.Issue{{
		ID:           "service_intent_incomplete",
		Category:     models.CategoryContent,
		Severity:     models.SeverityNotice,
		Rank:         4,
		Title:        "Service page misses expected sections",
		Description:  "Service pages convert better when they address audience, process, pricing and FAQs.",
		AffectedURLs: []string{page.FinalURL},
		Evidence: []models.Evidence{{
			Type: "sample", URL: page.FinalURL,
			Details: "missing sections: " + strings.Join(missing, ", "),
		}},
		Tags: []string{"content", "serp"},
	}}
}

// isServicePath recognizes the URL shape of a service page
func isServicePath(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, segment := range strings.Split(strings.ToLower(parsed.Path), "/") {
		switch segment {
		case "service", "services", "leistung", "leistungen":
			return true
		}
	}
	return false
}

func hasType(types []string, want string) bool {
	for _, typ := range types {
		if typ == want {
			return true
		}
	}
	return false
}

func fieldPresent(obj map[string]any, field string) bool {
	value, ok := obj[field]
	if !ok {
		return false
	}
	if s, isString := value.(string); isString {
		return strings.TrimSpace(s) != ""
	}
	return value != nil
}

func truncateRaw(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
