package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-audit/pkg/extract"
	"site-audit/pkg/models"
)

// testContext returns a minimal valid RuleContext over the given pages
func testContext(pages ...*models.PageExtract) *RuleContext {
	return &RuleContext{
		Pages:                   pages,
		Graph:                   &models.InternalLinkGraph{Inlinks: map[string]int{}, AnchorsByTarget: map[string][]models.AnchorCount{}},
		ThinContentWords:        300,
		ServiceThinContentWords: 450,
		SERPChecks:              true,
	}
}

func healthyPage(finalURL string) *models.PageExtract {
	return &models.PageExtract{
		URL:             finalURL,
		FinalURL:        finalURL,
		Status:          200,
		Title:           "A perfectly sized page title for testing rules",
		MetaDescription: "A meta description long enough to satisfy the recommended bounds used by the description length check.",
		Canonical:       finalURL,
		Lang:            "en",
		Headings:        []models.Heading{{Level: 1, Text: "A perfectly sized page title for testing rules"}},
		Security:        models.SecurityFlags{HTTPS: true},
		MainText:        strings.Repeat("substantial words covering the topic at hand in depth ", 60),
		WordCount:       540,
	}
}

func issueIDs(issues []models.Issue) []string {
	ids := make([]string, 0, len(issues))
	for _, issue := range issues {
		ids = append(ids, issue.ID)
	}
	return ids
}

func TestEvaluatePage_HealthyPageIsQuiet(t *testing.T) {
	page := healthyPage("https://s.test/about")
	issues := evaluatePage(page, testContext(page))
	assert.Empty(t, issueIDs(issues))
}

func TestEvaluatePage_TitleAndDescription(t *testing.T) {
	page := healthyPage("https://s.test/p")
	page.Title = ""
	page.MetaDescription = "short"

	ids := issueIDs(evaluatePage(page, testContext(page)))
	assert.Contains(t, ids, "title_missing")
	assert.Contains(t, ids, "description_length")

	page.Title = "tiny"
	ids = issueIDs(evaluatePage(page, testContext(page)))
	assert.Contains(t, ids, "title_length")
	assert.NotContains(t, ids, "title_missing")
}

func TestEvaluatePage_NoindexIsError(t *testing.T) {
	page := healthyPage("https://s.test/p")
	page.MetaRobots = "noindex, follow"

	issues := evaluatePage(page, testContext(page))
	var noindex *models.Issue
	for i := range issues {
		if issues[i].ID == "meta_noindex" {
			noindex = &issues[i]
		}
	}
	require.NotNil(t, noindex)
	assert.Equal(t, models.SeverityError, noindex.Severity)
}

func TestEvaluatePage_RobotsConflict(t *testing.T) {
	page := healthyPage("https://s.test/p")
	page.MetaRobots = "index, follow"
	page.XRobotsTag = "noindex"

	ids := issueIDs(evaluatePage(page, testContext(page)))
	assert.Contains(t, ids, "robots_conflict")
	assert.Contains(t, ids, "meta_noindex", "the header noindex still blocks indexing")
}

func TestEvaluatePage_HTTPSMissingIsError(t *testing.T) {
	page := healthyPage("http://s.test/p")
	page.Security.HTTPS = false

	issues := evaluatePage(page, testContext(page))
	for _, issue := range issues {
		if issue.ID == "https_missing" {
			assert.Equal(t, models.SeverityError, issue.Severity)
			return
		}
	}
	t.Fatal("expected https_missing issue")
}

func TestEvaluatePage_HeadingChecks(t *testing.T) {
	page := healthyPage("https://s.test/p")
	page.Headings = []models.Heading{
		{Level: 1, Text: "A perfectly sized page title for testing rules"},
		{Level: 1, Text: "Second h1"},
		{Level: 4, Text: "Skipped to h4"},
	}

	ids := issueIDs(evaluatePage(page, testContext(page)))
	assert.Contains(t, ids, "h1_multiple")
	assert.Contains(t, ids, "heading_skip")

	page.Headings = nil
	ids = issueIDs(evaluatePage(page, testContext(page)))
	assert.Contains(t, ids, "h1_missing")
}

func TestEvaluatePage_TitleH1Mismatch(t *testing.T) {
	page := healthyPage("https://s.test/p")
	page.Headings = []models.Heading{{Level: 1, Text: "Completely unrelated wording here"}}

	ids := issueIDs(evaluatePage(page, testContext(page)))
	assert.Contains(t, ids, "title_h1_mismatch")
}

func TestEvaluatePage_CanonicalMismatch(t *testing.T) {
	page := healthyPage("https://s.test/p")
	page.Canonical = "https://s.test/other"

	ids := issueIDs(evaluatePage(page, testContext(page)))
	assert.Contains(t, ids, "canonical_mismatch")

	page.Canonical = ""
	ids = issueIDs(evaluatePage(page, testContext(page)))
	assert.Contains(t, ids, "canonical_missing")
}

func TestEvaluatePage_ThinContentServiceThreshold(t *testing.T) {
	// 400 words: above the generic threshold, below the service one
	content := healthyPage("https://s.test/blog/post")
	content.WordCount = 400
	assert.NotContains(t, issueIDs(evaluatePage(content, testContext(content))), "thin_content")

	service := healthyPage("https://s.test/services/plumbing")
	service.WordCount = 400
	ids := issueIDs(evaluatePage(service, testContext(service)))
	assert.Contains(t, ids, "thin_content", "service URLs use the stricter threshold")
}

func TestEvaluatePage_ServiceIntentToggle(t *testing.T) {
	page := healthyPage("https://s.test/services/plumbing")
	page.WordCount = 800
	page.MainText = "We fix pipes. " + strings.Repeat("more context ", 50)

	rc := testContext(page)
	ids := issueIDs(evaluatePage(page, rc))
	assert.Contains(t, ids, "service_intent_incomplete")

	rc.SERPChecks = false
	ids = issueIDs(evaluatePage(page, rc))
	assert.NotContains(t, ids, "service_intent_incomplete", "SERP checks are gated by the toggle")
}

func TestEvaluatePage_ServiceIntentComplete(t *testing.T) {
	page := healthyPage("https://s.test/services/plumbing")
	page.WordCount = 800
	page.MainText = "We work with homeowners. Our process: how it works in steps. " +
		"Pricing starts at a fixed fee. FAQ: frequently asked questions below. " +
		strings.Repeat("detail ", 100)

	ids := issueIDs(evaluatePage(page, testContext(page)))
	assert.NotContains(t, ids, "service_intent_incomplete")
}

func TestEvaluatePage_StructuredData(t *testing.T) {
	page := healthyPage("https://s.test/p")
	page.JSONLD = []models.JSONLDBlock{
		{Raw: "{bad", ParseErr: "invalid character 'b'"},
		{Raw: `{"@type":"Organization"}`, Parsed: map[string]any{"@type": "Organization"}, Types: []string{"Organization"}},
	}

	ids := issueIDs(evaluatePage(page, testContext(page)))
	assert.Contains(t, ids, "jsonld_invalid")
	assert.Contains(t, ids, "organization_schema_incomplete")
}

func TestEvaluatePage_Accessibility(t *testing.T) {
	page := healthyPage("https://s.test/p")
	page.Lang = ""
	page.UnlabeledLinks = 2
	page.Images = models.ImageStats{Total: 3, MissingAlt: 1}

	ids := issueIDs(evaluatePage(page, testContext(page)))
	assert.Contains(t, ids, "lang_missing")
	assert.Contains(t, ids, "unlabeled_links")
	assert.Contains(t, ids, "weak_alt_text")
}

func TestEvaluatePage_UnavailablePageSkipsChecks(t *testing.T) {
	page := &models.PageExtract{URL: "https://s.test/gone", FinalURL: "https://s.test/gone", Status: 404}
	assert.Empty(t, evaluatePage(page, testContext(page)))
}

func TestEvaluatePage_NonHTMLAssetSkipsChecks(t *testing.T) {
	// a linked PDF fetches with 200 but never yields an auditable record
	asset := extract.FailedExtract("https://s.test/brochure.pdf", 1, 200,
		errors.New("non-HTML content type application/pdf"))
	assert.False(t, asset.IsAvailable())
	assert.Empty(t, evaluatePage(asset, testContext(asset)))
}

func TestRuleContextValidate(t *testing.T) {
	rc := testContext(healthyPage("https://s.test/"))
	assert.NoError(t, rc.Validate())

	rc.Graph = nil
	assert.Error(t, rc.Validate())

	rc = testContext(nil)
	assert.Error(t, rc.Validate())

	rc = testContext(healthyPage("https://s.test/"))
	rc.ThinContentWords = 0
	assert.Error(t, rc.Validate())
}
