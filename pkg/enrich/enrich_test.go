package enrich

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-audit/pkg/models"
)

func TestParseProposalsValid(t *testing.T) {
	reply := `[
		{"kind": "rewrite_title", "url": "https://example.com/a", "issue_id": "title_length", "text": "Emergency Plumber Berlin | 24h Service"},
		{"kind": "add_link", "url": "https://example.com/blog/post", "text": "Link to /services/plumbing with anchor 'emergency plumber'"}
	]`

	proposals, dropped := ParseProposals(reply, 5)
	require.Len(t, proposals, 2)
	assert.Zero(t, dropped)
	assert.Equal(t, ProposalRewriteTitle, proposals[0].Kind)
	assert.Equal(t, "title_length", proposals[0].IssueID)
	assert.Equal(t, ProposalAddLink, proposals[1].Kind)
}

func TestParseProposalsDiscardsMalformed(t *testing.T) {
	reply := `[
		{"kind": "rewrite_title", "url": "https://example.com/a", "text": "Good title"},
		{"kind": "delete_everything", "url": "https://example.com/a", "text": "nope"},
		{"kind": "add_link", "url": "", "text": "missing url"},
		{"kind": "rewrite_description", "url": "https://example.com/b", "text": "   "},
		{"kind": "edit_content", "url": "https://example.com/c", "text": "Add a pricing section."}
	]`

	proposals, dropped := ParseProposals(reply, 10)
	require.Len(t, proposals, 2)
	assert.Equal(t, 3, dropped)
	assert.Equal(t, "https://example.com/c", proposals[1].URL)
}

func TestParseProposalsCodeFence(t *testing.T) {
	reply := "```json\n[{\"kind\": \"rewrite_title\", \"url\": \"https://example.com/\", \"text\": \"New title\"}]\n```"

	proposals, dropped := ParseProposals(reply, 5)
	require.Len(t, proposals, 1)
	assert.Zero(t, dropped)
	assert.Equal(t, "New title", proposals[0].Text)
}

func TestParseProposalsSurroundingProse(t *testing.T) {
	reply := `Here are my suggestions:

[{"kind": "rewrite_description", "url": "https://example.com/", "text": "Fast local plumbing help."}]

Let me know if you need more.`

	proposals, _ := ParseProposals(reply, 5)
	require.Len(t, proposals, 1)
	assert.Equal(t, ProposalRewriteDescription, proposals[0].Kind)
}

func TestParseProposalsNotJSON(t *testing.T) {
	proposals, dropped := ParseProposals("I cannot help with that.", 5)
	assert.Nil(t, proposals)
	assert.Equal(t, 1, dropped)
}

func TestParseProposalsCap(t *testing.T) {
	var entries []string
	for i := 0; i < 8; i++ {
		entries = append(entries, `{"kind": "edit_content", "url": "https://example.com/", "text": "Fix something."}`)
	}
	reply := "[" + strings.Join(entries, ",") + "]"

	proposals, _ := ParseProposals(reply, 3)
	assert.Len(t, proposals, 3)
}

func TestBuildPromptContents(t *testing.T) {
	report := &models.Report{
		Inputs: models.RunInputs{StartURL: "https://example.com/"},
		Issues: []models.Issue{
			{ID: "h1_missing", Severity: models.SeverityWarning, Title: "Missing H1",
				AffectedURLs: []string{"https://example.com/a"}},
		},
		InternalLinkPlan: []models.LinkPlanEntry{
			{SourceURL: "https://example.com/blog", SuggestedAnchor: "emergency plumber"},
		},
	}

	prompt := buildPrompt(report)
	assert.Contains(t, prompt, "https://example.com/")
	assert.Contains(t, prompt, "h1_missing")
	assert.Contains(t, prompt, "emergency plumber")
	assert.Contains(t, prompt, "JSON array")
}
