package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"site-audit/pkg/config"
	"site-audit/pkg/models"
)

// maxPromptIssues caps how many ranked issues are included in the prompt
const maxPromptIssues = 15

// Proposal kinds the model may emit; anything else is discarded
const (
	ProposalRewriteTitle       = "rewrite_title"
	ProposalRewriteDescription = "rewrite_description"
	ProposalAddLink            = "add_link"
	ProposalEditContent        = "edit_content"
)

var validProposalKinds = map[string]bool{
	ProposalRewriteTitle:       true,
	ProposalRewriteDescription: true,
	ProposalAddLink:            true,
	ProposalEditContent:        true,
}

// Proposal is one validated improvement suggestion produced by the model
type Proposal struct {
	Kind    string `json:"kind"`
	URL     string `json:"url"`
	IssueID string `json:"issue_id,omitempty"`
	Text    string `json:"text"`
}

// Enricher asks an LLM for concrete fix proposals based on a completed
// report. It is an optional collaborator: callers treat any error as a
// logged degradation, never as a run failure.
type Enricher struct {
	model        llms.Model
	maxProposals int
	log          *logrus.Entry
}

// New builds an Enricher from the enrichment config. The OpenAI API key is
// taken from the environment by the client itself.
func New(cfg config.EnrichmentConfig, log *logrus.Entry) (*Enricher, error) {
	llm, err := openai.New(openai.WithModel(cfg.Model))
	if err != nil {
		return nil, fmt.Errorf("init enrichment model: %w", err)
	}
	return &Enricher{model: llm, maxProposals: cfg.MaxProposals, log: log}, nil
}

// Enrich prompts the model with the report's top issues and link plan and
// returns the validated proposals. Malformed entries in the reply are
// dropped, not propagated.
func (e *Enricher) Enrich(ctx context.Context, report *models.Report) ([]Proposal, error) {
	prompt := buildPrompt(report)
	reply, err := llms.GenerateFromSinglePrompt(ctx, e.model, prompt)
	if err != nil {
		return nil, fmt.Errorf("enrichment generation: %w", err)
	}

	proposals, dropped := ParseProposals(reply, e.maxProposals)
	if dropped > 0 {
		e.log.WithFields(logrus.Fields{"kept": len(proposals), "dropped": dropped}).
			Warn("Discarded malformed enrichment proposals")
	}
	return proposals, nil
}

func buildPrompt(report *models.Report) string {
	var b strings.Builder
	b.WriteString("You are reviewing an SEO audit of ")
	b.WriteString(report.Inputs.StartURL)
	b.WriteString(".\n\nTop issues:\n")

	issues := report.Issues
	if len(issues) > maxPromptIssues {
		issues = issues[:maxPromptIssues]
	}
	for _, issue := range issues {
		fmt.Fprintf(&b, "- [%s/%s] %s", issue.Severity, issue.ID, issue.Title)
		if len(issue.AffectedURLs) > 0 {
			fmt.Fprintf(&b, " (e.g. %s)", issue.AffectedURLs[0])
		}
		b.WriteString("\n")
	}

	if len(report.InternalLinkPlan) > 0 {
		b.WriteString("\nPlanned internal links:\n")
		for _, entry := range report.InternalLinkPlan {
			fmt.Fprintf(&b, "- link from %s using anchor %q\n", entry.SourceURL, entry.SuggestedAnchor)
		}
	}

	b.WriteString("\nPropose concrete fixes as a JSON array. Each element must be an object with fields ")
	b.WriteString(`"kind" (one of rewrite_title, rewrite_description, add_link, edit_content), `)
	b.WriteString(`"url" (the affected page), optional "issue_id", and "text" (the proposed content). `)
	b.WriteString("Reply with the JSON array only.\n")
	return b.String()
}

// ParseProposals extracts and validates proposals from a model reply.
// Returns the kept proposals and the number of discarded entries. The reply
// may wrap the JSON array in a markdown code fence.
func ParseProposals(reply string, max int) ([]Proposal, int) {
	payload := stripCodeFence(reply)

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, 1
	}

	var proposals []Proposal
	dropped := 0
	for _, item := range raw {
		var p Proposal
		if err := json.Unmarshal(item, &p); err != nil {
			dropped++
			continue
		}
		if !validProposalKinds[p.Kind] || p.URL == "" || strings.TrimSpace(p.Text) == "" {
			dropped++
			continue
		}
		proposals = append(proposals, p)
		if max > 0 && len(proposals) >= max {
			break
		}
	}
	return proposals, dropped
}

// stripCodeFence removes a surrounding ```json fence, if present, and
// otherwise isolates the outermost JSON array
func stripCodeFence(reply string) string {
	trimmed := strings.TrimSpace(reply)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		return strings.TrimSpace(trimmed)
	}
	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start >= 0 && end > start {
		return trimmed[start : end+1]
	}
	return trimmed
}
