package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"site-audit/pkg/models"
	"site-audit/pkg/utils"
)

// maxEvidencePerIssue caps how many evidence lines the markdown shows per issue
const maxEvidencePerIssue = 10

// Write persists the report into a per-run directory under outputDir as
// report.json and report.md. The JSON file is written via a temp file and
// rename so an interrupted run never leaves a partial report.json behind.
// Returns the run directory path.
func Write(report *models.Report, outputDir string, log *logrus.Logger) (string, error) {
	runDir := filepath.Join(outputDir, report.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", utils.WrapErrorf(utils.ErrReportWrite, "create run dir: %v", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", utils.WrapErrorf(utils.ErrReportWrite, "marshal report: %v", err)
	}

	mdPath := filepath.Join(runDir, "report.md")
	if err := os.WriteFile(mdPath, []byte(RenderMarkdown(report)), 0o644); err != nil {
		return "", utils.WrapErrorf(utils.ErrReportWrite, "write report.md: %v", err)
	}

	jsonPath := filepath.Join(runDir, "report.json")
	tmpPath := jsonPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return "", utils.WrapErrorf(utils.ErrReportWrite, "write report.json: %v", err)
	}
	if err := os.Rename(tmpPath, jsonPath); err != nil {
		os.Remove(tmpPath)
		return "", utils.WrapErrorf(utils.ErrReportWrite, "finalize report.json: %v", err)
	}

	log.WithFields(logrus.Fields{"run_id": report.RunID, "dir": runDir}).Info("Report written")
	return runDir, nil
}

// RenderMarkdown renders a human-readable report document
func RenderMarkdown(report *models.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Site Audit Report\n\n")
	fmt.Fprintf(&b, "- **Run:** %s\n", report.RunID)
	fmt.Fprintf(&b, "- **Start URL:** %s\n", report.Inputs.StartURL)
	fmt.Fprintf(&b, "- **Coverage:** %s\n", report.Inputs.Coverage)
	fmt.Fprintf(&b, "- **Finished:** %s\n\n", report.FinishedAt.Format("2006-01-02 15:04:05 MST"))

	renderSummary(&b, report)
	renderIssues(&b, report.Issues)
	renderLinkPlan(&b, report.InternalLinkPlan)

	return b.String()
}

func renderSummary(b *strings.Builder, report *models.Report) {
	s := report.Summary
	fmt.Fprintf(b, "## Summary\n\n")
	fmt.Fprintf(b, "| | |\n|---|---|\n")
	fmt.Fprintf(b, "| Score | %d / 100 |\n", s.Score)
	fmt.Fprintf(b, "| Pages crawled | %d |\n", s.PagesCrawled)
	for _, severity := range []string{models.SeverityError, models.SeverityWarning, models.SeverityNotice} {
		if n := s.IssueCounts[severity]; n > 0 {
			fmt.Fprintf(b, "| Issues (%s) | %d |\n", severity, n)
		}
	}
	fmt.Fprintf(b, "| Avg words per page | %d |\n", s.Performance.AvgWordCount)
	if s.Performance.TotalTokenCount > 0 {
		fmt.Fprintf(b, "| Total tokens | %d |\n", s.Performance.TotalTokenCount)
	}
	fmt.Fprintln(b)

	if len(s.CategoryCounts) > 0 {
		categories := make([]string, 0, len(s.CategoryCounts))
		for category := range s.CategoryCounts {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		fmt.Fprintf(b, "**Issues by category:** ")
		parts := make([]string, 0, len(categories))
		for _, category := range categories {
			parts = append(parts, fmt.Sprintf("%s %d", category, s.CategoryCounts[category]))
		}
		fmt.Fprintf(b, "%s\n\n", strings.Join(parts, ", "))
	}

	links := s.InternalLinks
	fmt.Fprintf(b, "### Internal links\n\n")
	fmt.Fprintf(b, "- Distinct inlink relationships: %d\n", links.TotalInlinkRelationships)
	fmt.Fprintf(b, "- Orphan pages: %d, near-orphan: %d\n", len(links.OrphanPages), len(links.NearOrphanPages))
	fmt.Fprintf(b, "- Nav-likely %.1f%%, generic anchors %.1f%%, empty anchors %.1f%%\n\n",
		links.NavLikelyPercent, links.GenericAnchorPercent, links.EmptyAnchorPercent)

	if s.Focus != nil {
		fmt.Fprintf(b, "### Focus page\n\n")
		fmt.Fprintf(b, "- URL: %s\n", s.Focus.URL)
		fmt.Fprintf(b, "- Inlinks: %d, word count: %d\n", s.Focus.InlinksCount, s.Focus.WordCount)
		for _, anchor := range s.Focus.TopAnchors {
			label := anchor.Anchor
			if label == "" {
				label = "(empty)"
			}
			fmt.Fprintf(b, "- Anchor %q x%d\n", label, anchor.Count)
		}
		fmt.Fprintln(b)
	}
}

func renderIssues(b *strings.Builder, issues []models.Issue) {
	fmt.Fprintf(b, "## Issues (%d)\n\n", len(issues))
	if len(issues) == 0 {
		fmt.Fprintf(b, "No issues found.\n\n")
		return
	}
	for _, issue := range issues {
		fmt.Fprintf(b, "### [%s] %s\n\n", strings.ToUpper(issue.Severity), issue.Title)
		fmt.Fprintf(b, "`%s` · %s · rank %d\n\n", issue.ID, issue.Category, issue.Rank)
		if issue.Description != "" {
			fmt.Fprintf(b, "%s\n\n", issue.Description)
		}
		if len(issue.AffectedURLs) > 0 {
			fmt.Fprintf(b, "**Affected (%d):**\n", len(issue.AffectedURLs))
			for _, u := range issue.AffectedURLs {
				fmt.Fprintf(b, "- %s\n", u)
			}
			fmt.Fprintln(b)
		}
		if len(issue.Evidence) > 0 {
			shown := issue.Evidence
			truncated := 0
			if len(shown) > maxEvidencePerIssue {
				truncated = len(shown) - maxEvidencePerIssue
				shown = shown[:maxEvidencePerIssue]
			}
			for _, ev := range shown {
				fmt.Fprintf(b, "> %s\n", evidenceLine(ev))
			}
			if truncated > 0 {
				fmt.Fprintf(b, "> … and %d more\n", truncated)
			}
			fmt.Fprintln(b)
		}
		if issue.Recommendation != "" {
			fmt.Fprintf(b, "*Recommendation:* %s\n\n", issue.Recommendation)
		}
	}
}

func evidenceLine(ev models.Evidence) string {
	parts := []string{ev.Message}
	if ev.SourceURL != "" {
		parts = append(parts, "from "+ev.SourceURL)
	}
	if ev.TargetURL != "" {
		parts = append(parts, "to "+ev.TargetURL)
	}
	if ev.Status != 0 {
		parts = append(parts, fmt.Sprintf("status %d", ev.Status))
	}
	return strings.Join(parts, " — ")
}

func renderLinkPlan(b *strings.Builder, plan []models.LinkPlanEntry) {
	if len(plan) == 0 {
		return
	}
	fmt.Fprintf(b, "## Internal link plan (%d)\n\n", len(plan))
	fmt.Fprintf(b, "| Source | Suggested anchor | Score |\n|---|---|---|\n")
	for _, entry := range plan {
		fmt.Fprintf(b, "| %s | %s | %.2f |\n", entry.SourceURL, entry.SuggestedAnchor, entry.Score)
	}
	fmt.Fprintln(b)
	for _, entry := range plan {
		if entry.SuggestedSentenceContext != "" {
			fmt.Fprintf(b, "- %s: “%s”\n", entry.SourceURL, entry.SuggestedSentenceContext)
		}
	}
	fmt.Fprintln(b)
}
