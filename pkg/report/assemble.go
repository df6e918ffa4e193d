package report

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"site-audit/pkg/config"
	"site-audit/pkg/models"
)

// Per-issue score penalties by severity. The score starts at 100 and each
// consolidated issue subtracts its severity's penalty, floored at 0.
var severityPenalty = map[string]int{
	models.SeverityError:   5,
	models.SeverityWarning: 2,
	models.SeverityNotice:  1,
}

// Assemble builds the final Report from the outputs of a completed run.
// Issues must already be consolidated and sorted.
func Assemble(cfg *config.AuditConfig, pages []*models.PageExtract, graph *models.InternalLinkGraph,
	issues []models.Issue, plan []models.LinkPlanEntry, startedAt time.Time, log *logrus.Logger) *models.Report {

	report := &models.Report{
		RunID:      uuid.New().String(),
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Inputs: models.RunInputs{
			StartURL:     cfg.StartURL,
			Coverage:     cfg.Coverage,
			MaxPages:     cfg.MaxPages,
			Depth:        cfg.Depth,
			FocusURL:     cfg.Focus.URL,
			FocusKeyword: cfg.Focus.Keyword,
			Sitemaps:     cfg.Sitemaps,
		},
		Issues:           issues,
		Pages:            pages,
		Graph:            graph,
		InternalLinkPlan: plan,
	}
	report.Summary = buildSummary(pages, graph, issues)

	log.WithFields(logrus.Fields{
		"run_id": report.RunID,
		"score":  report.Summary.Score,
		"pages":  report.Summary.PagesCrawled,
		"issues": len(issues),
	}).Info("Report assembled")
	return report
}

func buildSummary(pages []*models.PageExtract, graph *models.InternalLinkGraph, issues []models.Issue) models.Summary {
	summary := models.Summary{
		PagesCrawled:   len(pages),
		IssueCounts:    make(map[string]int),
		CategoryCounts: make(map[string]int),
		Performance:    buildPerformance(pages),
	}
	if graph != nil {
		summary.InternalLinks = graph.Summary
		summary.Focus = buildFocus(pages, graph)
	}

	score := 100
	for _, issue := range issues {
		summary.IssueCounts[issue.Severity]++
		summary.CategoryCounts[issue.Category]++
		score -= severityPenalty[issue.Severity]
	}
	if score < 0 {
		score = 0
	}
	summary.Score = score
	return summary
}

func buildFocus(pages []*models.PageExtract, graph *models.InternalLinkGraph) *models.FocusSummary {
	if graph.FocusURL == "" {
		return nil
	}
	focus := &models.FocusSummary{
		URL:              graph.FocusURL,
		InlinksCount:     graph.FocusInlinksCount,
		TopInlinkSources: graph.TopInlinkSourcesToFocus,
		TopAnchors:       graph.AnchorsByTarget[graph.FocusURL],
	}
	for _, page := range pages {
		if page.FinalURL == graph.FocusURL || page.URL == graph.FocusURL {
			focus.WordCount = page.WordCount
			break
		}
	}
	return focus
}

func buildPerformance(pages []*models.PageExtract) models.PerformanceSummary {
	var perf models.PerformanceSummary
	available := 0
	for _, page := range pages {
		if !page.IsAvailable() {
			continue
		}
		available++
		perf.TotalWordCount += page.WordCount
		if page.TokenCount > 0 {
			perf.TotalTokenCount += page.TokenCount
		}
	}
	if available > 0 {
		perf.AvgWordCount = perf.TotalWordCount / available
	}
	return perf
}
