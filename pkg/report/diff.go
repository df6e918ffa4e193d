package report

import (
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"site-audit/pkg/models"
)

// issueIdentity mirrors the consolidation identity of an issue
type issueIdentity struct {
	id, title, description string
}

// Diff compares two completed reports. Issues are matched by their
// consolidation identity and classified as new, resolved, or persisting;
// pages are matched by requested URL, with title and meta description
// changes rendered as character-level diffs.
func Diff(baseline, current *models.Report) *models.ReportDiff {
	d := &models.ReportDiff{
		BaselineRunID:  baseline.RunID,
		CurrentRunID:   current.RunID,
		ScoreDelta:     current.Summary.Score - baseline.Summary.Score,
		PageCountDelta: current.Summary.PagesCrawled - baseline.Summary.PagesCrawled,
		SeverityDeltas: countDeltas(baseline.Summary.IssueCounts, current.Summary.IssueCounts),
		CategoryDeltas: countDeltas(baseline.Summary.CategoryCounts, current.Summary.CategoryCounts),
	}

	baselineIssues := indexIssues(baseline.Issues)
	currentIssues := indexIssues(current.Issues)

	// current order is already the final issue ordering, so walk it directly
	for _, issue := range current.Issues {
		ref := issueRef(issue)
		if _, ok := baselineIssues[identityOf(issue)]; ok {
			d.PersistingIssues = append(d.PersistingIssues, ref)
		} else {
			d.NewIssues = append(d.NewIssues, ref)
		}
	}
	for _, issue := range baseline.Issues {
		if _, ok := currentIssues[identityOf(issue)]; !ok {
			d.ResolvedIssues = append(d.ResolvedIssues, issueRef(issue))
		}
	}

	diffPages(d, baseline.Pages, current.Pages)
	return d
}

func identityOf(issue models.Issue) issueIdentity {
	return issueIdentity{issue.ID, issue.Title, issue.Description}
}

func indexIssues(issues []models.Issue) map[issueIdentity]models.Issue {
	index := make(map[issueIdentity]models.Issue, len(issues))
	for _, issue := range issues {
		index[identityOf(issue)] = issue
	}
	return index
}

func issueRef(issue models.Issue) models.IssueRef {
	return models.IssueRef{
		ID:            issue.ID,
		Title:         issue.Title,
		Description:   issue.Description,
		Severity:      issue.Severity,
		Rank:          issue.Rank,
		AffectedCount: len(issue.AffectedURLs),
	}
}

func countDeltas(baseline, current map[string]int) map[string]int {
	deltas := make(map[string]int)
	for key, n := range current {
		if delta := n - baseline[key]; delta != 0 {
			deltas[key] = delta
		}
	}
	for key, n := range baseline {
		if _, seen := current[key]; !seen && n != 0 {
			deltas[key] = -n
		}
	}
	if len(deltas) == 0 {
		return nil
	}
	return deltas
}

func diffPages(d *models.ReportDiff, baseline, current []*models.PageExtract) {
	baselineByURL := indexPages(baseline)
	currentByURL := indexPages(current)

	for _, page := range current {
		before, ok := baselineByURL[page.URL]
		if !ok {
			d.AddedPages = append(d.AddedPages, page.URL)
			continue
		}
		if before.Title != page.Title {
			d.PageChanges = append(d.PageChanges, fieldChange(page.URL, "title", before.Title, page.Title))
		}
		if before.MetaDescription != page.MetaDescription {
			d.PageChanges = append(d.PageChanges, fieldChange(page.URL, "description", before.MetaDescription, page.MetaDescription))
		}
	}
	for _, page := range baseline {
		if _, ok := currentByURL[page.URL]; !ok {
			d.RemovedPages = append(d.RemovedPages, page.URL)
		}
	}

	sort.Strings(d.AddedPages)
	sort.Strings(d.RemovedPages)
	sort.Slice(d.PageChanges, func(i, j int) bool {
		if d.PageChanges[i].URL != d.PageChanges[j].URL {
			return d.PageChanges[i].URL < d.PageChanges[j].URL
		}
		return d.PageChanges[i].Field < d.PageChanges[j].Field
	})
}

func indexPages(pages []*models.PageExtract) map[string]*models.PageExtract {
	index := make(map[string]*models.PageExtract, len(pages))
	for _, page := range pages {
		index[page.URL] = page
	}
	return index
}

func fieldChange(pageURL, field, before, after string) models.FieldChange {
	return models.FieldChange{
		URL:    pageURL,
		Field:  field,
		Before: before,
		After:  after,
		Patch:  renderPatch(before, after),
	}
}

// renderPatch produces a compact inline rendering of a character-level diff,
// with removals in [-...-] and insertions in {+...+}
func renderPatch(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, part := range diffs {
		switch part.Type {
		case diffmatchpatch.DiffDelete:
			b.WriteString("[-")
			b.WriteString(part.Text)
			b.WriteString("-]")
		case diffmatchpatch.DiffInsert:
			b.WriteString("{+")
			b.WriteString(part.Text)
			b.WriteString("+}")
		default:
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
