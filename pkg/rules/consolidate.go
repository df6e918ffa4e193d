package rules

import (
	"sort"

	"site-audit/pkg/models"
)

// identityKey groups raw issues for consolidation. Description participates
// in identity: same-id issues with differing descriptions stay separate.
type identityKey struct {
	id          string
	title       string
	description string
}

// Consolidate merges raw issues sharing an (id, title, description) identity
// into one issue each: affected URLs and tags become sorted unions, evidence
// lists concatenate in their original relative order, and the rank becomes
// the group maximum. Group output order follows first appearance, which
// SortIssues replaces with the total ordering anyway.
func Consolidate(raw []models.Issue) []models.Issue {
	groups := make(map[identityKey]*models.Issue)
	var order []identityKey

	for _, issue := range raw {
		key := identityKey{id: issue.ID, title: issue.Title, description: issue.Description}
		existing, seen := groups[key]
		if !seen {
			merged := issue
			merged.AffectedURLs = append([]string(nil), issue.AffectedURLs...)
			merged.Evidence = append([]models.Evidence(nil), issue.Evidence...)
			merged.Tags = append([]string(nil), issue.Tags...)
			groups[key] = &merged
			order = append(order, key)
			continue
		}
		existing.AffectedURLs = append(existing.AffectedURLs, issue.AffectedURLs...)
		existing.Evidence = append(existing.Evidence, issue.Evidence...)
		existing.Tags = append(existing.Tags, issue.Tags...)
		if issue.Rank > existing.Rank {
			existing.Rank = issue.Rank
		}
	}

	consolidated := make([]models.Issue, 0, len(order))
	for _, key := range order {
		issue := groups[key]
		issue.AffectedURLs = sortedUnique(issue.AffectedURLs)
		issue.Tags = sortedUnique(issue.Tags)
		consolidated = append(consolidated, *issue)
	}
	return consolidated
}

// SortIssues applies the total issue ordering in place: severity descending,
// rank descending, id ascending, then first affected URL ascending.
func SortIssues(issues []models.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		wi, wj := models.SeverityWeight(issues[i].Severity), models.SeverityWeight(issues[j].Severity)
		if wi != wj {
			return wi > wj
		}
		if issues[i].Rank != issues[j].Rank {
			return issues[i].Rank > issues[j].Rank
		}
		if issues[i].ID != issues[j].ID {
			return issues[i].ID < issues[j].ID
		}
		return firstURL(issues[i]) < firstURL(issues[j])
	})
}

func firstURL(issue models.Issue) string {
	if len(issue.AffectedURLs) == 0 {
		return ""
	}
	return issue.AffectedURLs[0]
}

func sortedUnique(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	unique := values[:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			unique = append(unique, v)
		}
	}
	sort.Strings(unique)
	return unique
}
