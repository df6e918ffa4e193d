package models

// IssueRef identifies a consolidated issue inside a diff without carrying its
// full evidence payload
type IssueRef struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Severity      string `json:"severity"`
	Rank          int    `json:"rank"`
	AffectedCount int    `json:"affected_count"`
}

// FieldChange records a per-URL textual change between two runs
type FieldChange struct {
	URL    string `json:"url"`
	Field  string `json:"field"` // "title" or "description"
	Before string `json:"before"`
	After  string `json:"after"`
	Patch  string `json:"patch,omitempty"` // human-readable hunk rendering
}

// ReportDiff is the structural comparison of two completed reports
type ReportDiff struct {
	BaselineRunID string `json:"baseline_run_id"`
	CurrentRunID  string `json:"current_run_id"`

	ScoreDelta     int `json:"score_delta"`
	PageCountDelta int `json:"page_count_delta"`

	NewIssues        []IssueRef `json:"new_issues,omitempty"`
	ResolvedIssues   []IssueRef `json:"resolved_issues,omitempty"`
	PersistingIssues []IssueRef `json:"persisting_issues,omitempty"`

	SeverityDeltas map[string]int `json:"severity_deltas,omitempty"` // severity -> current - baseline
	CategoryDeltas map[string]int `json:"category_deltas,omitempty"`

	PageChanges []FieldChange `json:"page_changes,omitempty"`

	AddedPages   []string `json:"added_pages,omitempty"`
	RemovedPages []string `json:"removed_pages,omitempty"`
}
