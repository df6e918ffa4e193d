package models

import "time"

// ProgressEvent is an ordered, purely observational notification emitted
// during crawl and rule execution
type ProgressEvent struct {
	Stage   string  `json:"stage"`
	Detail  string  `json:"detail,omitempty"`
	Percent float64 `json:"percent"`
}

// ProgressFunc receives progress events. Implementations must be fast and
// must not influence core behavior. A nil ProgressFunc disables reporting.
type ProgressFunc func(ev ProgressEvent)

// FocusSummary is the deep-dive summary for the run's focus page, if any
type FocusSummary struct {
	URL               string               `json:"url"`
	InlinksCount      int                  `json:"inlinks_count"`
	TopInlinkSources  []SourceContribution `json:"top_inlink_sources,omitempty"`
	TopAnchors        []AnchorCount        `json:"top_anchors,omitempty"`
	WordCount         int                  `json:"word_count"`
}

// PerformanceSummary carries lightweight content-volume figures
type PerformanceSummary struct {
	AvgWordCount    int `json:"avg_word_count"`
	TotalWordCount  int `json:"total_word_count"`
	TotalTokenCount int `json:"total_token_count,omitempty"` // 0 when token counting is disabled
}

// Summary is the computed top-level summary of a completed run
type Summary struct {
	Score          int            `json:"score"` // 0-100
	PagesCrawled   int            `json:"pages_crawled"`
	IssueCounts    map[string]int `json:"issue_counts"`    // severity -> count
	CategoryCounts map[string]int `json:"category_counts"` // category -> count
	Focus          *FocusSummary  `json:"focus,omitempty"`
	InternalLinks  InternalLinksSummary `json:"internal_links"`
	Performance    PerformanceSummary   `json:"performance"`
}

// RunInputs records the effective inputs of a run for later comparison
type RunInputs struct {
	StartURL     string   `json:"start_url"`
	Coverage     string   `json:"coverage"`
	MaxPages     int      `json:"max_pages"`
	Depth        int      `json:"depth"`
	FocusURL     string   `json:"focus_url,omitempty"`
	FocusKeyword string   `json:"focus_keyword,omitempty"`
	Sitemaps     []string `json:"sitemaps,omitempty"`
}

// Report is the top-level aggregate of one completed run. It is created once
// per run and handed to formatters, storage and enrichment as a plain value.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Inputs     RunInputs `json:"inputs"`

	Summary Summary `json:"summary"`
	Issues  []Issue `json:"issues"`

	Pages []*PageExtract `json:"pages"`
	Graph *InternalLinkGraph `json:"graph,omitempty"`

	InternalLinkPlan []LinkPlanEntry `json:"internal_link_plan,omitempty"`
}
