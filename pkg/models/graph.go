package models

// SourceContribution is one source page's inlink contribution to a target
type SourceContribution struct {
	SourceURL string `json:"source_url"`
	Count     int    `json:"count"` // distinct (anchor) relationships contributed
}

// InternalLinksSummary aggregates link statistics across the whole crawl.
// All percentages are computed over the count of distinct inlink
// relationships, never over raw occurrence counts.
type InternalLinksSummary struct {
	TotalPages               int           `json:"total_pages"`
	TotalInlinkRelationships int           `json:"total_inlink_relationships"`
	OrphanPages              []string      `json:"orphan_pages,omitempty"`
	NearOrphanPages          []string      `json:"near_orphan_pages,omitempty"`
	NavLikelyPercent         float64       `json:"nav_likely_percent"`
	GenericAnchorPercent     float64       `json:"generic_anchor_percent"`
	EmptyAnchorPercent       float64       `json:"empty_anchor_percent"`
	TopAnchors               []AnchorCount `json:"top_anchors,omitempty"`
}

// InternalLinkGraph is the derived, read-only view over crawled pages.
// It is recomputed fully on every run and never mutated incrementally.
type InternalLinkGraph struct {
	// Inlinks maps a normalized target URL to the number of distinct source
	// pages linking to it.
	Inlinks map[string]int `json:"inlinks"`

	// AnchorsByTarget maps a normalized target URL to its anchor counts,
	// sorted by count descending then anchor ascending.
	AnchorsByTarget map[string][]AnchorCount `json:"anchors_by_target,omitempty"`

	FocusURL                string               `json:"focus_url,omitempty"`
	FocusInlinksCount       int                  `json:"focus_inlinks_count"`
	TopInlinkSourcesToFocus []SourceContribution `json:"top_inlink_sources_to_focus,omitempty"`

	Summary InternalLinksSummary `json:"internal_links_summary"`
}

// LinkPlanEntry is one deterministic internal-link insertion proposal
type LinkPlanEntry struct {
	SourceURL                string  `json:"source_url"`
	SuggestedAnchor          string  `json:"suggested_anchor"`
	SuggestedSentenceContext string  `json:"suggested_sentence_context,omitempty"`
	Score                    float64 `json:"score"`
}
