package models

import "time"

// WorkItem represents a URL and its depth to be processed by a crawl worker
type WorkItem struct {
	URL   string
	Depth int
}

// Heading is one entry of a page's heading outline, in document order
type Heading struct {
	Level int    `json:"level"` // 1..6
	Text  string `json:"text"`
}

// Outlink is one distinct link relationship observed on a page.
// One record exists per distinct (TargetURL, AnchorText, Rel, IsNavLikely)
// tuple; Occurrences counts how many identical instances were seen.
type Outlink struct {
	TargetURL   string `json:"target_url"` // absolute, resolved against the page's final URL
	AnchorText  string `json:"anchor_text"`
	Rel         string `json:"rel,omitempty"`
	IsNavLikely bool   `json:"is_nav_likely"`
	Occurrences int    `json:"occurrences"`
}

// ImageStats summarizes the <img> population of a page
type ImageStats struct {
	Total      int `json:"total"`
	MissingAlt int `json:"missing_alt"`
	WeakAlt    int `json:"weak_alt"` // alt present but too short/generic to be useful
}

// SecurityFlags captures transport and response-header security signals
type SecurityFlags struct {
	HTTPS           bool     `json:"https"`
	MixedContent    []string `json:"mixed_content,omitempty"` // http:// resource URLs referenced from an https page
	PresentHeaders  []string `json:"present_headers,omitempty"`
	MissingHeaders  []string `json:"missing_headers,omitempty"`
}

// JSONLDBlock is one <script type="application/ld+json"> block found on a page
type JSONLDBlock struct {
	Raw      string         `json:"raw"`
	Parsed   map[string]any `json:"parsed,omitempty"` // nil when ParseErr is set
	Types    []string       `json:"types,omitempty"`  // collected @type values
	ParseErr string         `json:"parse_error,omitempty"`
}

// AnchorCount pairs a normalized anchor text with the number of distinct
// (source page x anchor) relationships using it
type AnchorCount struct {
	Anchor string `json:"anchor"`
	Count  int    `json:"count"`
}

// PageExtract is the normalized record produced for one crawled URL.
// It is created once by extraction; InlinksCount and InlinksAnchorsTop are
// derived and populated only by the link graph builder. Immutable thereafter.
type PageExtract struct {
	URL      string `json:"url"`       // as requested
	FinalURL string `json:"final_url"` // post-redirect
	Status   int    `json:"status"`    // HTTP status; 0 means the fetch itself failed
	FetchErr string `json:"fetch_error,omitempty"`
	Depth    int    `json:"depth"`

	Title           string `json:"title"`
	MetaDescription string `json:"meta_description"`
	Canonical       string `json:"canonical,omitempty"` // absolute
	MetaRobots      string `json:"meta_robots,omitempty"`
	XRobotsTag      string `json:"x_robots_tag,omitempty"`
	Lang            string `json:"lang,omitempty"`

	Headings []Heading     `json:"headings,omitempty"`
	JSONLD   []JSONLDBlock `json:"jsonld,omitempty"`
	SchemaTypes []string   `json:"schema_types,omitempty"` // union of JSONLD block types

	Images   ImageStats    `json:"images"`
	Security SecurityFlags `json:"security"`

	MainText        string `json:"main_text,omitempty"`
	ContentMarkdown string `json:"content_markdown,omitempty"`
	WordCount       int    `json:"word_count"`
	TokenCount      int    `json:"token_count,omitempty"` // -1 or 0 when token counting is disabled

	UnlabeledLinks int `json:"unlabeled_links,omitempty"`

	OutlinksInternal []Outlink `json:"outlinks_internal,omitempty"`
	OutlinksExternal []Outlink `json:"outlinks_external,omitempty"`

	// Derived by the link graph builder, never by extraction.
	InlinksCount      int           `json:"inlinks_count"`
	InlinksAnchorsTop []AnchorCount `json:"inlinks_anchors_top,omitempty"`

	FetchedAt time.Time `json:"fetched_at"`
}

// IsAvailable reports whether the page yielded an auditable record: a 2xx
// response whose body was actually extracted. A 2xx non-HTML asset carries a
// FetchErr and is not available.
func (p *PageExtract) IsAvailable() bool {
	return p.FetchErr == "" && p.Status >= 200 && p.Status < 300
}
