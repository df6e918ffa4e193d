package models

// Severity levels for issues, ordered error > warning > notice
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityNotice  = "notice"
)

// SeverityWeight maps a severity to its ordering weight (higher sorts first).
// Unknown severities sort last.
func SeverityWeight(severity string) int {
	switch severity {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityNotice:
		return 1
	}
	return 0
}

// Evidence is one piece of supporting detail attached to an issue
type Evidence struct {
	Type      string `json:"type"` // e.g. "status", "comparison", "sample", "redirect_hop"
	Message   string `json:"message"`
	URL       string `json:"url,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
	TargetURL string `json:"target_url,omitempty"`
	Status    int    `json:"status,omitempty"`
	Details   string `json:"details,omitempty"`
}

// Issue is one detected problem. Identity for consolidation purposes is the
// (ID, Title, Description) triple; AffectedURLs holds only fully resolved
// absolute URLs.
type Issue struct {
	ID             string     `json:"id"` // stable rule identifier
	Category       string     `json:"category"`
	Severity       string     `json:"severity"`
	Rank           int        `json:"rank"` // 0-10, rule-assigned priority
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	AffectedURLs   []string   `json:"affected_urls,omitempty"`
	Evidence       []Evidence `json:"evidence,omitempty"`
	Recommendation string     `json:"recommendation,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
}

// Issue categories
const (
	CategoryContent       = "content"
	CategoryTechnical     = "technical"
	CategoryLinks         = "links"
	CategorySecurity      = "security"
	CategoryStructured    = "structured_data"
	CategoryAccessibility = "accessibility"
	CategoryIndexing      = "indexing"
)
