package rules

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"site-audit/pkg/fetch"
	"site-audit/pkg/models"
	"site-audit/pkg/utils"
)

// Verification pool sizes and bounds
const (
	statusCheckWorkers  = 12
	redirectWorkers     = 8
	maxRedirectHops     = 8
)

// RuleContext is the immutable input bundle one rule pass evaluates.
// Pages and Graph must not be mutated while the pass runs.
type RuleContext struct {
	Pages []*models.PageExtract
	Graph *models.InternalLinkGraph

	// IsDisallowed reports whether a URL is robots-disallowed; disallowed
	// targets are excluded from broken-link verification. nil disables the
	// exclusion.
	IsDisallowed func(rawURL string) bool

	Timeout time.Duration // per network probe budget

	FocusURL                string
	FocusKeyword            string
	MinFocusInlinks         int
	MaxGenericAnchorPercent float64

	SitemapURLs    []string // page URLs collected from sitemaps
	GenericAnchors []string // normalized lexicon

	SERPChecks              bool
	ThinContentWords        int
	ServiceThinContentWords int
}

// Validate fail-fasts on a malformed context before any check runs
func (rc *RuleContext) Validate() error {
	if rc == nil {
		return utils.WrapErrorf(utils.ErrContractViolation, "nil rule context")
	}
	if rc.Graph == nil {
		return utils.WrapErrorf(utils.ErrContractViolation, "rule context missing link graph")
	}
	for i, page := range rc.Pages {
		if page == nil {
			return utils.WrapErrorf(utils.ErrContractViolation, "nil page at index %d", i)
		}
		if page.URL == "" || page.FinalURL == "" {
			return utils.WrapErrorf(utils.ErrContractViolation, "page at index %d missing URL", i)
		}
	}
	if rc.ThinContentWords <= 0 || rc.ServiceThinContentWords <= 0 {
		return utils.WrapErrorf(utils.ErrContractViolation, "thin-content thresholds must be positive")
	}
	return nil
}

// statusMap returns the locally known crawl statuses, keyed by both the
// requested and final normalized URL of every page
func (rc *RuleContext) statusMap() map[string]int {
	statuses := make(map[string]int, len(rc.Pages)*2)
	for _, page := range rc.Pages {
		statuses[page.FinalURL] = page.Status
		statuses[page.URL] = page.Status
	}
	return statuses
}

// Engine runs the full deterministic rule set over a RuleContext. Network
// verification goes through the shared StatusResolver; everything else is
// pure computation.
type Engine struct {
	resolver *fetch.StatusResolver
	chains   *chainWalker
	progress models.ProgressFunc
	log      *logrus.Entry
}

// NewEngine creates an Engine. resolver may be nil, which disables
// network-backed verification (useful for offline evaluation).
// redirectClient must not follow redirects; each hop is walked manually.
func NewEngine(resolver *fetch.StatusResolver, redirectClient *http.Client, userAgent string, progress models.ProgressFunc, log *logrus.Entry) *Engine {
	var chains *chainWalker
	if redirectClient != nil {
		chains = &chainWalker{client: redirectClient, userAgent: userAgent, log: log}
	}
	return &Engine{resolver: resolver, chains: chains, progress: progress, log: log}
}

// Evaluate runs every check and returns the consolidated, fully sorted issue
// list. Individual checks are best-effort: an inapplicable check contributes
// zero issues, and only a contract violation aborts the pass.
func (e *Engine) Evaluate(ctx context.Context, rc *RuleContext) ([]models.Issue, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}

	var raw []models.Issue

	e.emit("rules", "page checks", 0)
	for _, page := range rc.Pages {
		raw = append(raw, evaluatePage(page, rc)...)
	}

	e.emit("rules", "site checks", 35)
	raw = append(raw, evaluateSite(rc)...)

	e.emit("rules", "network verification", 55)
	raw = append(raw, e.verify(ctx, rc)...)

	e.emit("rules", "consolidating", 95)
	issues := Consolidate(raw)
	SortIssues(issues)

	e.emit("rules", "done", 100)
	e.log.WithFields(logrus.Fields{"raw": len(raw), "consolidated": len(issues)}).Info("Rule pass complete")
	return issues, nil
}

func (e *Engine) emit(stage, detail string, percent float64) {
	if e.progress != nil {
		e.progress(models.ProgressEvent{Stage: stage, Detail: detail, Percent: percent})
	}
}
