package rules

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"site-audit/pkg/models"
	"site-audit/pkg/utils"
)

// verify runs the network-backed checks: broken links, canonical health and
// redirect chains. Results are fully collected before issues are built, so
// the final ordering never depends on completion order.
func (e *Engine) verify(ctx context.Context, rc *RuleContext) []models.Issue {
	if e.resolver == nil {
		return nil
	}
	statuses := rc.statusMap()

	var issues []models.Issue
	issues = append(issues, e.verifyLinks(ctx, rc, statuses)...)
	issues = append(issues, e.verifyCanonicals(ctx, rc, statuses)...)
	issues = append(issues, e.verifyRedirectChains(ctx, rc, statuses)...)
	return issues
}

// linkTarget is one URL to probe plus every page that links to it
type linkTarget struct {
	url      string
	sources  []string
	internal bool
	status   int
	errMsg   string
}

// verifyLinks probes every distinct internal/external link target. Internal
// targets already covered by the crawl reuse the local status map and cost no
// network call; robots-disallowed targets are skipped entirely.
func (e *Engine) verifyLinks(ctx context.Context, rc *RuleContext, statuses map[string]int) []models.Issue {
	sourcesByTarget := make(map[string]map[string]bool)
	internalTargets := make(map[string]bool)

	collect := func(page *models.PageExtract, links []models.Outlink, internal bool) {
		for _, link := range links {
			if internal && rc.IsDisallowed != nil && rc.IsDisallowed(link.TargetURL) {
				continue
			}
			if sourcesByTarget[link.TargetURL] == nil {
				sourcesByTarget[link.TargetURL] = make(map[string]bool)
			}
			sourcesByTarget[link.TargetURL][page.FinalURL] = true
			if internal {
				internalTargets[link.TargetURL] = true
			}
		}
	}
	for _, page := range rc.Pages {
		if !page.IsAvailable() {
			continue
		}
		collect(page, page.OutlinksInternal, true)
		collect(page, page.OutlinksExternal, false)
	}

	targets := make([]*linkTarget, 0, len(sourcesByTarget))
	for target, sources := range sourcesByTarget {
		sorted := make([]string, 0, len(sources))
		for source := range sources {
			sorted = append(sorted, source)
		}
		sort.Strings(sorted)
		targets = append(targets, &linkTarget{url: target, sources: sorted, internal: internalTargets[target]})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].url < targets[j].url })

	// resolve: local crawl status when known, network probe otherwise
	var pending []*linkTarget
	for _, target := range targets {
		if status, known := statuses[target.url]; known {
			target.status = status
			continue
		}
		pending = append(pending, target)
	}
	e.resolveAll(ctx, pending)

	var issues []models.Issue
	for _, target := range targets {
		if !isBroken(target.status) {
			continue
		}
		issues = append(issues, brokenLinkIssue(target))
	}
	return issues
}

// resolveAll probes the pending targets under the status-check worker pool
func (e *Engine) resolveAll(ctx context.Context, pending []*linkTarget) {
	if len(pending) == 0 {
		return
	}
	utils.RunPool(statusCheckWorkers, len(pending), func(i int) {
		res := e.resolver.Resolve(ctx, pending[i].url)
		pending[i].status = res.Status
		pending[i].errMsg = res.Err
	})
}

// isBroken treats unresolvable targets and 4xx/5xx statuses as broken
func isBroken(status int) bool {
	return status == 0 || status >= 400
}

func brokenLinkIssue(target *linkTarget) models.Issue {
	evidence := make([]models.Evidence, 0, len(target.sources))
	for _, source := range target.sources {
		ev := models.Evidence{
			Type: "status", SourceURL: source, TargetURL: target.url,
			Status: target.status,
		}
		if target.errMsg != "" {
			ev.Message = target.errMsg
		} else {
			ev.Message = fmt.Sprintf("target returned HTTP %d", target.status)
		}
		evidence = append(evidence, ev)
	}

	if target.internal {
		return models.Issue{
			ID:           "broken_link_internal",
			Category:     models.CategoryLinks,
			Severity:     models.SeverityError,
			Rank:         8,
			Title:        "Broken internal link",
			Description:  "An internal link points to a page that cannot be reached.",
			AffectedURLs: []string{target.url},
			Evidence:     evidence,
			Recommendation: "Fix or remove the link on every source page.",
			Tags:         []string{"internal-links", "availability"},
		}
	}
	return models.Issue{
		ID:           "broken_link_external",
		Category:     models.CategoryLinks,
		Severity:     models.SeverityWarning,
		Rank:         5,
		Title:        "Broken external link",
		Description:  "An outgoing link points to an external resource that cannot be reached.",
		AffectedURLs: []string{target.url},
		Evidence:     evidence,
		Recommendation: "Update or remove the dead external reference.",
		Tags:         []string{"external-links"},
	}
}

// verifyCanonicals checks the health of every canonical target that differs
// from its page, reusing crawl statuses where available
func (e *Engine) verifyCanonicals(ctx context.Context, rc *RuleContext, statuses map[string]int) []models.Issue {
	pagesByCanonical := make(map[string][]string)
	for _, page := range rc.Pages {
		if !page.IsAvailable() || page.Canonical == "" || page.Canonical == page.FinalURL {
			continue
		}
		pagesByCanonical[page.Canonical] = append(pagesByCanonical[page.Canonical], page.FinalURL)
	}
	if len(pagesByCanonical) == 0 {
		return nil
	}

	targets := make([]*linkTarget, 0, len(pagesByCanonical))
	for canonical, pages := range pagesByCanonical {
		sort.Strings(pages)
		targets = append(targets, &linkTarget{url: canonical, sources: pages})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].url < targets[j].url })

	var pending []*linkTarget
	for _, target := range targets {
		if status, known := statuses[target.url]; known {
			target.status = status
			continue
		}
		pending = append(pending, target)
	}
	e.resolveAll(ctx, pending)

	var issues []models.Issue
	for _, target := range targets {
		if !isBroken(target.status) {
			continue
		}
		evidence := make([]models.Evidence, 0, len(target.sources))
		for _, source := range target.sources {
			ev := models.Evidence{
				Type: "status", SourceURL: source, TargetURL: target.url,
				Status: target.status, Message: "canonical target unreachable",
			}
			if target.errMsg != "" {
				ev.Details = target.errMsg
			}
			evidence = append(evidence, ev)
		}
		issues = append(issues, models.Issue{
			ID:           "canonical_broken",
			Category:     models.CategoryIndexing,
			Severity:     models.SeverityError,
			Rank:         8,
			Title:        "Canonical points to an unreachable URL",
			Description:  "Pages canonicalize to a target that cannot be fetched.",
			AffectedURLs: append([]string(nil), target.sources...),
			Evidence:     evidence,
			Recommendation: "Point the canonical at a live, indexable URL.",
			Tags:         []string{"indexing"},
		})
	}
	return issues
}

// redirectHop is one step of a manually walked redirect chain
type redirectHop struct {
	url    string
	status int
}

// chainWalker follows redirects one hop at a time with a non-following client
type chainWalker struct {
	client    *http.Client
	userAgent string
	log       *logrus.Entry
}

// walk follows redirects from startURL up to maxRedirectHops, detecting
// cycles via a visited set. Returns the hops traversed and whether a cycle
// was found.
func (cw *chainWalker) walk(ctx context.Context, startURL string, timeout time.Duration) (hops []redirectHop, cycle bool) {
	visited := map[string]bool{startURL: true}
	current := startURL

	for hop := 0; hop < maxRedirectHops; hop++ {
		status, location, err := cw.probe(ctx, current, timeout)
		if err != nil {
			return hops, false
		}
		if status < 300 || status >= 400 || location == "" {
			return hops, false
		}
		hops = append(hops, redirectHop{url: current, status: status})
		if visited[location] {
			return hops, true
		}
		visited[location] = true
		current = location
	}
	return hops, false
}

func (cw *chainWalker) probe(ctx context.Context, rawURL string, timeout time.Duration) (status int, location string, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("User-Agent", cw.userAgent)

	resp, err := cw.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	location = ""
	if loc, locErr := resp.Location(); locErr == nil {
		location = loc.String()
	}
	return resp.StatusCode, location, nil
}

// verifyRedirectChains walks candidate URLs hop by hop under the redirect
// worker pool. Candidates are pages that arrived via redirect plus internal
// link targets outside the crawl.
func (e *Engine) verifyRedirectChains(ctx context.Context, rc *RuleContext, statuses map[string]int) []models.Issue {
	if e.chains == nil {
		return nil
	}

	candidateSet := make(map[string]bool)
	for _, page := range rc.Pages {
		if page.URL != page.FinalURL {
			candidateSet[page.URL] = true
		}
	}
	for _, page := range rc.Pages {
		if !page.IsAvailable() {
			continue
		}
		for _, link := range page.OutlinksInternal {
			if _, crawled := statuses[link.TargetURL]; crawled {
				continue
			}
			if rc.IsDisallowed != nil && rc.IsDisallowed(link.TargetURL) {
				continue
			}
			candidateSet[link.TargetURL] = true
		}
	}
	if len(candidateSet) == 0 {
		return nil
	}

	candidates := make([]string, 0, len(candidateSet))
	for url := range candidateSet {
		candidates = append(candidates, url)
	}
	sort.Strings(candidates)

	type walkResult struct {
		hops  []redirectHop
		cycle bool
	}
	results := make([]walkResult, len(candidates))
	timeout := rc.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	utils.RunPool(redirectWorkers, len(candidates), func(i int) {
		hops, cycle := e.chains.walk(ctx, candidates[i], timeout)
		results[i] = walkResult{hops: hops, cycle: cycle}
	})

	var issues []models.Issue
	for i, candidate := range candidates {
		result := results[i]
		if result.cycle {
			issues = append(issues, models.Issue{
				ID:           "redirect_loop",
				Category:     models.CategoryTechnical,
				Severity:     models.SeverityError,
				Rank:         8,
				Title:        "Redirect loop",
				Description:  "Following the URL's redirects returns to an already visited URL.",
				AffectedURLs: []string{candidate},
				Evidence:     hopEvidence(result.hops),
				Recommendation: "Break the redirect cycle so the URL resolves to a final page.",
				Tags:         []string{"redirects"},
			})
			continue
		}
		if len(result.hops) >= 2 {
			issues = append(issues, models.Issue{
				ID:           "redirect_chain",
				Category:     models.CategoryTechnical,
				Severity:     models.SeverityWarning,
				Rank:         4,
				Title:        "Redirect chain",
				Description:  "The URL reaches its destination only after multiple redirects.",
				AffectedURLs: []string{candidate},
				Evidence:     hopEvidence(result.hops),
				Recommendation: "Link and redirect directly to the final URL.",
				Tags:         []string{"redirects"},
			})
		}
	}
	return issues
}

func hopEvidence(hops []redirectHop) []models.Evidence {
	evidence := make([]models.Evidence, 0, len(hops))
	for i, hop := range hops {
		evidence = append(evidence, models.Evidence{
			Type: "redirect_hop", URL: hop.url, Status: hop.status,
			Message: fmt.Sprintf("hop %d", i+1),
		})
	}
	return evidence
}
