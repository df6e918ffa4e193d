package crawler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"site-audit/pkg/config"
	"site-audit/pkg/extract"
	"site-audit/pkg/fetch"
	"site-audit/pkg/models"
	"site-audit/pkg/parse"
	"site-audit/pkg/queue"
	"site-audit/pkg/utils"
)

// maxBodySize bounds how much of a response body is read per page
const maxBodySize = 10 << 20 // 10 MiB

// Result is everything one crawl produces for the downstream pipeline
type Result struct {
	Pages       []*models.PageExtract
	SitemapURLs []string // page URLs collected from sitemap documents

	// IsDisallowed reports whether a URL is robots-disallowed, backed by the
	// robots cache built during the crawl. Always non-nil; permissive when
	// robots handling is off.
	IsDisallowed func(rawURL string) bool
}

// Crawler performs one bounded breadth-first traversal of a site
type Crawler struct {
	cfg       *config.AuditConfig
	fetcher   *fetch.Fetcher
	extractor *extract.Extractor
	robots    *fetch.RobotsHandler
	limiter   *fetch.RateLimiter
	frontier  *queue.Frontier

	includePatterns []*regexp.Regexp
	excludePatterns []*regexp.Regexp
	allowedDomains  map[string]bool
	effectiveDepth  int

	visitedMu sync.Mutex
	visited   map[string]bool

	pagesMu sync.Mutex
	pages   []*models.PageExtract

	fetchBudget atomic.Int64 // remaining page fetches before max_pages

	sitemapMu   sync.Mutex
	sitemapURLs map[string]bool

	wg       sync.WaitGroup // open frontier tasks
	sem      *semaphore.Weighted
	progress models.ProgressFunc
	log      *logrus.Logger
}

// New wires a Crawler from validated configuration
func New(cfg *config.AuditConfig, progress models.ProgressFunc, log *logrus.Logger) (*Crawler, error) {
	include, err := utils.CompileGlobPatterns(cfg.IncludePatterns)
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrConfigValidation, "include patterns: %v", err)
	}
	exclude, err := utils.CompileGlobPatterns(cfg.ExcludePatterns)
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrConfigValidation, "exclude patterns: %v", err)
	}

	domains := make(map[string]bool, len(cfg.AllowedDomains))
	for _, domain := range cfg.AllowedDomains {
		domains[strings.ToLower(domain)] = true
	}

	client := fetch.NewClient(cfg.HTTPClientSettings, log)
	fetcher := fetch.NewFetcher(client, cfg, log)
	limiter := fetch.NewRateLimiter(log)

	c := &Crawler{
		cfg:             cfg,
		fetcher:         fetcher,
		extractor:       extract.NewExtractor(cfg, log),
		robots:          fetch.NewRobotsHandler(fetcher, limiter, cfg.DelayPerHost, cfg.UserAgent, log.WithField("component", "robots")),
		limiter:         limiter,
		frontier:        queue.NewFrontier(log),
		includePatterns: include,
		excludePatterns: exclude,
		allowedDomains:  domains,
		effectiveDepth:  cfg.EffectiveDepth(),
		visited:         make(map[string]bool),
		sitemapURLs:     make(map[string]bool),
		sem:             semaphore.NewWeighted(int64(cfg.NumWorkers)),
		progress:        progress,
		log:             log,
	}
	c.fetchBudget.Store(int64(cfg.MaxPages))
	return c, nil
}

// Run executes the crawl and blocks until the frontier drains. Fetch failures
// surface as failure records inside Result, not as errors; Run errors only
// when the seed set itself is unusable.
func (c *Crawler) Run(ctx context.Context) (*Result, error) {
	startURL, _, err := parse.NormalizeURLString(c.cfg.StartURL)
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrSeedUnreachable, "start URL %q: %v", c.cfg.StartURL, err)
	}

	c.emit("crawl", "seeding", 0)
	seeds := c.collectSeeds(ctx, startURL)

	for _, seed := range seeds {
		c.enqueue(&models.WorkItem{URL: seed, Depth: 0})
	}

	for i := 0; i < c.cfg.NumWorkers; i++ {
		go c.worker(ctx, c.log.WithField("worker", i))
	}

	done := make(chan struct{})
	go func() { c.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
	}
	c.frontier.Close()

	c.pagesMu.Lock()
	pages := append([]*models.PageExtract(nil), c.pages...)
	c.pagesMu.Unlock()
	sortPages(pages)

	c.emit("crawl", "done", 100)

	result := &Result{
		Pages:        pages,
		SitemapURLs:  c.collectedSitemapURLs(),
		IsDisallowed: c.disallowedFunc(ctx),
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if seedFailed(pages, startURL) {
		return result, utils.WrapErrorf(utils.ErrSeedUnreachable, "start URL %s could not be fetched", startURL)
	}
	return result, nil
}

// collectSeeds gathers the seed URL set: the start URL first, then sitemap
// entries from robots.txt discovery and explicit configuration. Seeds beyond
// the page budget are dropped up front, keeping the start URL prioritized.
func (c *Crawler) collectSeeds(ctx context.Context, startURL string) []string {
	seeds := []string{startURL}
	seen := map[string]bool{startURL: true}

	var sitemapDocs []string
	if c.cfg.SitemapDiscoveryEnabled() {
		if parsed, err := url.Parse(startURL); err == nil {
			sitemapDocs = append(sitemapDocs, c.robots.Sitemaps(ctx, parsed)...)
		}
	}
	sitemapDocs = append(sitemapDocs, c.cfg.Sitemaps...)

	for _, pageURL := range c.fetchSitemaps(ctx, sitemapDocs) {
		normalized, parsed, err := parse.NormalizeURLString(pageURL)
		if err != nil || !c.inScope(parsed) || seen[normalized] {
			continue
		}
		seen[normalized] = true
		seeds = append(seeds, normalized)
		c.sitemapMu.Lock()
		c.sitemapURLs[normalized] = true
		c.sitemapMu.Unlock()
	}

	if len(seeds) > c.cfg.MaxPages {
		seeds = seeds[:c.cfg.MaxPages]
	}
	c.log.WithField("seeds", len(seeds)).Info("Seed set assembled")
	return seeds
}

// fetchSitemaps downloads sitemap documents, following sitemap-index
// references breadth-first with a hard cap on documents fetched
func (c *Crawler) fetchSitemaps(ctx context.Context, sitemapDocs []string) []string {
	const maxSitemapDocs = 50

	var pageURLs []string
	pending := append([]string(nil), sitemapDocs...)
	fetched := make(map[string]bool)

	for len(pending) > 0 && len(fetched) < maxSitemapDocs {
		docURL := pending[0]
		pending = pending[1:]
		if fetched[docURL] {
			continue
		}
		fetched[docURL] = true

		smLog := c.log.WithField("sitemap", docURL)
		body, err := c.fetchBody(ctx, docURL)
		if err != nil {
			smLog.Warnf("Sitemap fetch failed: %v", err)
			continue
		}
		content, err := parse.ParseSitemap(body)
		if err != nil {
			smLog.Warnf("Sitemap parse failed: %v", err)
			continue
		}
		pageURLs = append(pageURLs, content.PageURLs...)
		pending = append(pending, content.ChildMaps...)
		smLog.WithFields(logrus.Fields{"pages": len(content.PageURLs), "children": len(content.ChildMaps)}).Debug("Sitemap processed")
	}
	return pageURLs
}

func (c *Crawler) fetchBody(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrRequestCreation, "%v", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.fetcher.FetchWithRetry(req, ctx)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrResponseBodyRead, "%v", err)
	}
	return body, nil
}

// enqueue adds a work item and registers it with the task group
func (c *Crawler) enqueue(item *models.WorkItem) {
	c.wg.Add(1)
	if !c.frontier.Add(item) {
		c.wg.Done()
	}
}

// worker drains the frontier until it closes
func (c *Crawler) worker(ctx context.Context, workerLog *logrus.Entry) {
	for {
		item, ok := c.frontier.Pop()
		if !ok {
			return
		}
		c.processItem(ctx, item, workerLog.WithFields(logrus.Fields{"url": item.URL, "depth": item.Depth}))
		c.wg.Done()
	}
}

// processItem runs the per-URL pipeline: dedup, scope, robots, budget,
// fetch, extract, link discovery. A panic in any stage is contained to the
// item so one bad page cannot take the crawl down.
func (c *Crawler) processItem(ctx context.Context, item *models.WorkItem, taskLog *logrus.Entry) {
	defer func() {
		if r := recover(); r != nil {
			taskLog.Errorf("Recovered from panic while processing page: %v", r)
		}
	}()

	if ctx.Err() != nil {
		return
	}

	normalized, parsedURL, err := parse.NormalizeURLString(item.URL)
	if err != nil {
		taskLog.Debugf("Dropping unparseable URL: %v", err)
		return
	}

	if !c.markVisited(normalized) {
		return
	}
	if !c.inScope(parsedURL) {
		taskLog.Debug("Out of scope")
		return
	}
	if c.cfg.RespectRobotsEnabled() && !c.robots.TestAgent(ctx, parsedURL) {
		taskLog.Debug("Robots-disallowed")
		return
	}
	if c.fetchBudget.Add(-1) < 0 {
		taskLog.Debug("Page budget exhausted")
		return
	}

	page := c.fetchPage(ctx, normalized, parsedURL, item.Depth, taskLog)
	if page == nil {
		return
	}

	c.pagesMu.Lock()
	c.pages = append(c.pages, page)
	total := len(c.pages)
	c.pagesMu.Unlock()
	c.emit("crawl", normalized, 100*float64(total)/float64(c.cfg.MaxPages))

	if page.IsAvailable() && item.Depth < c.effectiveDepth {
		c.discoverLinks(page, item.Depth, taskLog)
	}
}

// markVisited records the URL; false means it was already claimed
func (c *Crawler) markVisited(normalized string) bool {
	c.visitedMu.Lock()
	defer c.visitedMu.Unlock()
	if c.visited[normalized] {
		return false
	}
	c.visited[normalized] = true
	return true
}

// inScope applies the allowed-domain list and include/exclude glob patterns
func (c *Crawler) inScope(parsedURL *url.URL) bool {
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false
	}
	if !c.allowedDomains[strings.ToLower(parsedURL.Hostname())] {
		return false
	}
	path := parsedURL.Path
	if path == "" {
		path = "/"
	}
	if len(c.includePatterns) > 0 && !utils.MatchesAny(path, c.includePatterns) {
		return false
	}
	if utils.MatchesAny(path, c.excludePatterns) {
		return false
	}
	return true
}

// fetchPage performs the rate-limited fetch and extraction for one URL.
// Failures yield a failure record; only budget-irrelevant drops return nil.
func (c *Crawler) fetchPage(ctx context.Context, normalized string, parsedURL *url.URL, depth int, taskLog *logrus.Entry) *models.PageExtract {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil
	}
	defer c.sem.Release(1)

	host := parsedURL.Hostname()
	c.limiter.ApplyDelay(host, c.cfg.DelayPerHost)
	defer c.limiter.UpdateLastRequestTime(host)

	fetchCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, normalized, nil)
	if err != nil {
		taskLog.Errorf("Request creation failed: %v", err)
		return extract.FailedExtract(normalized, depth, 0, utils.WrapErrorf(utils.ErrRequestCreation, "%v", err))
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.fetcher.FetchWithRetry(req, fetchCtx)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		taskLog.Warnf("Fetch failed (%s): %v", utils.CategorizeError(err), err)
		return extract.FailedExtract(normalized, depth, status, err)
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL
	finalNormalized := parse.NormalizeURL(finalURL)
	if finalNormalized != normalized && !c.markVisited(finalNormalized) {
		taskLog.WithField("final_url", finalNormalized).Debug("Redirect target already visited")
		c.fetchBudget.Add(1) // the slot was not used for a new page
		return nil
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") {
		taskLog.WithField("content_type", contentType).Debug("Skipping non-HTML response")
		return extract.FailedExtract(normalized, depth, resp.StatusCode, errors.New("non-HTML content type "+contentType))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return extract.FailedExtract(normalized, depth, resp.StatusCode, utils.WrapErrorf(utils.ErrResponseBodyRead, "%v", err))
	}

	page, err := c.extractor.Extract(normalized, finalURL, resp.StatusCode, resp.Header, body, depth)
	if err != nil {
		taskLog.Errorf("Extraction failed: %v", err)
		return extract.FailedExtract(normalized, depth, resp.StatusCode, err)
	}
	return page
}

// discoverLinks queues the page's in-scope internal link targets
func (c *Crawler) discoverLinks(page *models.PageExtract, depth int, taskLog *logrus.Entry) {
	queued := 0
	for _, link := range page.OutlinksInternal {
		parsed, err := url.Parse(link.TargetURL)
		if err != nil || !c.inScope(parsed) {
			continue
		}
		if c.alreadyVisited(link.TargetURL) {
			continue
		}
		c.enqueue(&models.WorkItem{URL: link.TargetURL, Depth: depth + 1})
		queued++
	}
	if queued > 0 {
		taskLog.WithField("queued", queued).Debug("Discovered links")
	}
}

func (c *Crawler) alreadyVisited(normalized string) bool {
	c.visitedMu.Lock()
	defer c.visitedMu.Unlock()
	return c.visited[normalized]
}

func (c *Crawler) collectedSitemapURLs() []string {
	c.sitemapMu.Lock()
	defer c.sitemapMu.Unlock()
	urls := make([]string, 0, len(c.sitemapURLs))
	for u := range c.sitemapURLs {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// disallowedFunc exposes the robots cache as a predicate for rule evaluation
func (c *Crawler) disallowedFunc(ctx context.Context) func(string) bool {
	if !c.cfg.RespectRobotsEnabled() {
		return func(string) bool { return false }
	}
	return func(rawURL string) bool {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return false
		}
		return !c.robots.TestAgent(ctx, parsed)
	}
}

func (c *Crawler) emit(stage, detail string, percent float64) {
	if c.progress != nil {
		if percent > 100 {
			percent = 100
		}
		c.progress(models.ProgressEvent{Stage: stage, Detail: detail, Percent: percent})
	}
}

// sortPages orders the crawl output deterministically by depth, then URL
func sortPages(pages []*models.PageExtract) {
	sort.Slice(pages, func(i, j int) bool {
		if pages[i].Depth != pages[j].Depth {
			return pages[i].Depth < pages[j].Depth
		}
		return pages[i].URL < pages[j].URL
	})
}

// seedFailed reports whether the start URL itself never produced a usable page
func seedFailed(pages []*models.PageExtract, startURL string) bool {
	for _, page := range pages {
		if page.URL == startURL {
			return page.Status == 0 && page.FetchErr != ""
		}
	}
	return len(pages) == 0
}
