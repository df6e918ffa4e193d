package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsHandler fetches, parses and caches robots.txt data per host.
// A nil cache entry means the file could not be obtained or parsed; in that
// case access is assumed allowed, matching common crawler behavior.
type RobotsHandler struct {
	fetcher       HTTPFetcher
	rateLimiter   *RateLimiter
	delayPerHost  time.Duration
	userAgent     string
	robotsCache   map[string]*robotstxt.RobotsData // hostname -> parsed data (or nil)
	robotsCacheMu sync.Mutex
	log           *logrus.Entry
}

// NewRobotsHandler creates a RobotsHandler
func NewRobotsHandler(fetcher HTTPFetcher, rateLimiter *RateLimiter, delayPerHost time.Duration, userAgent string, log *logrus.Entry) *RobotsHandler {
	return &RobotsHandler{
		fetcher:      fetcher,
		rateLimiter:  rateLimiter,
		delayPerHost: delayPerHost,
		userAgent:    userAgent,
		robotsCache:  make(map[string]*robotstxt.RobotsData),
		log:          log,
	}
}

// GetRobotsData retrieves robots.txt data for the targetURL's host, using the
// cache or fetching on miss. Returns nil on any fetch/parse failure.
func (rh *RobotsHandler) GetRobotsData(ctx context.Context, targetURL *url.URL) *robotstxt.RobotsData {
	host := targetURL.Hostname()

	rh.robotsCacheMu.Lock()
	robotsData, found := rh.robotsCache[host]
	rh.robotsCacheMu.Unlock()
	if found {
		return robotsData
	}

	robotsURL := &url.URL{Scheme: targetURL.Scheme, Host: targetURL.Host, Path: "/robots.txt"}
	if robotsURL.Scheme != "http" && robotsURL.Scheme != "https" {
		robotsURL.Scheme = "https"
	}
	robotsLog := rh.log.WithFields(logrus.Fields{"host": host, "robots_url": robotsURL.String()})
	robotsLog.Info("Fetching robots.txt...")

	data := rh.fetchAndParse(ctx, robotsURL.String(), robotsLog)

	rh.robotsCacheMu.Lock()
	rh.robotsCache[host] = data
	rh.robotsCacheMu.Unlock()
	return data
}

func (rh *RobotsHandler) fetchAndParse(ctx context.Context, robotsURL string, robotsLog *logrus.Entry) *robotstxt.RobotsData {
	if u, parseErr := url.Parse(robotsURL); parseErr == nil && rh.rateLimiter != nil {
		rh.rateLimiter.ApplyDelay(u.Hostname(), rh.delayPerHost)
		defer rh.rateLimiter.UpdateLastRequestTime(u.Hostname())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		robotsLog.Errorf("Error creating request: %v", err)
		return nil
	}
	req.Header.Set("User-Agent", rh.userAgent)

	resp, fetchErr := rh.fetcher.FetchWithRetry(req, ctx)
	if fetchErr != nil {
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		robotsLog.Warnf("Fetching robots.txt failed: %v", fetchErr)
		return nil
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		robotsLog.Errorf("Error reading body: %v", err)
		return nil
	}
	data, err := robotstxt.FromBytes(bodyBytes)
	if err != nil {
		robotsLog.Errorf("Error parsing content: %v", err)
		return nil
	}

	robotsLog.WithField("sitemaps", len(data.Sitemaps)).Info("Fetched and parsed robots.txt")
	return data
}

// TestAgent reports whether the configured user agent may access targetURL.
// Returns true when robots data could not be obtained.
func (rh *RobotsHandler) TestAgent(ctx context.Context, targetURL *url.URL) bool {
	robotsData := rh.GetRobotsData(ctx, targetURL)
	if robotsData == nil {
		return true
	}
	return robotsData.TestAgent(targetURL.RequestURI(), rh.userAgent)
}

// Sitemaps returns the sitemap URLs declared in the host's robots.txt
func (rh *RobotsHandler) Sitemaps(ctx context.Context, seedURL *url.URL) []string {
	robotsData := rh.GetRobotsData(ctx, seedURL)
	if robotsData == nil {
		return nil
	}
	return robotsData.Sitemaps
}
