package fetch

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// StatusResult is the outcome of a status probe. Status is 0 when the URL
// could not be resolved; Err carries the failure message in that case.
type StatusResult struct {
	Status int
	Err    string
}

// Resolved reports whether a usable HTTP status was obtained
func (r StatusResult) Resolved() bool {
	return r.Status != 0
}

// resolveCall tracks one in-flight resolution; done is closed once res is set
type resolveCall struct {
	done chan struct{}
	res  StatusResult
}

// StatusResolver probes URLs for their HTTP status with a HEAD request,
// falling back to GET when HEAD is inconclusive. Concurrent callers asking
// for the same URL share a single in-flight probe: the pending map memoizes
// calls by URL and entries are never evicted, so each distinct URL is
// resolved at most once per resolver lifetime.
type StatusResolver struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration

	pendingMu sync.Mutex
	pending   map[string]*resolveCall

	log *logrus.Entry
}

// NewStatusResolver creates a StatusResolver. The resolver is scoped to a
// single rule pass; create a fresh one per run.
func NewStatusResolver(client *http.Client, userAgent string, timeout time.Duration, log *logrus.Entry) *StatusResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StatusResolver{
		client:    client,
		userAgent: userAgent,
		timeout:   timeout,
		pending:   make(map[string]*resolveCall),
		log:       log,
	}
}

// Resolve returns the HTTP status for targetURL, deduplicating concurrent
// requests for the same URL. Never returns an error value; failures are
// reported inside the StatusResult.
func (sr *StatusResolver) Resolve(ctx context.Context, targetURL string) StatusResult {
	sr.pendingMu.Lock()
	if call, inflight := sr.pending[targetURL]; inflight {
		sr.pendingMu.Unlock()
		select {
		case <-call.done:
			return call.res
		case <-ctx.Done():
			return StatusResult{Err: ctx.Err().Error()}
		}
	}
	call := &resolveCall{done: make(chan struct{})}
	sr.pending[targetURL] = call
	sr.pendingMu.Unlock()

	call.res = sr.probe(ctx, targetURL)
	close(call.done)
	return call.res
}

// probe performs the actual network work: HEAD first, GET on failure or on
// servers that reject HEAD (405/501).
func (sr *StatusResolver) probe(ctx context.Context, targetURL string) StatusResult {
	probeLog := sr.log.WithField("url", targetURL)

	status, err := sr.request(ctx, http.MethodHead, targetURL)
	if err == nil && status != http.StatusMethodNotAllowed && status != http.StatusNotImplemented {
		probeLog.WithField("status", status).Debug("Resolved via HEAD")
		return StatusResult{Status: status}
	}
	if err != nil {
		probeLog.Debugf("HEAD probe failed (%v), falling back to GET", err)
	} else {
		probeLog.WithField("status", status).Debug("HEAD rejected, falling back to GET")
	}

	status, err = sr.request(ctx, http.MethodGet, targetURL)
	if err != nil {
		probeLog.Debugf("GET fallback failed: %v", err)
		return StatusResult{Err: err.Error()}
	}
	probeLog.WithField("status", status).Debug("Resolved via GET")
	return StatusResult{Status: status}
}

func (sr *StatusResolver) request(ctx context.Context, method, targetURL string) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, sr.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, targetURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", sr.userAgent)

	resp, err := sr.client.Do(req)
	if err != nil {
		return 0, err
	}
	drainAndClose(resp)
	return resp.StatusCode, nil
}
