package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testEntry() *logrus.Entry {
	return logrus.NewEntry(testLogger())
}

func TestResolve_HeadSuccess(t *testing.T) {
	var headCount, getCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			headCount.Add(1)
		case http.MethodGet:
			getCount.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	resolver := NewStatusResolver(testClient(), "site-audit-test/1.0", 5*time.Second, testEntry())
	res := resolver.Resolve(context.Background(), server.URL)

	if !res.Resolved() {
		t.Fatalf("expected resolved status, got error: %q", res.Err)
	}
	if res.Status != http.StatusOK {
		t.Errorf("expected status 200, got %d", res.Status)
	}
	if headCount.Load() != 1 {
		t.Errorf("expected 1 HEAD request, got %d", headCount.Load())
	}
	if getCount.Load() != 0 {
		t.Errorf("expected no GET request when HEAD succeeds, got %d", getCount.Load())
	}
}

func TestResolve_HeadRejected_FallsBackToGet(t *testing.T) {
	var getCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		getCount.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	resolver := NewStatusResolver(testClient(), "site-audit-test/1.0", 5*time.Second, testEntry())
	res := resolver.Resolve(context.Background(), server.URL)

	if res.Status != http.StatusOK {
		t.Fatalf("expected 200 via GET fallback, got %d (err %q)", res.Status, res.Err)
	}
	if getCount.Load() != 1 {
		t.Errorf("expected 1 GET fallback request, got %d", getCount.Load())
	}
}

func TestResolve_NetworkFailure_ReturnsErrorResult(t *testing.T) {
	// Closed server: connection refused on every probe
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	resolver := NewStatusResolver(testClient(), "site-audit-test/1.0", 2*time.Second, testEntry())
	res := resolver.Resolve(context.Background(), server.URL)

	if res.Resolved() {
		t.Fatalf("expected unresolved result, got status %d", res.Status)
	}
	if res.Err == "" {
		t.Error("expected a failure message")
	}
}

func TestResolve_DeduplicatesConcurrentCalls(t *testing.T) {
	var requests atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		<-release // hold every probe until all callers are queued
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	resolver := NewStatusResolver(testClient(), "site-audit-test/1.0", 10*time.Second, testEntry())

	const callers = 8
	var wg sync.WaitGroup
	results := make([]StatusResult, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = resolver.Resolve(context.Background(), server.URL)
		}(i)
	}

	// Give the goroutines a moment to either start the probe or park on it
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := requests.Load(); got != 1 {
		t.Errorf("expected exactly 1 network request for %d concurrent callers, got %d", callers, got)
	}
	for i, res := range results {
		if res.Status != http.StatusOK {
			t.Errorf("caller %d: expected shared status 200, got %d (err %q)", i, res.Status, res.Err)
		}
	}
}

func TestResolve_MemoizesAcrossSequentialCalls(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	resolver := NewStatusResolver(testClient(), "site-audit-test/1.0", 5*time.Second, testEntry())

	first := resolver.Resolve(context.Background(), server.URL)
	second := resolver.Resolve(context.Background(), server.URL)

	if first.Status != http.StatusNotFound || second.Status != http.StatusNotFound {
		t.Errorf("expected both calls to see 404, got %d and %d", first.Status, second.Status)
	}
	if requests.Load() != 1 {
		t.Errorf("expected the second call to reuse the memoized result, got %d requests", requests.Load())
	}
}
