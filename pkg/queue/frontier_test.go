package queue

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"site-audit/pkg/models"
)

// testLogger returns a logger that discards output
func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestFrontier_BreadthFirstOrder(t *testing.T) {
	f := NewFrontier(testLogger())

	f.Add(&models.WorkItem{URL: "https://site.test/deep", Depth: 3})
	f.Add(&models.WorkItem{URL: "https://site.test/", Depth: 0})
	f.Add(&models.WorkItem{URL: "https://site.test/mid", Depth: 1})

	expected := []string{"https://site.test/", "https://site.test/mid", "https://site.test/deep"}
	for _, want := range expected {
		item, ok := f.Pop()
		if !ok {
			t.Fatal("expected item, frontier reported closed")
		}
		if item.URL != want {
			t.Errorf("expected %s, got %s", want, item.URL)
		}
	}
}

func TestFrontier_SameDepthDiscoveryOrder(t *testing.T) {
	f := NewFrontier(testLogger())

	urls := []string{"https://site.test/a", "https://site.test/b", "https://site.test/c"}
	for _, u := range urls {
		f.Add(&models.WorkItem{URL: u, Depth: 1})
	}

	for _, want := range urls {
		item, _ := f.Pop()
		if item.URL != want {
			t.Errorf("expected %s, got %s", want, item.URL)
		}
	}
}

func TestFrontier_PopBlocksUntilAdd(t *testing.T) {
	f := NewFrontier(testLogger())

	done := make(chan string, 1)
	go func() {
		item, ok := f.Pop()
		if !ok {
			done <- ""
			return
		}
		done <- item.URL
	}()

	time.Sleep(50 * time.Millisecond)
	f.Add(&models.WorkItem{URL: "https://site.test/late", Depth: 0})

	select {
	case got := <-done:
		if got != "https://site.test/late" {
			t.Errorf("expected the late item, got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not wake after Add")
	}
}

func TestFrontier_CloseWakesAllConsumers(t *testing.T) {
	f := NewFrontier(testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if item, ok := f.Pop(); ok {
				t.Errorf("expected closed signal, got item %v", item)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	f.Close()

	closed := make(chan struct{})
	go func() { wg.Wait(); close(closed) }()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("consumers did not wake on Close")
	}
}

func TestFrontier_AddAfterCloseDropped(t *testing.T) {
	f := NewFrontier(testLogger())
	f.Close()
	if f.Add(&models.WorkItem{URL: "https://site.test/", Depth: 0}) {
		t.Error("expected Add on a closed frontier to report the drop")
	}
	if f.Len() != 0 {
		t.Errorf("expected closed frontier to drop adds, len=%d", f.Len())
	}
}
