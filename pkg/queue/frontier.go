package queue

import (
	"container/heap"
	"sync"

	"github.com/sirupsen/logrus"

	"site-audit/pkg/models"
)

// frontierItem is one queued URL with its heap bookkeeping
type frontierItem struct {
	work     *models.WorkItem
	priority int // lower is popped first
	seq      int // insertion order, tie-break for equal priority
	index    int
}

// frontierHeap implements heap.Interface ordered by (priority, seq), so the
// frontier behaves breadth-first: shallower pages drain before deeper ones,
// and pages at the same depth drain in discovery order.
type frontierHeap []*frontierItem

func (fh frontierHeap) Len() int { return len(fh) }

func (fh frontierHeap) Less(i, j int) bool {
	if fh[i].priority != fh[j].priority {
		return fh[i].priority < fh[j].priority
	}
	return fh[i].seq < fh[j].seq
}

func (fh frontierHeap) Swap(i, j int) {
	fh[i], fh[j] = fh[j], fh[i]
	fh[i].index = i
	fh[j].index = j
}

func (fh *frontierHeap) Push(x any) {
	item := x.(*frontierItem)
	item.index = len(*fh)
	*fh = append(*fh, item)
}

func (fh *frontierHeap) Pop() any {
	old := *fh
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*fh = old[0 : n-1]
	return item
}

// Frontier is the crawl work queue: a depth-ordered priority queue safe for
// concurrent producers and consumers. Pop blocks until work arrives or the
// frontier is closed.
type Frontier struct {
	heap    frontierHeap
	mu      sync.Mutex
	cond    *sync.Cond
	nextSeq int
	closed  bool
	log     *logrus.Logger
}

// NewFrontier creates an empty Frontier
func NewFrontier(log *logrus.Logger) *Frontier {
	f := &Frontier{log: log}
	f.cond = sync.NewCond(&f.mu)
	heap.Init(&f.heap)
	return f
}

// Add queues a work item, prioritized by its depth. Returns false when the
// frontier is already closed and the item was dropped.
func (f *Frontier) Add(item *models.WorkItem) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		f.log.Warnf("Dropping item added to closed frontier: %s", item.URL)
		return false
	}

	heap.Push(&f.heap, &frontierItem{
		work:     item,
		priority: item.Depth,
		seq:      f.nextSeq,
	})
	f.nextSeq++
	f.cond.Signal()
	return true
}

// Pop removes the shallowest queued item, blocking while the frontier is
// empty. Returns (nil, false) once the frontier is closed and drained.
func (f *Frontier) Pop() (*models.WorkItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.heap) == 0 {
		if f.closed {
			return nil, false
		}
		f.cond.Wait()
	}

	item := heap.Pop(&f.heap).(*frontierItem)
	return item.work, true
}

// Close marks the frontier complete and wakes all blocked consumers
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.cond.Broadcast()
	}
}

// Len returns the number of queued items
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.heap)
}
