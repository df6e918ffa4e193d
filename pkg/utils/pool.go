package utils

import (
	"sync"
	"sync/atomic"
)

// RunPool processes items [0, itemCount) with a fixed set of workers pulling
// the next index from a shared atomic cursor until exhausted. The pool size is
// clamped to min(workers, itemCount). RunPool returns after every item has
// been processed; completion order of items is unspecified.
func RunPool(workers, itemCount int, fn func(i int)) {
	if itemCount <= 0 {
		return
	}
	if workers > itemCount {
		workers = itemCount
	}
	if workers < 1 {
		workers = 1
	}

	var cursor atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				i := int(cursor.Add(1)) - 1
				if i >= itemCount {
					return
				}
				fn(i)
			}
		}()
	}
	wg.Wait()
}
