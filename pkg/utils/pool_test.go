package utils

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunPool_ProcessesEveryItemExactlyOnce(t *testing.T) {
	const items = 100
	var mu sync.Mutex
	seen := make(map[int]int)

	RunPool(12, items, func(i int) {
		mu.Lock()
		seen[i]++
		mu.Unlock()
	})

	assert.Len(t, seen, items)
	for i, count := range seen {
		assert.Equalf(t, 1, count, "item %d processed %d times", i, count)
	}
}

func TestRunPool_ZeroItems(t *testing.T) {
	called := false
	RunPool(8, 0, func(i int) { called = true })
	assert.False(t, called)
}

func TestRunPool_ClampsWorkersToItemCount(t *testing.T) {
	var concurrent atomic.Int64
	var peak atomic.Int64

	RunPool(12, 3, func(i int) {
		cur := concurrent.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		concurrent.Add(-1)
	})

	assert.LessOrEqual(t, peak.Load(), int64(3))
}

func TestRunPool_SingleWorkerRunsSequentially(t *testing.T) {
	var order []int
	RunPool(1, 5, func(i int) {
		order = append(order, i)
	})
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}
