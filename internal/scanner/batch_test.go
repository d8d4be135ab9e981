package scanner

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/Will-Luck/Docker-Sentinel/internal/cancel"
)

func TestBatchScanVisitsEveryItem(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	token := cancel.New()

	results := BatchScan(items, 3, token, func(n int) int { return n * 2 })

	if len(results) != len(items) {
		t.Fatalf("got %d results, want %d", len(results), len(items))
	}
	var sum int
	for _, r := range results {
		sum += r
	}
	if sum != 110 {
		t.Errorf("sum = %d, want 110", sum)
	}
}

func TestBatchScanNeverExceedsBatchSize(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}
	token := cancel.New()

	var inFlight int32
	var maxSeen int32
	BatchScan(items, 4, token, func(n int) int {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			max := atomic.LoadInt32(&maxSeen)
			if cur <= max || atomic.CompareAndSwapInt32(&maxSeen, max, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return n
	})

	if maxSeen > 4 {
		t.Errorf("observed %d concurrent probes, want <= 4", maxSeen)
	}
}

func TestBatchScanDropsResultsAfterCancel(t *testing.T) {
	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}
	token := cancel.New()

	var started int32
	results := BatchScan(items, 2, token, func(n int) int {
		if atomic.AddInt32(&started, 1) == 3 {
			token.Cancel()
		}
		return n
	})

	if len(results) >= len(items) {
		t.Errorf("got %d results after cancellation, want fewer than %d", len(results), len(items))
	}
}
