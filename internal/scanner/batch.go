package scanner

import (
	"sync"

	"github.com/Will-Luck/Docker-Sentinel/internal/cancel"
)

// BatchScan maintains exactly batchSize in-flight calls to probe: it seeds
// the initial window, then for every completed probe either admits the
// next item or drains if inputs are exhausted. Cancellation short-circuits
// admission — no new probe starts — and in-flight completions are
// collected but their outputs are dropped (spec.md §4.1 "Bounded-
// parallelism primitive").
func BatchScan[T, R any](items []T, batchSize int, token *cancel.Token, probe func(T) R) []R {
	if batchSize < 1 {
		batchSize = 1
	}

	results := make([]R, 0, len(items))
	var mu sync.Mutex
	var wg sync.WaitGroup

	next := 0
	var admit func()
	admit = func() {
		mu.Lock()
		if token.Cancelled() || next >= len(items) {
			mu.Unlock()
			return
		}
		item := items[next]
		next++
		mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			r := probe(item)
			if !token.Cancelled() {
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}
			admit()
		}()
	}

	window := batchSize
	if window > len(items) {
		window = len(items)
	}
	for i := 0; i < window; i++ {
		admit()
	}
	wg.Wait()

	return results
}
