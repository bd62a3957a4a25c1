package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
)

// forEach runs fn over indices [0, n) with at most workers goroutines.
// Workers pull the next index from a shared counter and finish an item
// before taking another. It returns once every worker has exited.
func forEach(ctx context.Context, n, workers int, fn func(ctx context.Context, i int)) {
	if n == 0 {
		return
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	var next atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1) - 1)
				if i >= n {
					return
				}
				fn(ctx, i)
			}
		}()
	}
	wg.Wait()
}

// collect runs fn for every item on a bounded pool and keeps the results
// in input order. Items whose fn reports ok=false leave a zero slot.
func collect[T, R any](ctx context.Context, items []T, workers int, fn func(ctx context.Context, item T) (R, bool)) ([]R, []bool) {
	out := make([]R, len(items))
	ok := make([]bool, len(items))
	forEach(ctx, len(items), workers, func(ctx context.Context, i int) {
		out[i], ok[i] = fn(ctx, items[i])
	})
	return out, ok
}
