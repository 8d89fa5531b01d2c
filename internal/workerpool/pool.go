// Package workerpool runs a fixed number of goroutines over a channel
// of tasks, grounded on the teacher's wordidx.AggIndex.StartFromPaths
// idiom: a channel of work fed by one producer, drained by N workers,
// synchronized with a sync.WaitGroup.
package workerpool

import (
	"context"
	"runtime"
	"sync"
)

// Run executes fn once per item, using at most workers goroutines
// concurrently. Results are written back at the item's original index,
// so the returned slice preserves input order even though fn calls
// interleave nondeterministically (§5: "deterministic assembly despite
// nondeterministic interleaving").
//
// workers <= 0 falls back to GOMAXPROCS, matching StartFromPaths.
// If ctx is cancelled, workers stop pulling new tasks; items not yet
// started are left at their zero Result value with ctx.Err() in Errs.
func Run[T, R any](ctx context.Context, items []T, workers int, fn func(context.Context, T) (R, error)) (results []R, errs []error) {
	n := len(items)
	results = make([]R, n)
	errs = make([]error, n)
	if n == 0 {
		return results, errs
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	type task struct {
		index int
		item  T
	}
	tasks := make(chan task, n)
	for i, item := range items {
		tasks <- task{index: i, item: item}
	}
	close(tasks)

	done := make([]bool, n)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-tasks:
					if !ok {
						return
					}
					r, err := fn(ctx, t.item)
					results[t.index] = r
					errs[t.index] = err
					done[t.index] = true
				}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		for i := range errs {
			if !done[i] {
				errs[i] = err
			}
		}
	}
	return results, errs
}
