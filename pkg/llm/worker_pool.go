package llm

import (
	"context"
	"sync"
	"time"
)

// WorkerPool bounds concurrent calls against an external service with a
// semaphore and applies a per-item timeout. Used for embedding and
// enrichment batches where the provider tolerates limited parallelism.
type WorkerPool struct {
	concurrency int
	itemTimeout time.Duration
}

// NewWorkerPool creates a pool with the given concurrency and per-item timeout.
// Concurrency below 1 is clamped to 1.
func NewWorkerPool(concurrency int, itemTimeout time.Duration) *WorkerPool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &WorkerPool{
		concurrency: concurrency,
		itemTimeout: itemTimeout,
	}
}

// Result pairs a processed item with the error that produced it, keyed by
// the item's position in the input slice.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Process runs fn over each item with bounded concurrency and returns results
// in input order. Each invocation gets its own timeout derived from ctx.
// A failed item produces a Result with Err set; other items are unaffected.
func Process[I, O any](ctx context.Context, pool *WorkerPool, items []I, fn func(ctx context.Context, item I) (O, error)) []Result[O] {
	results := make([]Result[O], len(items))
	sem := make(chan struct{}, pool.concurrency)

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(idx int, it I) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = Result[O]{Index: idx, Err: ctx.Err()}
				return
			}

			itemCtx := ctx
			if pool.itemTimeout > 0 {
				var cancel context.CancelFunc
				itemCtx, cancel = context.WithTimeout(ctx, pool.itemTimeout)
				defer cancel()
			}

			value, err := fn(itemCtx, it)
			results[idx] = Result[O]{Index: idx, Value: value, Err: err}
		}(i, item)
	}
	wg.Wait()

	return results
}
