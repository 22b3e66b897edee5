package parallel

import (
	"context"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/adaizjx/abess/pkg/errors"
)

// Parallelize divides items into one contiguous range per CPU core and runs fn on each
// range concurrently.
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially on [0, items) when items <= threshold,
// and falls back to Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// Workers normalizes a worker count: values below 1 mean runtime.NumCPU().
func Workers(n int) int {
	if n < 1 {
		return runtime.NumCPU()
	}
	return n
}

// ForEach calls fn(ctx, i) for every i in [0, items) on at most workers goroutines.
// The first error cancels the context passed to the remaining calls and is returned.
// With workers == 1 the calls run in order on the calling goroutine; otherwise a panic
// in fn is returned as an *errors.PanicError.
func ForEach(ctx context.Context, items, workers int, fn func(ctx context.Context, i int) error) error {
	if items == 0 {
		return ctx.Err()
	}
	workers = Workers(workers)
	if workers > items {
		workers = items
	}

	if workers == 1 {
		for i := 0; i < items; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	p := pool.New().
		WithMaxGoroutines(workers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for i := 0; i < items; i++ {
		i := i
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return errors.SafeExecute("parallel.ForEach", func() error {
				return fn(ctx, i)
			})
		})
	}
	return p.Wait()
}

// Map is ForEach collecting one result per index, in index order.
func Map[T any](ctx context.Context, items, workers int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	out := make([]T, items)
	err := ForEach(ctx, items, workers, func(ctx context.Context, i int) error {
		v, err := fn(ctx, i)
		if err != nil {
			return err
		}
		out[i] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
