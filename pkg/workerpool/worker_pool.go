package workerpool

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config configures batched execution against a rate-limited third party.
type Config struct {
	MaxConcurrent int           // items in flight per batch (default: 5)
	BatchDelay    time.Duration // minimum spacing between batch starts (default: 1s)
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 5,
		BatchDelay:    time.Second,
	}
}

// Pool runs work items in fixed-size batches. Items inside a batch run
// concurrently; batches start no closer together than BatchDelay.
type Pool struct {
	config  Config
	limiter *rate.Limiter
}

func New(config Config) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 5
	}
	limit := rate.Inf
	if config.BatchDelay > 0 {
		limit = rate.Every(config.BatchDelay)
	}
	return &Pool{
		config:  config,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// WorkItem represents a unit of work to be processed.
type WorkItem[T any] struct {
	ID      string
	Execute func(ctx context.Context) (T, error)
}

// WorkResult represents the result of a work item.
type WorkResult[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process executes all items and returns results in submission order.
// Failed items do not stop the run. Once ctx is done the remaining items
// are reported with ctx.Err() without being executed.
func Process[T any](ctx context.Context, pool *Pool, items []WorkItem[T]) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]WorkResult[T], len(items))
	size := pool.config.MaxConcurrent

	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))

		if err := pool.limiter.Wait(ctx); err != nil {
			for i := start; i < len(items); i++ {
				results[i] = WorkResult[T]{ID: items[i].ID, Err: ctxErr(ctx, err)}
			}
			return results
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := items[i].Execute(ctx)
				results[i] = WorkResult[T]{ID: items[i].ID, Result: res, Err: err}
			}(i)
		}
		wg.Wait()
	}

	return results
}

func ctxErr(ctx context.Context, fallback error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fallback
}
