package jobs

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Result is the outcome of one task in a batch run.
type Result struct {
	Key string
	Err error
}

// TaskFunc processes one keyed task.
type TaskFunc func(ctx context.Context, key string) error

// Pool fans a fixed set of keyed tasks over a bounded worker group and
// collects per-task outcomes. Tasks are isolated: one failure never stops
// the rest of the batch. Results come back in input order.
type Pool struct {
	workers int
	logger  *zap.Logger
}

// NewPool builds a pool with the given concurrency.
func NewPool(workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{workers: workers, logger: logger}
}

// Run executes fn for every key. A cancelled context fails the remaining
// tasks with the context error instead of starting them.
func (p *Pool) Run(ctx context.Context, keys []string, fn TaskFunc) []Result {
	results := make([]Result, len(keys))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = Result{Key: keys[i], Err: p.runOne(ctx, keys[i], fn)}
			}
		}()
	}

	for i := range keys {
		indexes <- i
	}
	close(indexes)
	wg.Wait()
	return results
}

func (p *Pool) runOne(ctx context.Context, key string, fn TaskFunc) (err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
			p.logger.Error("batch task panic", zap.String("key", key), zap.Any("panic", r))
		}
	}()
	return fn(ctx, key)
}
