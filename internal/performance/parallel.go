// Package performance runs independent I/O tasks concurrently.
package performance

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of work.
type Task struct {
	ID  string
	Run func(ctx context.Context) error
}

// TaskResult is the outcome of one task. Tasks that never started because
// an earlier one failed have Skipped set.
type TaskResult struct {
	TaskID   string
	Err      error
	Duration time.Duration
	Skipped  bool
}

// ParallelExecutor runs tasks with bounded concurrency.
type ParallelExecutor struct {
	maxWorkers int
}

// NewParallelExecutor returns an executor running at most maxWorkers tasks at
// a time. maxWorkers < 1 runs tasks one by one.
func NewParallelExecutor(maxWorkers int) *ParallelExecutor {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &ParallelExecutor{maxWorkers: maxWorkers}
}

// Execute runs tasks and returns their results in task order. The first
// failure cancels the context passed to running tasks, stops new ones from
// starting and is returned.
func (e *ParallelExecutor) Execute(ctx context.Context, tasks []Task) ([]TaskResult, error) {
	results := make([]TaskResult, len(tasks))
	for i, t := range tasks {
		results[i] = TaskResult{TaskID: t.ID, Skipped: true}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxWorkers)
	var mu sync.Mutex
	for i, t := range tasks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			start := time.Now()
			err := t.Run(gctx)
			mu.Lock()
			results[i] = TaskResult{TaskID: t.ID, Err: err, Duration: time.Since(start)}
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return results, err
}
