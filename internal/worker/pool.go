package worker

import (
	"context"
	"sync"
)

// Task is one unit of pool work
type Task[R any] func(ctx context.Context) (R, error)

// Outcome pairs a task's value with its error
type Outcome[R any] struct {
	Value R
	Err   error
}

// Pool runs tasks on a fixed number of goroutines
type Pool[R any] struct {
	workers int
}

// NewPool creates a pool; fewer than one worker means one
func NewPool[R any](workers int) *Pool[R] {
	if workers <= 0 {
		workers = 1
	}
	return &Pool[R]{workers: workers}
}

// Run executes every task and returns outcomes in task order. Once ctx is
// done, tasks that have not started are skipped with ctx.Err() as their
// error; running tasks see the cancellation through their context.
func (p *Pool[R]) Run(ctx context.Context, tasks []Task[R]) []Outcome[R] {
	out := make([]Outcome[R], len(tasks))
	if len(tasks) == 0 {
		return out
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for range min(p.workers, len(tasks)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if err := ctx.Err(); err != nil {
					out[i].Err = err
					continue
				}
				out[i].Value, out[i].Err = tasks[i](ctx)
			}
		}()
	}

	for i := range tasks {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return out
}
