// Package async runs named tasks on a bounded set of goroutines.
package async

import (
	"context"
	"fmt"
	"sync"
)

type Task struct {
	Name    string
	Execute func(ctx context.Context) (any, error)
}

type Result struct {
	Name string
	Data any
	Err  error
}

// Pool bounds how many tasks run at once. A Pool is safe for concurrent use;
// every Execute call gets its own queues.
type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

// Execute runs tasks and returns their results keyed by task name. Tasks not
// finished when ctx is done are missing from the map. A panicking task is
// reported as an error.
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	queue := make(chan Task)
	results := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < min(p.workerCount, len(tasks)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				results <- run(ctx, task)
			}
		}()
	}

	go func() {
		defer close(queue)
		for _, task := range tasks {
			select {
			case queue <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make(map[string]Result, len(tasks))
	for {
		select {
		case result, ok := <-results:
			if !ok {
				return collected
			}
			collected[result.Name] = result
		case <-ctx.Done():
			return collected
		}
	}
}

func run(ctx context.Context, task Task) (result Result) {
	result.Name = task.Name
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()
	result.Data, result.Err = task.Execute(ctx)
	return result
}
