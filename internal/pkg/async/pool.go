// Package async provides a small fan-out worker pool for independent tasks
// whose results are collected by name.
package async

import (
	"context"
	"sync"
)

// Task is one unit of work identified by a unique name.
type Task struct {
	Name    string
	Execute func() (interface{}, error)
}

// Result carries a task's outcome back to the caller.
type Result struct {
	Name string
	Data interface{}
	Err  error
}

// Pool runs tasks across a fixed number of workers. A Pool is reusable;
// each Execute call gets its own channels.
type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

// Execute runs all tasks and returns their results keyed by task name.
// Cancellation of the context stops dispatch and returns whatever results
// arrived so far.
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	results := make(map[string]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	taskCh := make(chan Task)
	resultCh := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case task, ok := <-taskCh:
					if !ok {
						return
					}
					data, err := task.Execute()
					resultCh <- Result{Name: task.Name, Data: data, Err: err}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(taskCh)
		for _, task := range tasks {
			select {
			case taskCh <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	for i := 0; i < len(tasks); i++ {
		select {
		case result := <-resultCh:
			results[result.Name] = result
		case <-ctx.Done():
			return results
		}
	}
	wg.Wait()

	return results
}
