// Package async runs independent operations concurrently.
//
// The connection pool uses it to close every cached SSH transport at once
// during teardown, so one slow or wedged host does not serialize the rest.
package async

import (
	"context"
	"errors"
	"fmt"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel executes all tasks concurrently and waits for every one of
// them. Errors are joined in completion order, each prefixed with the task
// name; nil is returned when every task succeeds.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "555", Func: closeConn555},
//	    {Name: "42", Func: closeConn42},
//	}
//	if err := RunParallel(ctx, tasks); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	type result struct {
		name string
		err  error
	}

	resultChan := make(chan result, len(tasks))

	for _, task := range tasks {
		go func() {
			resultChan <- result{name: task.Name, err: task.Func(ctx)}
		}()
	}

	var errs []error
	for range len(tasks) {
		res := <-resultChan
		if res.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.name, res.err))
		}
	}

	return errors.Join(errs...)
}
