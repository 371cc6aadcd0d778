package application

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrTaskPanic wraps a panic recovered from a task.
var ErrTaskPanic = errors.New("task panicked")

// Result is the tagged outcome of one task: exactly one of Value or Err is
// meaningful.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the task succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Task is a unit of concurrent work run by RunAll.
type Task[T any] func(ctx context.Context) (T, error)

// RunAll runs every task with at most limit in flight and waits for all of
// them. Results are returned in task order. A failing or panicking task is
// recorded in its own slot and never cancels its siblings; limit <= 0 means
// unbounded.
func RunAll[T any](ctx context.Context, limit int, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))
	if len(tasks) == 0 {
		return results
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, task := range tasks {
		g.Go(func() error {
			results[i] = runTask(ctx, task)
			// Failures are carried in results; the group only joins.
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func runTask[T any](ctx context.Context, task Task[T]) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			res = Result[T]{Err: fmt.Errorf("%w: %v", ErrTaskPanic, r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return Result[T]{Err: err}
	}
	v, err := task(ctx)
	if err != nil {
		return Result[T]{Err: err}
	}
	return Result[T]{Value: v}
}
