package core

import (
	"context"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// =============================================================================
// TaskRunner: Define task submission interface
// =============================================================================

// TaskRunner accepts tasks for asynchronous execution.
//
// PostTask returns ErrRunnerClosed once the runner no longer accepts work;
// the task is dropped in that case.
type TaskRunner interface {
	PostTask(task Task) error
}

// TaskRunnerFunc adapts a function to TaskRunner.
type TaskRunnerFunc func(task Task) error

func (f TaskRunnerFunc) PostTask(task Task) error { return f(task) }

// TaskWithResult is background work producing a value for a reply.
type TaskWithResult[T any] func(ctx context.Context) (T, error)

// ReplyWithResult receives the value produced by a TaskWithResult.
type ReplyWithResult[T any] func(ctx context.Context, result T, err error)

// =============================================================================
// Context Helper
// =============================================================================
type taskRunnerKeyType struct{}

var taskRunnerKey taskRunnerKeyType

// GetCurrentTaskRunner returns the runner executing the task that owns ctx.
func GetCurrentTaskRunner(ctx context.Context) TaskRunner {
	if v := ctx.Value(taskRunnerKey); v != nil {
		return v.(TaskRunner)
	}
	return nil
}
