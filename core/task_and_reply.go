package core

import (
	"context"
)

// =============================================================================
// PostTaskAndReply
// =============================================================================

// PostTaskAndReply executes task on targetRunner, then posts reply to replyRunner.
//
// If task panics the reply is not posted; the panic propagates to the target
// runner's panic handler. A reply that cannot be posted because replyRunner
// has been stopped is dropped.
//
// The returned error is the target runner's rejection, if any.
func PostTaskAndReply(targetRunner TaskRunner, task Task, reply Task, replyRunner TaskRunner) error {
	if replyRunner == nil {
		return targetRunner.PostTask(task)
	}

	wrappedTask := func(ctx context.Context) {
		task(ctx)
		// Only reached when task returned normally
		_ = replyRunner.PostTask(reply)
	}

	return targetRunner.PostTask(wrappedTask)
}

// =============================================================================
// Generic PostTaskAndReply with Result
// =============================================================================

// PostTaskAndReplyWithResult executes a task that returns a result of type T and an error,
// then passes that result to a reply callback on the replyRunner.
//
// Execution guarantee (Happens-Before):
// - The task ALWAYS completes before the reply starts
// - The reply ALWAYS sees the final values written by the task
//
// Example:
//
//	PostTaskAndReplyWithResult(
//	    pool,
//	    func(ctx context.Context) (int, error) {
//	        return len("Hello"), nil
//	    },
//	    func(ctx context.Context, length int, err error) {
//	        fmt.Printf("Length: %d\n", length)
//	    },
//	    owner,
//	)
func PostTaskAndReplyWithResult[T any](
	targetRunner TaskRunner,
	task TaskWithResult[T],
	reply ReplyWithResult[T],
	replyRunner TaskRunner,
) error {
	// Captured by both closures; the reply is posted only after the task
	// has written them.
	var result T
	var err error

	wrappedTask := func(ctx context.Context) {
		result, err = task(ctx)
	}

	wrappedReply := func(ctx context.Context) {
		reply(ctx, result, err)
	}

	return PostTaskAndReply(targetRunner, wrappedTask, wrappedReply, replyRunner)
}
