package core

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

const defaultOwnerQueueSize = 256

// SingleThreadTaskRunner binds a dedicated goroutine to execute tasks sequentially.
// It guarantees that all tasks submitted to it run on the same goroutine.
//
// Every controller owns one of these as its owner thread: run bodies, unit
// replies and every state mutation execute here, in posting order.
type SingleThreadTaskRunner struct {
	workQueue chan Task

	// Lifecycle control
	ctx    context.Context
	cancel context.CancelFunc

	stopped chan struct{}
	once    sync.Once
	closed  atomic.Bool

	running  atomic.Int32
	rejected atomic.Int64

	name         string
	panicHandler PanicHandler
	metrics      Metrics
}

// SingleThreadOptions configures a SingleThreadTaskRunner. Zero values use defaults.
type SingleThreadOptions struct {
	Name         string
	QueueSize    int
	PanicHandler PanicHandler
	Metrics      Metrics
}

// NewSingleThreadTaskRunner creates and starts a new SingleThreadTaskRunner.
// It immediately spawns a dedicated goroutine for task execution.
func NewSingleThreadTaskRunner(opts SingleThreadOptions) *SingleThreadTaskRunner {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultOwnerQueueSize
	}
	if opts.Name == "" {
		opts.Name = "single-thread"
	}
	if opts.PanicHandler == nil {
		opts.PanicHandler = &DefaultPanicHandler{}
	}
	if opts.Metrics == nil {
		opts.Metrics = &NilMetrics{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &SingleThreadTaskRunner{
		workQueue:    make(chan Task, opts.QueueSize),
		ctx:          ctx,
		cancel:       cancel,
		stopped:      make(chan struct{}),
		name:         opts.Name,
		panicHandler: opts.PanicHandler,
		metrics:      opts.Metrics,
	}

	go r.runLoop()

	return r
}

// Name returns the name of the task runner
func (r *SingleThreadTaskRunner) Name() string {
	return r.name
}

// PostTask submits a task for execution.
// Blocks while the queue is full; returns ErrRunnerClosed once stopped.
func (r *SingleThreadTaskRunner) PostTask(task Task) error {
	if r.closed.Load() {
		r.rejected.Add(1)
		return ErrRunnerClosed
	}

	select {
	case <-r.ctx.Done():
		r.rejected.Add(1)
		return ErrRunnerClosed
	case r.workQueue <- task:
		return nil
	}
}

// IsClosed returns true if the runner has been stopped
func (r *SingleThreadTaskRunner) IsClosed() bool {
	return r.closed.Load()
}

// Stop stops the runner after the current task completes.
// Tasks still queued are dropped.
func (r *SingleThreadTaskRunner) Stop() {
	r.once.Do(func() {
		r.closed.Store(true)
		r.cancel()
		<-r.stopped
	})
}

// runLoop is the core of this runner, it occupies a dedicated goroutine
func (r *SingleThreadTaskRunner) runLoop() {
	defer close(r.stopped)

	runCtx := context.WithValue(r.ctx, taskRunnerKey, TaskRunner(r))

	for {
		select {
		case task := <-r.workQueue:
			r.runTask(runCtx, task)
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *SingleThreadTaskRunner) runTask(ctx context.Context, task Task) {
	r.running.Store(1)
	defer func() {
		r.running.Store(0)
		if rec := recover(); rec != nil {
			r.metrics.RecordTaskPanic(r.name, rec)
			r.panicHandler.HandlePanic(ctx, r.name, -1, rec, debug.Stack())
		}
	}()
	task(ctx)
}

// WaitIdle blocks until all tasks queued before the call have completed.
// It posts a barrier task and waits for it to execute.
//
// Returns an error if ctx ends first or the runner is stopped.
// Must not be called from a task running on this runner.
func (r *SingleThreadTaskRunner) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})

	if err := r.PostTask(func(context.Context) { close(done) }); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-r.stopped:
		return ErrRunnerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a point-in-time snapshot of the runner.
func (r *SingleThreadTaskRunner) Stats() RunnerStats {
	return RunnerStats{
		Name:     r.name,
		Type:     "single_thread",
		Pending:  len(r.workQueue),
		Running:  int(r.running.Load()),
		Rejected: r.rejected.Load(),
		Closed:   r.closed.Load(),
	}
}
