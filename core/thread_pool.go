package core

import (
	"context"
	"runtime/debug"
	"sync"
	"time"
)

// ThreadPool executes tasks on a set of worker goroutines.
// Task units of every controller run on a ThreadPool.
type ThreadPool interface {
	TaskRunner

	ID() string
	IsRunning() bool

	WorkerCount() int
	QueuedTaskCount() int // In queue
	ActiveTaskCount() int // Executing
}

// GoroutineThreadPool manages a set of worker goroutines
// Responsible for pulling tasks from the scheduler and executing them
type GoroutineThreadPool struct {
	id        string
	workers   int
	scheduler *TaskScheduler
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	runningMu sync.RWMutex
}

var _ ThreadPool = (*GoroutineThreadPool)(nil)

// NewGoroutineThreadPool creates a pool with default handlers. Call Start before posting.
func NewGoroutineThreadPool(id string, workers int) *GoroutineThreadPool {
	return NewGoroutineThreadPoolWithConfig(id, workers, DefaultTaskSchedulerConfig())
}

// NewGoroutineThreadPoolWithConfig creates a pool whose scheduler uses config's handlers.
func NewGoroutineThreadPoolWithConfig(id string, workers int, config *TaskSchedulerConfig) *GoroutineThreadPool {
	scheduler := NewTaskSchedulerWithConfig(id, workers, config)
	return &GoroutineThreadPool{
		id:        id,
		workers:   scheduler.WorkerCount(),
		scheduler: scheduler,
	}
}

// Start starts all worker goroutines
func (tg *GoroutineThreadPool) Start(ctx context.Context) {
	tg.runningMu.Lock()
	defer tg.runningMu.Unlock()

	if tg.running {
		return // Already running
	}

	tg.ctx, tg.cancel = context.WithCancel(ctx)
	tg.running = true

	for i := 0; i < tg.workers; i++ {
		tg.wg.Add(1)
		go tg.workerLoop(i, tg.ctx)
	}
}

// Stop stops the thread pool and drops queued tasks
func (tg *GoroutineThreadPool) Stop() {
	// Always shutdown scheduler to release queued tasks
	// even if pool was never started
	tg.scheduler.Shutdown()

	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return
	}
	tg.runningMu.Unlock()

	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()
}

// StopGraceful stops the thread pool gracefully, waiting for queued tasks to complete
// Returns error if timeout is exceeded before tasks complete
func (tg *GoroutineThreadPool) StopGraceful(timeout time.Duration) error {
	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		tg.scheduler.Shutdown()
		return nil
	}
	tg.runningMu.Unlock()

	err := tg.scheduler.ShutdownGraceful(timeout)

	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()

	return err
}

// PostTask queues task for execution on a worker.
func (tg *GoroutineThreadPool) PostTask(task Task) error {
	return tg.scheduler.PostInternal(task)
}

// ID returns the ID of the thread pool
func (tg *GoroutineThreadPool) ID() string {
	return tg.id
}

// IsRunning returns whether the thread pool is running
func (tg *GoroutineThreadPool) IsRunning() bool {
	tg.runningMu.RLock()
	defer tg.runningMu.RUnlock()
	return tg.running
}

// workerLoop is the main loop for each worker
func (tg *GoroutineThreadPool) workerLoop(id int, ctx context.Context) {
	defer tg.wg.Done()
	stopCh := ctx.Done()
	taskCtx := context.WithValue(ctx, taskRunnerKey, TaskRunner(tg))

	for {
		task, ok := tg.scheduler.GetWork(stopCh)
		if !ok {
			return
		}

		tg.scheduler.OnTaskStart()
		tg.runTask(id, taskCtx, task)
	}
}

func (tg *GoroutineThreadPool) runTask(id int, ctx context.Context, task Task) {
	defer func() {
		tg.scheduler.OnTaskEnd()
		if r := recover(); r != nil {
			tg.scheduler.GetMetrics().RecordTaskPanic(tg.id, r)
			tg.scheduler.GetPanicHandler().HandlePanic(ctx, tg.id, id, r, debug.Stack())
		}
	}()
	task(ctx)
}

// Join waits for all worker goroutines to finish
func (tg *GoroutineThreadPool) Join() {
	tg.wg.Wait()
}

// WorkerCount returns the number of workers
func (tg *GoroutineThreadPool) WorkerCount() int {
	return tg.workers
}

func (tg *GoroutineThreadPool) QueuedTaskCount() int {
	return tg.scheduler.QueuedTaskCount()
}

func (tg *GoroutineThreadPool) ActiveTaskCount() int {
	return tg.scheduler.ActiveTaskCount()
}

// Stats returns a point-in-time snapshot of the pool.
func (tg *GoroutineThreadPool) Stats() PoolStats {
	return PoolStats{
		ID:       tg.id,
		Workers:  tg.workers,
		Queued:   tg.QueuedTaskCount(),
		Active:   tg.ActiveTaskCount(),
		Rejected: tg.scheduler.RejectedTaskCount(),
		Running:  tg.IsRunning(),
	}
}
