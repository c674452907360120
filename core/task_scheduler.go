package core

import (
	"fmt"
	"sync/atomic"
	"time"
)

// TaskScheduler is the ready queue shared by the workers of a pool.
// Workers block in GetWork until a task is pushed or the pool stops.
type TaskScheduler struct {
	name        string
	queue       TaskQueue
	signal      chan struct{}
	workerCount int

	metricQueued   int32 // Waiting in ReadyQueue
	metricActive   int32 // Executing in Worker
	metricRejected int64

	// Handlers and Metrics
	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler

	// Lifecycle
	shuttingDown int32 // atomic flag
}

func NewTaskScheduler(name string, workerCount int) *TaskScheduler {
	return NewTaskSchedulerWithConfig(name, workerCount, DefaultTaskSchedulerConfig())
}

func NewTaskSchedulerWithConfig(name string, workerCount int, config *TaskSchedulerConfig) *TaskScheduler {
	if workerCount < 1 {
		workerCount = 1
	}
	s := &TaskScheduler{
		name:        name,
		queue:       NewFIFOTaskQueue(),
		signal:      make(chan struct{}, workerCount*2),
		workerCount: workerCount,
	}

	var logger Logger
	if config != nil {
		s.panicHandler = config.PanicHandler
		s.metrics = config.Metrics
		s.rejectedTaskHandler = config.RejectedTaskHandler
		logger = config.Logger
	}
	if logger == nil {
		logger = NewDefaultLogger()
	}

	// Use defaults if not provided
	if s.panicHandler == nil {
		s.panicHandler = &DefaultPanicHandler{Logger: logger}
	}
	if s.metrics == nil {
		s.metrics = &NilMetrics{}
	}
	if s.rejectedTaskHandler == nil {
		s.rejectedTaskHandler = &DefaultRejectedTaskHandler{Logger: logger}
	}

	return s
}

// PostInternal queues a task for the next free worker.
func (s *TaskScheduler) PostInternal(task Task) error {
	if atomic.LoadInt32(&s.shuttingDown) == 1 {
		atomic.AddInt64(&s.metricRejected, 1)
		s.rejectedTaskHandler.HandleRejectedTask(s.name, "shutting down")
		return ErrRunnerClosed
	}

	s.queue.Push(task)
	queued := atomic.AddInt32(&s.metricQueued, 1)
	s.metrics.RecordQueueDepth(s.name, int(queued))

	select {
	case s.signal <- struct{}{}:
	default:
		// Signal channel full, but task is already queued
	}
	return nil
}

// GetWork (Called by Worker)
func (s *TaskScheduler) GetWork(stopCh <-chan struct{}) (Task, bool) {
	for {
		if task, ok := s.queue.Pop(); ok {
			atomic.AddInt32(&s.metricQueued, -1)
			return task, true
		}

		select {
		case <-s.signal:
			continue
		case <-stopCh:
			return nil, false
		}
	}
}

func (s *TaskScheduler) Shutdown() {
	atomic.StoreInt32(&s.shuttingDown, 1)

	// Release all task references (including reply closures)
	dropped := s.queue.Drain()
	atomic.AddInt32(&s.metricQueued, int32(-dropped))
}

// ShutdownGraceful waits for all queued and active tasks to complete
// Returns error if timeout is exceeded before tasks complete
func (s *TaskScheduler) ShutdownGraceful(timeout time.Duration) error {
	atomic.StoreInt32(&s.shuttingDown, 1)

	deadline := time.After(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if s.QueuedTaskCount() == 0 && s.ActiveTaskCount() == 0 {
			return nil
		}
		select {
		case <-deadline:
			s.Shutdown()
			return fmt.Errorf("shutdown graceful timeout after %v, forced clearing", timeout)
		case <-ticker.C:
		}
	}
}

func (s *TaskScheduler) IsShuttingDown() bool { return atomic.LoadInt32(&s.shuttingDown) == 1 }

// Metrics
func (s *TaskScheduler) WorkerCount() int         { return s.workerCount }
func (s *TaskScheduler) QueuedTaskCount() int     { return int(atomic.LoadInt32(&s.metricQueued)) }
func (s *TaskScheduler) ActiveTaskCount() int     { return int(atomic.LoadInt32(&s.metricActive)) }
func (s *TaskScheduler) RejectedTaskCount() int64 { return atomic.LoadInt64(&s.metricRejected) }

func (s *TaskScheduler) OnTaskStart() {
	atomic.AddInt32(&s.metricActive, 1)
}

func (s *TaskScheduler) OnTaskEnd() {
	atomic.AddInt32(&s.metricActive, -1)
}

// GetPanicHandler returns the panic handler for this scheduler
func (s *TaskScheduler) GetPanicHandler() PanicHandler {
	return s.panicHandler
}

// GetMetrics returns the metrics collector for this scheduler
func (s *TaskScheduler) GetMetrics() Metrics {
	return s.metrics
}
