package taskpatterns

import (
	"github.com/Swind/go-task-patterns/core"
	"github.com/Swind/go-task-patterns/patterns"
)

// Re-export commonly used types so most callers only import this package.

// Task is the unit of work (Closure)
type Task = core.Task

// TaskRunner is the interface for posting tasks
type TaskRunner = core.TaskRunner

// ThreadPool is re-exported for type compatibility
type ThreadPool = core.ThreadPool

// SingleThreadTaskRunner executes every task on one dedicated goroutine
type SingleThreadTaskRunner = core.SingleThreadTaskRunner

// Clock is the time source controllers wait on.
type Clock = core.Clock

// RunState is a controller's lifecycle phase.
type RunState = core.RunState

const (
	StateIdle      = core.StateIdle
	StateRunning   = core.StateRunning
	StateFinished  = core.StateFinished
	StateCancelled = core.StateCancelled
	StateFailed    = core.StateFailed
)

// Pattern is the operation surface shared by every controller.
type Pattern = patterns.Pattern

// Controller types
type (
	SequentialController   = patterns.SequentialController
	TimerController        = patterns.TimerController
	RemoteCallController   = patterns.RemoteCallController
	FanOutController       = patterns.FanOutController
	ProgressController     = patterns.ProgressController
	NotificationController = patterns.NotificationController
)

// Sentinel errors
var (
	ErrRunInProgress    = core.ErrRunInProgress
	ErrNoActiveRun      = core.ErrNoActiveRun
	ErrNotCancellable   = core.ErrNotCancellable
	ErrControllerClosed = core.ErrControllerClosed
)

// TaskWithResult and ReplyWithResult for generic PostTaskAndReply pattern
type TaskWithResult[T any] = core.TaskWithResult[T]
type ReplyWithResult[T any] = core.ReplyWithResult[T]

// GetCurrentTaskRunner retrieves the current TaskRunner from context
var GetCurrentTaskRunner = core.GetCurrentTaskRunner

// NewRealClock returns the wall clock.
var NewRealClock = core.NewRealClock
