package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

const (
	defaultCancelMessage = "Cancellation requested..."
	closeMessage         = "Controller closed, outstanding units cancelled"
	failureMessage       = "Unexpected error, run aborted"
)

// ControllerOptions configures a Controller. Pool is required.
type ControllerOptions struct {
	Name    string
	Pool    ThreadPool
	Clock   Clock
	Logger  Logger
	Metrics Metrics

	// PanicHandler receives panics from units and owner code. Defaults to
	// DefaultPanicHandler over Logger.
	PanicHandler PanicHandler

	// Cancellable enables Cancel. Patterns that run to completion leave it false;
	// Close still cancels them.
	Cancellable bool

	// CancelMessage is the output line written when Cancel is accepted.
	CancelMessage string

	// HistorySize bounds RecentRuns. Defaults to 32.
	HistorySize int

	// Context is the parent of every run token. Defaults to context.Background().
	Context context.Context
}

// Controller is the shared orchestration base of every pattern.
//
// It enforces a single active run, owns the observable channels and an owner
// runner on which all state mutations happen. Patterns supply the run body
// through Begin and end runs through RunContext.Finish.
type Controller struct {
	name          string
	pool          ThreadPool
	clock         Clock
	logger        Logger
	metrics       Metrics
	panicHandler  PanicHandler
	cancellable   bool
	cancelMessage string

	owner  *SingleThreadTaskRunner
	delays *DelayManager

	output   *OutputLog
	status   *Cell[RunState]
	progress *Cell[int]
	running  *Cell[bool]

	ctx       context.Context
	cancelCtx context.CancelFunc

	mu      sync.Mutex
	state   RunState
	current *RunContext
	closed  bool

	units       sync.WaitGroup
	activeUnits atomic.Int64
	started     atomic.Int64
	rejected    atomic.Int64

	history *runHistory
}

// NewController creates an idle controller and starts its owner runner.
func NewController(opts ControllerOptions) *Controller {
	if opts.Pool == nil {
		panic("core: NewController requires a ThreadPool")
	}
	if opts.Name == "" {
		opts.Name = "controller"
	}
	if opts.Clock == nil {
		opts.Clock = NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = NewNoOpLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = &NilMetrics{}
	}
	if opts.PanicHandler == nil {
		opts.PanicHandler = &DefaultPanicHandler{Logger: opts.Logger}
	}
	if opts.CancelMessage == "" {
		opts.CancelMessage = defaultCancelMessage
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	ctx, cancel := context.WithCancel(opts.Context)
	return &Controller{
		name:          opts.Name,
		pool:          opts.Pool,
		clock:         opts.Clock,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		panicHandler:  opts.PanicHandler,
		cancellable:   opts.Cancellable,
		cancelMessage: opts.CancelMessage,
		owner: NewSingleThreadTaskRunner(SingleThreadOptions{
			Name:         opts.Name + "-owner",
			PanicHandler: opts.PanicHandler,
			Metrics:      opts.Metrics,
		}),
		delays:    NewDelayManager(opts.Clock),
		output:    NewOutputLog(opts.Clock),
		status:    NewCell(StateIdle),
		progress:  NewCell(0),
		running:   NewCell(false),
		ctx:       ctx,
		cancelCtx: cancel,
		state:     StateIdle,
		history:   newRunHistory(opts.HistorySize),
	}
}

func (c *Controller) Name() string                   { return c.name }
func (c *Controller) Clock() Clock                   { return c.clock }
func (c *Controller) Logger() Logger                 { return c.logger }
func (c *Controller) Owner() *SingleThreadTaskRunner { return c.owner }
func (c *Controller) Cancellable() bool              { return c.cancellable }

// Output is the timestamped log channel.
func (c *Controller) Output() *OutputLog { return c.output }

// Status is the authoritative terminal-state channel.
func (c *Controller) Status() *Cell[RunState] { return c.status }

// Progress is the 0-100 channel. Patterns without progress leave it at 0.
func (c *Controller) Progress() *Cell[int] { return c.progress }

// Running mirrors whether a run is active.
func (c *Controller) Running() *Cell[bool] { return c.running }

// State returns the controller's run state. It turns Running as soon as
// Begin accepts a run, before the status channel is updated.
func (c *Controller) State() RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the active run, or nil.
func (c *Controller) Current() *RunContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Begin starts a run unless one is active. On the owner runner it resets the
// observable channels and then calls body, which spawns the run's units.
// A panic in body or in any later owner callback of the run ends it as Failed.
func (c *Controller) Begin(body func(rc *RunContext)) (*RunContext, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.reject("closed")
		return nil, ErrControllerClosed
	}
	if c.current != nil {
		c.mu.Unlock()
		c.reject("in_progress")
		return nil, ErrRunInProgress
	}
	if err := ValidateTransition(c.state, StateRunning); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	prev := c.state
	rc := newRunContext(c, c.ctx)
	c.current = rc
	c.state = StateRunning
	c.mu.Unlock()

	err := c.owner.PostTask(func(context.Context) {
		if rc.terminated.Load() {
			return
		}
		c.output.Clear()
		c.progress.Set(0)
		c.status.Set(StateRunning)
		c.running.Set(true)
		c.guard(rc, func() { body(rc) })
	})
	if err != nil {
		c.mu.Lock()
		c.current = nil
		c.state = prev
		c.mu.Unlock()
		rc.token.Cancel()
		return nil, fmt.Errorf("begin %s: %w", c.name, err)
	}

	c.started.Add(1)
	c.logger.Info("run started", F("controller", c.name), F("run_id", rc.id.String()))
	return rc, nil
}

func (c *Controller) reject(reason string) {
	c.rejected.Add(1)
	c.metrics.RecordRunRejected(c.name, reason)
	c.logger.Debug("run rejected", F("controller", c.name), F("reason", reason))
}

// finish is the owner-side terminal transition of rc.
func (c *Controller) finish(rc *RunContext, state RunState, err error) bool {
	if terr := ValidateTransition(StateRunning, state); terr != nil {
		panic(terr)
	}
	if !rc.terminated.CompareAndSwap(false, true) {
		return false
	}

	rc.token.Cancel()
	finishedAt := c.clock.Now()

	rc.mu.Lock()
	rc.state = state
	rc.err = err
	units := len(rc.units)
	rc.mu.Unlock()

	c.mu.Lock()
	c.state = state
	if c.current == rc {
		c.current = nil
	}
	c.mu.Unlock()

	c.status.Set(state)
	c.running.Set(false)

	duration := finishedAt.Sub(rc.startedAt)
	c.history.Add(RunRecord{
		RunID:      rc.id,
		Controller: c.name,
		State:      state,
		Err:        err,
		Units:      units,
		StartedAt:  rc.startedAt,
		FinishedAt: finishedAt,
		Duration:   duration,
	})
	c.metrics.RecordRunDuration(c.name, state, duration)

	fields := []Field{
		F("controller", c.name),
		F("run_id", rc.id.String()),
		F("state", state.String()),
		F("duration", duration),
	}
	if err != nil {
		c.logger.Warn("run ended", append(fields, F("error", err))...)
	} else {
		c.logger.Info("run ended", fields...)
	}

	close(rc.done)
	return true
}

// guard runs fn on the owner, converting a panic into a Failed run.
func (c *Controller) guard(rc *RunContext, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.RecordTaskPanic(c.name, r)
			c.panicHandler.HandlePanic(rc.Context(), c.owner.Name(), -1, r, debug.Stack())
			c.output.Append(failureMessage)
			c.finish(rc, StateFailed, fmt.Errorf("%w: %v", ErrRunPanicked, r))
		}
	}()
	fn()
}

// Cancel asks the active run to stop. Waiting units end at once; a step
// already on a worker finishes first.
func (c *Controller) Cancel() error {
	if !c.cancellable {
		return ErrNotCancellable
	}

	c.mu.Lock()
	closed, rc := c.closed, c.current
	c.mu.Unlock()

	if closed {
		return ErrControllerClosed
	}
	if rc == nil {
		return ErrNoActiveRun
	}
	if !rc.cancelRequested.CompareAndSwap(false, true) {
		return nil
	}

	// The line is queued ahead of any reply the cancellation provokes.
	at := c.clock.Now()
	_ = rc.Post(func() { c.output.AppendAt(at, c.cancelMessage) })
	rc.token.Cancel()
	c.logger.Info("cancellation requested", F("controller", c.name), F("run_id", rc.id.String()))
	return nil
}

// Wait blocks until the active run ends and returns its terminal state.
// With no active run it returns the current state immediately.
func (c *Controller) Wait(ctx context.Context) (RunState, error) {
	rc := c.Current()
	if rc == nil {
		return c.State(), nil
	}
	select {
	case <-rc.done:
		state, _ := rc.Result()
		return state, nil
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}
}

// Restart stops the active run, waits for it to end and calls start.
// Non-cancellable runs are waited for rather than cancelled.
func (c *Controller) Restart(ctx context.Context, start func() error) error {
	if rc := c.Current(); rc != nil {
		if c.cancellable {
			rc.cancelRequested.Store(true)
			rc.token.Cancel()
		}
		select {
		case <-rc.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return start()
}

// ClearOutput empties the log. A controller in a terminal state also returns
// to Idle. Must not be called from the owner runner.
func (c *Controller) ClearOutput() error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrControllerClosed
	}

	err := c.owner.PostTask(func(context.Context) {
		c.output.Clear()

		c.mu.Lock()
		toIdle := c.current == nil && CanTransition(c.state, StateIdle)
		if toIdle {
			c.state = StateIdle
		}
		c.mu.Unlock()

		if toIdle {
			c.status.Set(StateIdle)
		}
	})
	if err != nil {
		return err
	}
	return c.owner.WaitIdle(context.Background())
}

// Close cancels any outstanding run, waits for its units to exit and stops
// the owner runner. Later calls are no-ops.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	rc := c.current
	c.mu.Unlock()

	c.cancelCtx()

	var err error
	if rc != nil {
		select {
		case <-rc.done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	if werr := c.waitUnits(ctx); werr != nil && err == nil {
		err = werr
	}
	c.delays.Stop()

	if perr := c.owner.PostTask(func(context.Context) { c.output.Append(closeMessage) }); perr == nil {
		if werr := c.owner.WaitIdle(ctx); werr != nil && err == nil {
			err = werr
		}
	}
	c.owner.Stop()

	c.logger.Info("controller closed", F("controller", c.name))
	return err
}

func (c *Controller) waitUnits(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.units.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquireUnit registers a unit about to be scheduled. It fails once the
// controller is closed so Close can wait for a stable set of units.
func (c *Controller) acquireUnit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.units.Add(1)
	c.activeUnits.Add(1)
	return true
}

func (c *Controller) releaseUnit() {
	c.activeUnits.Add(-1)
	c.units.Done()
}

// RecentRuns returns up to limit completed runs, newest first.
func (c *Controller) RecentRuns(limit int) []RunRecord {
	return c.history.Recent(limit)
}

// LastRun returns the most recently completed run.
func (c *Controller) LastRun() (RunRecord, bool) {
	return c.history.Last()
}

// Stats returns a point-in-time snapshot of the controller.
func (c *Controller) Stats() ControllerStats {
	c.mu.Lock()
	stats := ControllerStats{
		Name:    c.name,
		State:   c.state,
		Running: c.current != nil,
		Closed:  c.closed,
	}
	c.mu.Unlock()

	stats.ActiveUnits = int(c.activeUnits.Load())
	stats.WaitingUnits = c.delays.TaskCount()
	stats.Started = c.started.Load()
	stats.Rejected = c.rejected.Load()
	stats.Owner = c.owner.Stats()
	if last, ok := c.history.Last(); ok {
		stats.LastRunID = last.RunID
		stats.LastRunAt = last.FinishedAt
	}
	return stats
}
