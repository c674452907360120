package core

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RunContext is the state of one run: its token, its units and its outcome.
// A fresh RunContext is created by every successful Begin and is discarded
// once the run reaches a terminal state.
type RunContext struct {
	id        uuid.UUID
	ctrl      *Controller
	token     *CancellationToken
	startedAt time.Time

	cancelRequested atomic.Bool
	terminated      atomic.Bool

	mu    sync.Mutex
	units []Unit
	state RunState
	err   error

	done chan struct{}
}

func newRunContext(c *Controller, parent context.Context) *RunContext {
	return &RunContext{
		id:        uuid.New(),
		ctrl:      c,
		token:     NewCancellationToken(parent),
		startedAt: c.clock.Now(),
		state:     StateRunning,
		done:      make(chan struct{}),
	}
}

// ID returns the run identifier.
func (rc *RunContext) ID() uuid.UUID { return rc.id }

// Token returns the run's cancellation token.
func (rc *RunContext) Token() *CancellationToken { return rc.token }

// Context ends when the run is cancelled or finishes.
func (rc *RunContext) Context() context.Context { return rc.token.Context() }

// Clock returns the controller's clock.
func (rc *RunContext) Clock() Clock { return rc.ctrl.clock }

// StartedAt returns the clock time the run began.
func (rc *RunContext) StartedAt() time.Time { return rc.startedAt }

// Elapsed returns the clock time since the run began.
func (rc *RunContext) Elapsed() time.Duration { return rc.ctrl.clock.Since(rc.startedAt) }

// IsCancelled reports whether the run's token has been cancelled.
func (rc *RunContext) IsCancelled() bool { return rc.token.IsCancelled() }

// CancelRequested reports whether cancellation came from Controller.Cancel
// rather than from teardown or CancelUnits.
func (rc *RunContext) CancelRequested() bool { return rc.cancelRequested.Load() }

// CancelUnits cancels the token: waiting units end at once, running steps
// at their next After.
func (rc *RunContext) CancelUnits() { rc.token.Cancel() }

// Wait blocks for d on the controller's clock unless the run is cancelled
// first. It parks the calling goroutine, so unit steps use After instead;
// Wait suits code started through UnitContext.Await.
func (rc *RunContext) Wait(d time.Duration) WaitOutcome {
	return Wait(rc.token.Context(), rc.ctrl.clock, d)
}

// Sleep is Wait returning ErrCancelled if the run was cancelled.
func (rc *RunContext) Sleep(d time.Duration) error {
	if rc.Wait(d) == WaitCancelled {
		return ErrCancelled
	}
	return nil
}

// Units returns the descriptors of every unit spawned so far.
func (rc *RunContext) Units() []Unit {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return slices.Clone(rc.units)
}

func (rc *RunContext) addUnit(u Unit) {
	rc.mu.Lock()
	rc.units = append(rc.units, u)
	rc.mu.Unlock()
}

// Done is closed once the run has reached a terminal state.
func (rc *RunContext) Done() <-chan struct{} { return rc.done }

// Result returns the run state and, for failed runs, the cause.
func (rc *RunContext) Result() (RunState, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.state, rc.err
}

// Post runs fn on the owner runner unless the run has ended by then.
func (rc *RunContext) Post(fn func()) error {
	return rc.ctrl.owner.PostTask(func(context.Context) {
		rc.runOnOwner(fn)
	})
}

// Deliver is Post that also skips fn once the run has been cancelled, so
// nothing is published after Cancel returns.
func (rc *RunContext) Deliver(fn func()) error {
	return rc.Post(func() {
		if rc.IsCancelled() {
			return
		}
		fn()
	})
}

// Logf appends a line to the controller output from any goroutine. The
// timestamp is taken at the call; the append happens on the owner runner.
func (rc *RunContext) Logf(format string, args ...any) {
	at := rc.ctrl.clock.Now()
	text := fmt.Sprintf(format, args...)
	_ = rc.Post(func() { rc.ctrl.output.AppendAt(at, text) })
}

// Finish moves the run to a terminal state. Owner runner only; later calls
// for the same run are ignored. It reports whether this call ended the run.
func (rc *RunContext) Finish(state RunState, err error) bool {
	return rc.ctrl.finish(rc, state, err)
}

func (rc *RunContext) runOnOwner(fn func()) {
	if rc.terminated.Load() {
		return
	}
	rc.ctrl.guard(rc, fn)
}
