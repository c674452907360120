package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Unit identifies one spawned piece of simulated work. Units are never reused.
type Unit struct {
	ID   uuid.UUID
	Name string
}

// Outcome is the terminal result class of a unit.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ClassifyError maps a unit's returned error to its Outcome.
func ClassifyError(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSucceeded
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}

// UnitResult is what a unit hands back to its controller.
type UnitResult[T any] struct {
	Unit    Unit
	Value   T
	Err     error
	Outcome Outcome
	Elapsed time.Duration
}

// UnitFunc is one step of a unit. Steps run on the pool and must not block:
// a step ends the unit with Return, waits with After or hands a blocking
// call to Await. A step that does none of these fails the unit with
// ErrUnitStalled.
type UnitFunc[T any] func(u *UnitContext[T])

// UnitSpec pairs a unit name with its first step.
type UnitSpec[T any] struct {
	Name string
	Run  UnitFunc[T]
}

// Delayed is a unit that waits d and then returns fn's result.
func Delayed[T any](d time.Duration, fn func() (T, error)) UnitFunc[T] {
	return func(u *UnitContext[T]) {
		u.After(d, func(u *UnitContext[T]) { u.Return(fn()) })
	}
}

// UnitContext is the handle a unit's steps use to wait and to report.
type UnitContext[T any] struct {
	rc       *RunContext
	unit     Unit
	started  time.Time
	reply    func(UnitResult[T])
	acquired bool

	ended    atomic.Bool
	handoffs atomic.Int64
}

// Run returns the run the unit belongs to.
func (u *UnitContext[T]) Run() *RunContext { return u.rc }
func (u *UnitContext[T]) Unit() Unit       { return u.unit }

// Context ends when the run is cancelled or finishes.
func (u *UnitContext[T]) Context() context.Context { return u.rc.Context() }

// Logf appends a line to the controller output.
func (u *UnitContext[T]) Logf(format string, args ...any) { u.rc.Logf(format, args...) }

// Return ends the unit. Only the first call counts.
func (u *UnitContext[T]) Return(v T, err error) {
	u.handoffs.Add(1)
	if !u.ended.CompareAndSwap(false, true) {
		return
	}
	u.deliver(UnitResult[T]{
		Unit:    u.unit,
		Value:   v,
		Err:     err,
		Outcome: ClassifyError(err),
		Elapsed: u.rc.ctrl.clock.Since(u.started),
	})
}

func (u *UnitContext[T]) fail(err error) {
	var zero T
	u.Return(zero, err)
}

// After runs next on the pool once d has elapsed on the controller's clock.
// No worker is held during the wait. A run cancelled before d elapses ends
// the unit at once with ErrCancelled.
func (u *UnitContext[T]) After(d time.Duration, next UnitFunc[T]) {
	u.handoffs.Add(1)
	rc := u.rc
	if rc.IsCancelled() {
		u.fail(ErrCancelled)
		return
	}

	w := &unitWait{}
	w.mu.Lock()
	defer w.mu.Unlock()

	item, err := rc.ctrl.delays.AddDelayedTask(func(context.Context) {
		if w.claim() {
			w.stop()
			u.exec(next)
		}
	}, d, u.stepRunner())
	if err != nil {
		w.done = true
		u.fail(fmt.Errorf("schedule unit %s: %w", u.unit.Name, err))
		return
	}
	w.item = item
	w.stop = rc.token.OnCancel(func() {
		if w.claim() {
			w.item.Cancel()
			u.fail(ErrCancelled)
		}
	})
}

// Await runs a blocking call on its own goroutine, off the pool, and ends
// the unit with its result. fn must return promptly once ctx is done.
func (u *UnitContext[T]) Await(fn func(ctx context.Context) (T, error)) {
	u.handoffs.Add(1)
	if u.rc.IsCancelled() {
		u.fail(ErrCancelled)
		return
	}
	go func() {
		defer u.recoverPanic()
		u.Return(fn(u.rc.Context()))
	}()
}

// stepRunner posts steps to the pool and fails the unit if the pool refuses.
func (u *UnitContext[T]) stepRunner() TaskRunner {
	pool := u.rc.ctrl.pool
	return TaskRunnerFunc(func(task Task) error {
		err := pool.PostTask(task)
		if err != nil {
			u.fail(fmt.Errorf("schedule unit %s: %w", u.unit.Name, err))
		}
		return err
	})
}

func (u *UnitContext[T]) exec(step UnitFunc[T]) {
	if u.ended.Load() {
		return
	}
	defer u.recoverPanic()
	// A later step may already be running once this one handed off, so
	// compare counts rather than reset a flag.
	before := u.handoffs.Load()
	step(u)
	if u.handoffs.Load() == before {
		u.fail(fmt.Errorf("%w: %s", ErrUnitStalled, u.unit.Name))
	}
}

func (u *UnitContext[T]) recoverPanic() {
	if r := recover(); r != nil {
		c := u.rc.ctrl
		c.metrics.RecordTaskPanic(c.name, r)
		c.panicHandler.HandlePanic(u.rc.Context(), c.name, -1, r, debug.Stack())
		u.fail(fmt.Errorf("%w: %s: %v", ErrUnitPanicked, u.unit.Name, r))
	}
}

// deliver posts the result to the owner, then releases the unit so Close
// observes the reply queued ahead of its own line.
func (u *UnitContext[T]) deliver(res UnitResult[T]) {
	c := u.rc.ctrl
	c.metrics.RecordUnitOutcome(c.name, res.Outcome)
	if u.reply != nil {
		_ = c.owner.PostTask(func(context.Context) {
			u.rc.runOnOwner(func() { u.reply(res) })
		})
	}
	if u.acquired {
		c.releaseUnit()
	}
}

// unitWait settles the race between a delay firing and the run being
// cancelled. Whichever claims it first acts.
type unitWait struct {
	mu   sync.Mutex
	done bool
	item *DelayedTask
	stop func() bool
}

func (w *unitWait) claim() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return false
	}
	w.done = true
	return true
}

// Spawn starts fn on the controller's pool and delivers the unit's result to
// reply on the owner runner. Panics inside a step become OutcomeFailed
// results, and so does a step the pool refuses. Replies for a run that has
// already ended are dropped.
func Spawn[T any](rc *RunContext, name string, fn UnitFunc[T], reply func(UnitResult[T])) Unit {
	c := rc.ctrl
	unit := Unit{ID: uuid.New(), Name: name}
	rc.addUnit(unit)

	u := &UnitContext[T]{rc: rc, unit: unit, started: c.clock.Now(), reply: reply}
	if rc.IsCancelled() || !c.acquireUnit() {
		u.fail(ErrCancelled)
		return unit
	}
	u.acquired = true

	_ = u.stepRunner().PostTask(func(context.Context) { u.exec(fn) })
	return unit
}

// SpawnAll spawns every UnitSpec concurrently. onEach receives results in
// completion order; onAll receives all results in input order once the last
// unit has replied. Both run on the owner runner and may be nil.
func SpawnAll[T any](rc *RunContext, specs []UnitSpec[T], onEach func(UnitResult[T]), onAll func([]UnitResult[T])) []Unit {
	if len(specs) == 0 {
		if onAll != nil {
			_ = rc.Post(func() { onAll(nil) })
		}
		return nil
	}

	results := make([]UnitResult[T], len(specs))
	pending := len(specs)
	units := make([]Unit, 0, len(specs))

	for i, spec := range specs {
		units = append(units, Spawn(rc, spec.Name, spec.Run, func(res UnitResult[T]) {
			// Owner runner only, so no locking
			results[i] = res
			pending--
			if onEach != nil {
				onEach(res)
			}
			if pending == 0 && onAll != nil {
				onAll(results)
			}
		}))
	}
	return units
}
