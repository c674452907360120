// Package patterns implements the six orchestration patterns on top of
// core.Controller: a sequential chain, a cancellable timer, a simulated remote
// call, a fan-out/fan-in, a multi-job progress tracker and a periodic
// notification loop.
//
// Every controller embeds *core.Controller, so the observable channels
// (Output, Status, Progress, Running) and the lifecycle operations (Cancel,
// Wait, ClearOutput, Restart, Close) are shared. Each pattern adds Start and
// whatever pattern-specific cells it exposes.
package patterns

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Swind/go-task-patterns/core"
)

// Controller names, also used as metric labels and CLI subcommands.
const (
	NameSequential    = "sequential"
	NameTimer         = "timer"
	NameRemoteCall    = "remote-call"
	NameFanOut        = "fan-out"
	NameProgress      = "progress"
	NameNotifications = "notifications"
)

// Rand is the randomness a simulation draws from. Units draw from it
// concurrently, so implementations must be goroutine-safe; wrap a
// *rand.Rand with LockedRand.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

type globalRand struct{}

func (globalRand) IntN(n int) int   { return rand.IntN(n) }
func (globalRand) Float64() float64 { return rand.Float64() }

// DefaultRand returns a goroutine-safe Rand over the math/rand/v2 global source.
func DefaultRand() Rand { return globalRand{} }

type lockedRand struct {
	mu sync.Mutex
	r  Rand
}

// LockedRand serializes access to r, typically a seeded *rand.Rand.
func LockedRand(r Rand) Rand {
	return &lockedRand{r: r}
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// intRange returns a value in [lo, hi).
func intRange(r Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo)
}

// durationRange returns a millisecond-granular duration in [lo, hi).
func durationRange(r Rand, lo, hi time.Duration) time.Duration {
	ms := intRange(r, int(lo/time.Millisecond), int(hi/time.Millisecond))
	return time.Duration(ms) * time.Millisecond
}

// Deps are the collaborators shared by every controller. Pool is required;
// the rest default to a real clock, no logging, no metrics, a logging
// panic handler and DefaultRand.
type Deps struct {
	Pool         core.ThreadPool
	Clock        core.Clock
	Logger       core.Logger
	Metrics      core.Metrics
	PanicHandler core.PanicHandler
	Rand         Rand

	// Context is the parent of every run; cancelling it tears runs down.
	Context context.Context
}

func (d Deps) rand() Rand {
	if d.Rand == nil {
		return DefaultRand()
	}
	return d.Rand
}

func (d Deps) controllerOptions(name string, cancellable bool, cancelMessage string) core.ControllerOptions {
	return core.ControllerOptions{
		Name:          name,
		Pool:          d.Pool,
		Clock:         d.Clock,
		Logger:        d.Logger,
		Metrics:       d.Metrics,
		PanicHandler:  d.PanicHandler,
		Cancellable:   cancellable,
		CancelMessage: cancelMessage,
		Context:       d.Context,
	}
}

// Pattern is the operation surface a presentation shell drives. Every
// controller in this package implements it.
type Pattern interface {
	Name() string
	Start() error
	Cancel() error
	Cancellable() bool
	Wait(ctx context.Context) (core.RunState, error)
	ClearOutput() error
	Close(ctx context.Context) error

	Output() *core.OutputLog
	Status() *core.Cell[core.RunState]
	Progress() *core.Cell[int]
	Running() *core.Cell[bool]

	Stats() core.ControllerStats
	RecentRuns(limit int) []core.RunRecord
}

var (
	_ Pattern = (*SequentialController)(nil)
	_ Pattern = (*TimerController)(nil)
	_ Pattern = (*RemoteCallController)(nil)
	_ Pattern = (*FanOutController)(nil)
	_ Pattern = (*ProgressController)(nil)
	_ Pattern = (*NotificationController)(nil)
)

// terminalState maps the outcome of a run's last unit to the run's state.
func terminalState(o core.Outcome) core.RunState {
	switch o {
	case core.OutcomeSucceeded:
		return core.StateFinished
	case core.OutcomeCancelled:
		return core.StateCancelled
	default:
		return core.StateFailed
	}
}
