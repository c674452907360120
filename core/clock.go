package core

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the time source of a controller. Production code uses
// NewRealClock; tests substitute clockwork.NewFakeClock and advance it.
type Clock = clockwork.Clock

// NewRealClock returns a Clock backed by the time package.
func NewRealClock() Clock {
	return clockwork.NewRealClock()
}

// WaitOutcome reports how a Wait ended.
type WaitOutcome int

const (
	// WaitCompleted means the full duration elapsed.
	WaitCompleted WaitOutcome = iota
	// WaitCancelled means ctx ended first.
	WaitCancelled
)

func (o WaitOutcome) String() string {
	switch o {
	case WaitCompleted:
		return "completed"
	case WaitCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Wait suspends until d has elapsed on clock or ctx is done, whichever comes first.
// A cancelled ctx always wins, including for non-positive durations.
func Wait(ctx context.Context, clock Clock, d time.Duration) WaitOutcome {
	if ctx.Err() != nil {
		return WaitCancelled
	}
	if d <= 0 {
		return WaitCompleted
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return WaitCompleted
	case <-ctx.Done():
		return WaitCancelled
	}
}
