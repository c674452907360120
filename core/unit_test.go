package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// TestSpawn_WaitingUnitsHoldNoWorker tests that a wait parks a unit on the
// clock instead of on a pool worker
// Given: A controller whose pool has a single worker
// When: Five units each wait 500ms
// Then: All five are waiting at once, the worker is idle, and the run ends
// after 500ms rather than 2500ms
func TestSpawn_WaitingUnitsHoldNoWorker(t *testing.T) {
	// Arrange
	c, clock := newTestController(t, false)
	var elapsed time.Duration

	// Act
	_, _ = c.Begin(func(rc *RunContext) {
		specs := make([]UnitSpec[int], 0, 5)
		for i := range 5 {
			specs = append(specs, UnitSpec[int]{
				Name: fmt.Sprintf("unit-%d", i),
				Run:  Delayed(500*time.Millisecond, func() (int, error) { return i, nil }),
			})
		}
		SpawnAll(rc, specs, nil, func([]UnitResult[int]) {
			elapsed = rc.Elapsed()
			rc.Finish(StateFinished, nil)
		})
	})
	blockUntilWaiters(t, clock, 5)

	// Assert
	stats := c.Stats()
	if stats.ActiveUnits != 5 || stats.WaitingUnits != 5 {
		t.Errorf("Stats = %d active / %d waiting, want 5 / 5", stats.ActiveUnits, stats.WaitingUnits)
	}
	waitFor(t, func() bool { return c.pool.ActiveTaskCount() == 0 }, "idle worker while units wait")

	clock.Advance(500 * time.Millisecond)
	if state := waitTerminal(t, c); state != StateFinished {
		t.Fatalf("state = %s, want finished", state)
	}
	if elapsed != 500*time.Millisecond {
		t.Errorf("elapsed = %v, want 500ms", elapsed)
	}
	if waiting := c.Stats().WaitingUnits; waiting != 0 {
		t.Errorf("WaitingUnits after run = %d, want 0", waiting)
	}
}

// TestUnitContext_CancelEndsWaitImmediately tests cancellation of a parked unit
// Main test items:
// 1. Cancel ends a unit waiting an hour without the clock moving
// 2. Its pending delay is withdrawn
func TestUnitContext_CancelEndsWaitImmediately(t *testing.T) {
	c, clock := newTestController(t, true)

	if _, err := c.Begin(sleepBody(time.Hour)); err != nil {
		t.Fatalf("Begin error: %v", err)
	}
	blockUntilWaiters(t, clock, 1)

	if err := c.Cancel(); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if state := waitTerminal(t, c); state != StateCancelled {
		t.Fatalf("state = %s, want cancelled", state)
	}
	if waiting := c.Stats().WaitingUnits; waiting != 0 {
		t.Errorf("WaitingUnits = %d, want 0 after cancel", waiting)
	}
}

// TestUnitContext_StepChain tests a unit made of several steps
// Given: A unit that waits three times, adding one each step
// When: The clock is advanced past each wait
// Then: The unit returns 3 and Elapsed covers all three waits
func TestUnitContext_StepChain(t *testing.T) {
	c, clock := newTestController(t, false)
	got := make(chan UnitResult[int], 1)

	var step func(n int) UnitFunc[int]
	step = func(n int) UnitFunc[int] {
		return func(u *UnitContext[int]) {
			if n == 3 {
				u.Return(n, nil)
				return
			}
			u.After(100*time.Millisecond, step(n+1))
		}
	}

	_, _ = c.Begin(func(rc *RunContext) {
		Spawn(rc, "chain", step(0), func(res UnitResult[int]) {
			got <- res
			rc.Finish(StateFinished, nil)
		})
	})

	for range 3 {
		blockUntilWaiters(t, clock, 1)
		clock.Advance(100 * time.Millisecond)
	}

	select {
	case res := <-got:
		if res.Value != 3 || res.Outcome != OutcomeSucceeded {
			t.Errorf("result = %+v, want 3 succeeded", res)
		}
		if res.Elapsed != 300*time.Millisecond {
			t.Errorf("Elapsed = %v, want 300ms", res.Elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("chain unit never replied")
	}
}

// TestUnitContext_AwaitRunsOffPool tests that blocking calls leave the pool free
// Main test items:
// 1. A unit blocked in Await does not stop another unit from using the only worker
// 2. The blocked unit's result arrives once its call returns
func TestUnitContext_AwaitRunsOffPool(t *testing.T) {
	c, _ := newTestController(t, false)
	release := make(chan struct{})
	results := make(chan string, 2)

	_, _ = c.Begin(func(rc *RunContext) {
		SpawnAll(rc, []UnitSpec[string]{
			{Name: "blocking", Run: func(u *UnitContext[string]) {
				u.Await(func(ctx context.Context) (string, error) {
					<-release
					return "slow", nil
				})
			}},
			{Name: "quick", Run: func(u *UnitContext[string]) {
				u.Return("fast", nil)
			}},
		}, func(res UnitResult[string]) {
			results <- res.Value
		}, func([]UnitResult[string]) {
			rc.Finish(StateFinished, nil)
		})
	})

	select {
	case v := <-results:
		if v != "fast" {
			t.Fatalf("first result = %q, want fast", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("quick unit never finished while another unit was blocked")
	}
	close(release)

	if state := waitTerminal(t, c); state != StateFinished {
		t.Fatalf("state = %s, want finished", state)
	}
	if v := <-results; v != "slow" {
		t.Errorf("second result = %q, want slow", v)
	}
}

// TestUnitContext_StalledStepFails tests a step that neither returns nor waits
func TestUnitContext_StalledStepFails(t *testing.T) {
	c, _ := newTestController(t, false)
	got := make(chan UnitResult[int], 1)

	_, _ = c.Begin(func(rc *RunContext) {
		Spawn(rc, "forgetful", func(u *UnitContext[int]) {}, func(res UnitResult[int]) {
			got <- res
			rc.Finish(StateFailed, res.Err)
		})
	})

	select {
	case res := <-got:
		if res.Outcome != OutcomeFailed || !errors.Is(res.Err, ErrUnitStalled) {
			t.Errorf("result = %+v, want failed with ErrUnitStalled", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stalled unit never replied")
	}
}

// TestUnitContext_ReturnOnce tests that only the first Return counts
func TestUnitContext_ReturnOnce(t *testing.T) {
	c, _ := newTestController(t, false)
	got := make(chan UnitResult[int], 2)

	_, _ = c.Begin(func(rc *RunContext) {
		Spawn(rc, "twice", func(u *UnitContext[int]) {
			u.Return(1, nil)
			u.Return(2, errors.New("late"))
		}, func(res UnitResult[int]) {
			got <- res
			rc.Finish(StateFinished, nil)
		})
	})

	if state := waitTerminal(t, c); state != StateFinished {
		t.Fatalf("state = %s, want finished", state)
	}
	if len(got) != 1 {
		t.Fatalf("replies = %d, want 1", len(got))
	}
	if res := <-got; res.Value != 1 || res.Err != nil {
		t.Errorf("result = %+v, want the first Return", res)
	}
}

// TestUnitContext_AwaitSleepsOnRunClock tests blocking waits inside Await
// Main test items:
// 1. Sleep under Await waits on the controller clock
// 2. Cancelling the run wakes it with ErrCancelled
func TestUnitContext_AwaitSleepsOnRunClock(t *testing.T) {
	c, clock := newTestController(t, true)
	got := make(chan UnitResult[int], 1)

	_, _ = c.Begin(func(rc *RunContext) {
		Spawn(rc, "sleeper", func(u *UnitContext[int]) {
			u.Await(func(context.Context) (int, error) {
				if err := u.Run().Sleep(time.Second); err != nil {
					return 1, err
				}
				return 2, nil
			})
		}, func(res UnitResult[int]) {
			got <- res
			rc.Finish(StateCancelled, nil)
		})
	})
	blockUntilWaiters(t, clock, 1)

	if err := c.Cancel(); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	select {
	case res := <-got:
		if res.Outcome != OutcomeCancelled || res.Value != 1 {
			t.Errorf("result = %+v, want cancelled from Sleep", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sleeping unit never replied")
	}
}
