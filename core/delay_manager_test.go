package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// recordingRunner runs posted tasks inline and counts them.
type recordingRunner struct {
	posted atomic.Int32
	err    error
}

func (r *recordingRunner) PostTask(task Task) error {
	if r.err != nil {
		return r.err
	}
	r.posted.Add(1)
	task(context.Background())
	return nil
}

// TestDelayManager_PostsAfterDelay tests delayed posting on the clock
// Given: Two tasks delayed 100ms and 300ms
// When: The clock advances 100ms, then 200ms more
// Then: Each task reaches its target exactly when its delay has elapsed
func TestDelayManager_PostsAfterDelay(t *testing.T) {
	// Arrange
	clock := clockwork.NewFakeClock()
	dm := NewDelayManager(clock)
	defer dm.Stop()
	target := &recordingRunner{}
	var first, second atomic.Bool

	// Act
	if _, err := dm.AddDelayedTask(func(context.Context) { first.Store(true) }, 100*time.Millisecond, target); err != nil {
		t.Fatalf("AddDelayedTask error: %v", err)
	}
	if _, err := dm.AddDelayedTask(func(context.Context) { second.Store(true) }, 300*time.Millisecond, target); err != nil {
		t.Fatalf("AddDelayedTask error: %v", err)
	}

	// Assert
	if dm.TaskCount() != 2 {
		t.Fatalf("TaskCount = %d, want 2", dm.TaskCount())
	}
	clock.Advance(100 * time.Millisecond)
	waitFor(t, first.Load, "first task posted")
	if second.Load() {
		t.Error("second task posted before its delay")
	}

	clock.Advance(200 * time.Millisecond)
	waitFor(t, second.Load, "second task posted")
	waitFor(t, func() bool { return dm.TaskCount() == 0 }, "queue drained")
}

// TestDelayManager_Cancel tests withdrawing a pending task
func TestDelayManager_Cancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	dm := NewDelayManager(clock)
	defer dm.Stop()
	target := &recordingRunner{}

	item, err := dm.AddDelayedTask(func(context.Context) {}, time.Second, target)
	if err != nil {
		t.Fatalf("AddDelayedTask error: %v", err)
	}

	if !item.Cancel() {
		t.Fatal("Cancel on a pending task = false, want true")
	}
	if item.Cancel() {
		t.Error("second Cancel = true, want false")
	}

	clock.Advance(2 * time.Second)
	time.Sleep(10 * time.Millisecond)
	if n := target.posted.Load(); n != 0 {
		t.Errorf("cancelled task posted %d times", n)
	}
}

// TestDelayManager_Stop tests that Stop withdraws everything and refuses new tasks
func TestDelayManager_Stop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	dm := NewDelayManager(clock)
	target := &recordingRunner{}

	for range 3 {
		if _, err := dm.AddDelayedTask(func(context.Context) {}, time.Second, target); err != nil {
			t.Fatalf("AddDelayedTask error: %v", err)
		}
	}
	dm.Stop()

	if dm.TaskCount() != 0 {
		t.Errorf("TaskCount after Stop = %d, want 0", dm.TaskCount())
	}
	if _, err := dm.AddDelayedTask(func(context.Context) {}, time.Second, target); !errors.Is(err, ErrRunnerClosed) {
		t.Errorf("AddDelayedTask after Stop = %v, want ErrRunnerClosed", err)
	}

	clock.Advance(2 * time.Second)
	time.Sleep(10 * time.Millisecond)
	if n := target.posted.Load(); n != 0 {
		t.Errorf("stopped manager posted %d tasks", n)
	}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
