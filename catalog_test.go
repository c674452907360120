package taskpatterns_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	taskpatterns "github.com/Swind/go-task-patterns"
	"github.com/Swind/go-task-patterns/core"
	"github.com/Swind/go-task-patterns/patterns"
)

func newFastConfig() taskpatterns.CatalogConfig {
	cfg := taskpatterns.DefaultCatalogConfig()
	cfg.Workers = 4
	cfg.Sequential = patterns.SequentialConfig{
		LoginDelay:       10 * time.Millisecond,
		ProfileDelay:     10 * time.Millisecond,
		PreferencesDelay: 10 * time.Millisecond,
	}
	return cfg
}

// TestCatalog_NamesAndLookup tests the catalog registry
// Main test items:
// 1. Names are returned in presentation order
// 2. Get resolves every name and rejects unknown ones
func TestCatalog_NamesAndLookup(t *testing.T) {
	catalog := taskpatterns.NewCatalog(newFastConfig(), taskpatterns.CatalogOptions{Logger: core.NewNoOpLogger()})
	defer catalog.Close(context.Background())

	want := []string{
		patterns.NameSequential,
		patterns.NameTimer,
		patterns.NameRemoteCall,
		patterns.NameFanOut,
		patterns.NameProgress,
		patterns.NameNotifications,
	}
	got := catalog.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d names, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("name %d: expected %q, got %q", i, want[i], got[i])
		}
		p, err := catalog.Get(want[i])
		if err != nil {
			t.Fatalf("Get(%q): %v", want[i], err)
		}
		if p.Name() != want[i] {
			t.Errorf("Get(%q) returned controller %q", want[i], p.Name())
		}
	}

	if _, err := catalog.Get("missing"); err == nil {
		t.Error("expected error for unknown pattern")
	}

	if len(catalog.Patterns()) != len(want) {
		t.Errorf("expected %d patterns", len(want))
	}
}

// TestCatalog_CancellableFlags verifies only the sequential chain refuses cancellation
func TestCatalog_CancellableFlags(t *testing.T) {
	catalog := taskpatterns.NewCatalog(newFastConfig(), taskpatterns.CatalogOptions{Logger: core.NewNoOpLogger()})
	defer catalog.Close(context.Background())

	for _, p := range catalog.Patterns() {
		want := p.Name() != patterns.NameSequential
		if p.Cancellable() != want {
			t.Errorf("%s: expected Cancellable()=%v", p.Name(), want)
		}
	}
}

// TestCatalog_SequentialRunOnOwnedPool runs a short chain end to end
// Given: A catalog that starts its own pool
// When: The sequential controller is started and awaited
// Then: The run finishes and Close stops the pool
func TestCatalog_SequentialRunOnOwnedPool(t *testing.T) {
	catalog := taskpatterns.NewCatalog(newFastConfig(), taskpatterns.CatalogOptions{Logger: core.NewNoOpLogger()})

	if err := catalog.Sequential.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := catalog.Sequential.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if state != taskpatterns.StateFinished {
		t.Fatalf("expected Finished, got %v", state)
	}
	if !catalog.Sequential.Output().Contains("Preferences loaded") {
		t.Error("expected the last step in the output")
	}

	if err := catalog.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	pool, ok := catalog.Pool().(*core.GoroutineThreadPool)
	if !ok {
		t.Fatalf("expected owned GoroutineThreadPool, got %T", catalog.Pool())
	}
	if pool.IsRunning() {
		t.Error("owned pool should be stopped after Close")
	}
}

// TestCatalog_CloseCancelsActiveRuns tests teardown with runs in flight
// Main test items:
// 1. A timer waiting on a fake clock is torn down by Close
// 2. Close leaves a shared pool running
func TestCatalog_CloseCancelsActiveRuns(t *testing.T) {
	pool := core.NewGoroutineThreadPool("shared", 4)
	pool.Start(context.Background())
	defer pool.Stop()

	clock := clockwork.NewFakeClock()
	catalog := taskpatterns.NewCatalog(newFastConfig(), taskpatterns.CatalogOptions{
		Pool:   pool,
		Clock:  clock,
		Logger: core.NewNoOpLogger(),
	})

	if err := catalog.Timer.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("timer never waited: %v", err)
	}

	if err := catalog.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := catalog.Timer.Status().Get(); got != taskpatterns.StateCancelled {
		t.Errorf("expected Cancelled after Close, got %v", got)
	}
	if !pool.IsRunning() {
		t.Error("shared pool must survive Catalog.Close")
	}
}

// TestCatalog_CloseDrainsOwnedPool tests that Close lets queued work finish
// Given: A catalog owning a one-worker pool, busy with one task and holding another queued
// When: The catalog is closed
// Then: The queued task still runs before the pool stops
func TestCatalog_CloseDrainsOwnedPool(t *testing.T) {
	// Arrange
	cfg := newFastConfig()
	cfg.Workers = 1
	catalog := taskpatterns.NewCatalog(cfg, taskpatterns.CatalogOptions{Logger: core.NewNoOpLogger()})

	started := make(chan struct{})
	var queuedRan atomic.Bool
	if err := catalog.Pool().PostTask(func(context.Context) {
		close(started)
		time.Sleep(50 * time.Millisecond)
	}); err != nil {
		t.Fatalf("PostTask: %v", err)
	}
	if err := catalog.Pool().PostTask(func(context.Context) { queuedRan.Store(true) }); err != nil {
		t.Fatalf("PostTask: %v", err)
	}
	<-started

	// Act
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := catalog.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Assert
	if !queuedRan.Load() {
		t.Error("queued task was dropped by Close")
	}
	if catalog.Pool().IsRunning() {
		t.Error("owned pool should be stopped after Close")
	}
}

// TestCatalog_DefaultPoolWaitsInParallel tests that every download waits at once
// on the default pool, which has fewer workers than there are downloads.
func TestCatalog_DefaultPoolWaitsInParallel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cfg := taskpatterns.DefaultCatalogConfig()
	catalog := taskpatterns.NewCatalog(cfg, taskpatterns.CatalogOptions{Clock: clock, Logger: core.NewNoOpLogger()})
	defer catalog.Close(context.Background())

	if cfg.Workers >= len(cfg.Progress.Files) {
		t.Fatalf("default workers = %d, want fewer than %d downloads", cfg.Workers, len(cfg.Progress.Files))
	}
	if err := catalog.Progress.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 5); err != nil {
		t.Fatalf("downloads never waited together: %v", err)
	}
	if waiting := catalog.Progress.Stats().WaitingUnits; waiting != 5 {
		t.Errorf("WaitingUnits = %d, want 5", waiting)
	}
}

// TestCatalog_FanOutAlongsideOtherRuns tests fan-out timing on a shared pool
// Given: The default catalog with timer and progress runs already active
// When: A forecast starts and the clock moves by its longest request
// Then: The forecast finishes after max(durations), not their sum, and the
// other runs are still active
func TestCatalog_FanOutAlongsideOtherRuns(t *testing.T) {
	// Arrange
	clock := clockwork.NewFakeClock()
	cfg := taskpatterns.DefaultCatalogConfig()
	catalog := taskpatterns.NewCatalog(cfg, taskpatterns.CatalogOptions{Clock: clock, Logger: core.NewNoOpLogger()})
	defer catalog.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := catalog.Timer.Start(); err != nil {
		t.Fatalf("Timer.Start: %v", err)
	}
	if err := catalog.Progress.Start(); err != nil {
		t.Fatalf("Progress.Start: %v", err)
	}

	// Act
	if err := catalog.FanOut.Start(); err != nil {
		t.Fatalf("FanOut.Start: %v", err)
	}
	// 1 tick + 5 downloads + 3 requests
	if err := clock.BlockUntilContext(ctx, 9); err != nil {
		t.Fatalf("runs never waited together: %v", err)
	}
	clock.Advance(cfg.FanOut.TemperatureDelay)

	// Assert
	state, err := catalog.FanOut.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if state != taskpatterns.StateFinished {
		t.Fatalf("expected Finished, got %v", state)
	}
	forecast, ok := catalog.FanOut.LastForecast()
	if !ok {
		t.Fatal("no forecast recorded")
	}
	if forecast.Elapsed != cfg.FanOut.TemperatureDelay {
		t.Errorf("elapsed = %v, want %v", forecast.Elapsed, cfg.FanOut.TemperatureDelay)
	}
	if !catalog.Timer.Running().Get() || !catalog.Progress.Running().Get() {
		t.Error("timer and progress runs should still be active")
	}
}
