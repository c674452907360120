package patterns

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/Swind/go-task-patterns/core"
)

// stubRand always draws the same values. IntN is clamped to n-1.
type stubRand struct {
	n int
	f float64
}

func (s stubRand) IntN(n int) int {
	if s.n >= n {
		return n - 1
	}
	return s.n
}

func (s stubRand) Float64() float64 { return s.f }

func newTestDeps(t *testing.T) (Deps, *clockwork.FakeClock) {
	t.Helper()
	// One worker: units park on the clock, so waits must never need more.
	pool := core.NewGoroutineThreadPoolWithConfig("patterns-test", 1, &core.TaskSchedulerConfig{Logger: core.NewNoOpLogger()})
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	clock := clockwork.NewFakeClock()
	return Deps{
		Pool:  pool,
		Clock: clock,
		Rand:  stubRand{},
	}, clock
}

func closeOnCleanup(t *testing.T, p Pattern) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = p.Close(ctx)
	})
}

func blockUntil(t *testing.T, clock *clockwork.FakeClock, waiters int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, waiters), "waiting for %d timers", waiters)
}

// advance waits until at least waiters timers are pending, then moves the clock.
func advance(t *testing.T, clock *clockwork.FakeClock, waiters int, d time.Duration) {
	t.Helper()
	blockUntil(t, clock, waiters)
	clock.Advance(d)
}

func waitRun(t *testing.T, p Pattern) core.RunState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := p.Wait(ctx)
	require.NoError(t, err)
	return state
}

// lineIndex returns the index of the first output line containing substr, or -1.
func lineIndex(lines []string, substr string) int {
	for i, line := range lines {
		if strings.Contains(line, substr) {
			return i
		}
	}
	return -1
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}
