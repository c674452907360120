package patterns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Swind/go-task-patterns/core"
)

func TestRemoteCall_Success(t *testing.T) {
	deps, clock := newTestDeps(t)
	deps.Rand = stubRand{n: 0, f: 0.99}
	c := NewRemoteCallController(deps, RemoteCallConfig{}, nil)
	closeOnCleanup(t, c)

	require.NoError(t, c.Start())
	advance(t, clock, 1, 1500*time.Millisecond)
	require.Equal(t, core.StateFinished, waitRun(t, c))

	text := c.Output().Text()
	assert.Contains(t, text, "Response received in 1500ms")
	assert.Contains(t, text, "  ID: 1000")
	assert.Contains(t, text, "  Name: Test User")
	assert.Contains(t, text, "  Email: user@example.com")
	assert.Contains(t, text, "  Premium: No")
	assert.NotContains(t, text, "Error")
	assert.Equal(t, "Finished", c.Status().Get().Label())
}

// TestRemoteCall_InjectedFailure tests the no-retry failure path
// Main test items:
// 1. The run ends Failed, labelled "Error"
// 2. The log carries the elapsed time and the error text
// 3. The cause is an *APIError wrapping ErrNetworkTimeout
func TestRemoteCall_InjectedFailure(t *testing.T) {
	deps, clock := newTestDeps(t)
	deps.Rand = stubRand{n: 0, f: 0.1}
	c := NewRemoteCallController(deps, RemoteCallConfig{}, nil)
	closeOnCleanup(t, c)

	require.NoError(t, c.Start())
	advance(t, clock, 1, 1500*time.Millisecond)
	require.Equal(t, core.StateFailed, waitRun(t, c))

	text := c.Output().Text()
	assert.Contains(t, text, "Error after 1500ms")
	assert.Contains(t, text, "Error: get user data: network error: timeout")
	assert.Equal(t, "Error", c.Status().Get().Label())
	assert.False(t, c.Running().Get())

	last, ok := c.LastRun()
	require.True(t, ok)
	assert.ErrorIs(t, last.Err, ErrNetworkTimeout)
	var apiErr *APIError
	require.ErrorAs(t, last.Err, &apiErr)
	assert.Equal(t, "get user data", apiErr.Op)
	assert.Equal(t, 1, last.Units, "no retry")
}

func TestRemoteCall_CustomAPI(t *testing.T) {
	deps, _ := newTestDeps(t)
	calls := 0
	api := UserAPIFunc(func(ctx context.Context) (UserData, error) {
		calls++
		return UserData{}, &APIError{Op: "lookup", Err: errors.New("503")}
	})
	c := NewRemoteCallController(deps, RemoteCallConfig{}, api)
	closeOnCleanup(t, c)

	require.NoError(t, c.Start())
	require.Equal(t, core.StateFailed, waitRun(t, c))

	assert.Equal(t, 1, calls)
	assert.Contains(t, c.Output().Text(), "Error after 0ms")
	assert.Contains(t, c.Output().Text(), "Error: lookup: 503")
}

func TestSimulatedUserAPI_LatencyRange(t *testing.T) {
	clock := clockwork.NewFakeClock()
	api := &SimulatedUserAPI{
		Clock:      clock,
		Rand:       stubRand{n: 1 << 30, f: 0.5},
		MinLatency: 1500 * time.Millisecond,
		MaxLatency: 3000 * time.Millisecond,
	}

	done := make(chan UserData, 1)
	go func() {
		data, err := api.GetUserData(context.Background())
		assert.NoError(t, err)
		done <- data
	}()

	advance(t, clock, 1, 2998*time.Millisecond)
	select {
	case <-done:
		t.Fatal("returned before the drawn latency")
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(time.Millisecond)
	select {
	case data := <-done:
		assert.Equal(t, 9998, data.ID)
		assert.True(t, data.Premium)
	case <-time.After(time.Second):
		t.Fatal("never returned after the maximum latency")
	}
}
