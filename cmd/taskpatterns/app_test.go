package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/Swind/go-task-patterns/core"
	"github.com/Swind/go-task-patterns/patterns"
)

const fastConfig = `
log:
  level: error
sequential:
  login_delay: 20ms
  profile_delay: 20ms
  preferences_delay: 20ms
timer:
  interval: 1h
  max_ticks: 3
fan_out:
  temperature_delay: 30ms
  humidity_delay: 20ms
  wind_delay: 10ms
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskpatterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(&out)
	err := app.Run(append([]string{"taskpatterns", "--config", writeConfig(t, fastConfig)}, args...))
	return out.String(), err
}

func exitCode(err error) int {
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return -1
}

func TestList_PrintsEveryPattern(t *testing.T) {
	out, err := run(t, "list")
	require.NoError(t, err)

	for _, name := range []string{
		patterns.NameSequential,
		patterns.NameTimer,
		patterns.NameRemoteCall,
		patterns.NameFanOut,
		patterns.NameProgress,
		patterns.NameNotifications,
	} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "sequential     cancellable=no")
	assert.Contains(t, out, "timer          cancellable=yes")
}

// TestSequential_RunsToFinished streams the whole chain and exits cleanly.
func TestSequential_RunsToFinished(t *testing.T) {
	out, err := run(t, "sequential")
	require.NoError(t, err)

	assert.Contains(t, out, "-- status: Running")
	assert.Contains(t, out, "Login completed: user_token_12345")
	assert.Contains(t, out, "Preferences loaded")
	assert.Contains(t, out, "-- status: Finished")
	assert.NotContains(t, out, "Controller closed", "teardown happens after the follower detaches")
}

// TestTimer_CancelAfter cancels a timer that would otherwise wait an hour.
func TestTimer_CancelAfter(t *testing.T) {
	out, err := run(t, "timer", "--cancel-after", "50ms")
	require.Error(t, err)
	assert.Equal(t, exitCancelled, exitCode(err))

	assert.Contains(t, out, "Cancellation requested...")
	assert.Contains(t, out, "Timer cancelled")
	assert.Contains(t, out, "-- status: Cancelled")
}

// TestFanOut_CancelIsRefused waits for a non-cancellable run after noting the refusal.
func TestFanOut_CancelIsRefused(t *testing.T) {
	out, err := run(t, "fan-out", "--cancel-after", "1ms", "--seed", "9")
	require.NoError(t, err)

	assert.Contains(t, out, "fan-out cannot be cancelled")
	assert.Contains(t, out, "The requests ran IN PARALLEL")
	assert.Contains(t, out, "-- status: Finished")
}

func TestInvalidConfig_ExitsInternal(t *testing.T) {
	var out bytes.Buffer
	app := newApp(&out)
	path := writeConfig(t, "pool:\n  workers: 0\n")

	err := app.Run([]string{"taskpatterns", "--config", path, "list"})
	require.Error(t, err)
	assert.Equal(t, exitInternal, exitCode(err))
	assert.Contains(t, err.Error(), "validation failed")
}

func TestOverrideFlags_AreValidated(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{name: "non-positive workers", args: []string{"--workers", "-1"}},
		{name: "unknown log level", args: []string{"--log-level", "verbose"}},
		{name: "unknown log format", args: []string{"--log-format", "xml"}},
		{name: "malformed metrics address", args: []string{"--metrics-addr", "not an address"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, append(tc.args, "list")...)
			require.Error(t, err)
			assert.Equal(t, exitInternal, exitCode(err))
			assert.Contains(t, err.Error(), "validation failed")
		})
	}
}

func TestExitFor(t *testing.T) {
	assert.NoError(t, exitFor("x", core.StateFinished))
	assert.Equal(t, exitCancelled, exitCode(exitFor("x", core.StateCancelled)))
	assert.Equal(t, exitFailed, exitCode(exitFor("x", core.StateFailed)))
	assert.Equal(t, exitInternal, exitCode(exitFor("x", core.StateRunning)))
}

func TestFollower_ReprintsAfterClear(t *testing.T) {
	var out bytes.Buffer
	f := newFollower(&out)

	f.onText("a\n")
	f.onText("a\nb\n")
	f.onText("")
	f.onText("c\n")
	f.onProgress(0)
	f.onProgress(40)
	f.onProgress(40)

	assert.Equal(t, "a\nb\nc\n-- progress: 40%\n", out.String())
}
