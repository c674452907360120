package patterns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-task-patterns/core"
)

// ErrNetworkTimeout is the injected transient failure of SimulatedUserAPI.
var ErrNetworkTimeout = errors.New("network error: timeout")

// APIError wraps a failure returned by a UserAPI.
type APIError struct {
	Op  string
	Err error
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *APIError) Unwrap() error { return e.Err }

// UserData is the payload of a successful remote call.
type UserData struct {
	ID        int
	Name      string
	Email     string
	CreatedAt time.Time
	Premium   bool
}

// Lines renders the payload fields for the output log.
func (u UserData) Lines() []string {
	premium := "No"
	if u.Premium {
		premium = "Yes"
	}
	return []string{
		fmt.Sprintf("  ID: %d", u.ID),
		fmt.Sprintf("  Name: %s", u.Name),
		fmt.Sprintf("  Email: %s", u.Email),
		fmt.Sprintf("  Created: %s", u.CreatedAt.Format(time.RFC1123)),
		fmt.Sprintf("  Premium: %s", premium),
	}
}

// UserAPI fetches user data. Calls may block; they run on their own
// goroutine. Implementations must return promptly with core.ErrCancelled or
// ctx.Err() once ctx is done.
type UserAPI interface {
	GetUserData(ctx context.Context) (UserData, error)
}

// UserAPIFunc adapts a function to UserAPI.
type UserAPIFunc func(ctx context.Context) (UserData, error)

func (f UserAPIFunc) GetUserData(ctx context.Context) (UserData, error) { return f(ctx) }

// SimulatedUserAPI waits a random latency on its clock and fails with
// ErrNetworkTimeout with probability FailureRate.
type SimulatedUserAPI struct {
	Clock       core.Clock
	Rand        Rand
	MinLatency  time.Duration
	MaxLatency  time.Duration
	FailureRate float64
}

func (s *SimulatedUserAPI) GetUserData(ctx context.Context) (UserData, error) {
	latency := durationRange(s.Rand, s.MinLatency, s.MaxLatency)
	if core.Wait(ctx, s.Clock, latency) == core.WaitCancelled {
		return UserData{}, core.ErrCancelled
	}

	if s.Rand.Float64() < s.FailureRate {
		return UserData{}, &APIError{Op: "get user data", Err: ErrNetworkTimeout}
	}

	return UserData{
		ID:        intRange(s.Rand, 1000, 9999),
		Name:      "Test User",
		Email:     "user@example.com",
		CreatedAt: s.Clock.Now(),
		Premium:   s.Rand.IntN(2) == 1,
	}, nil
}

type RemoteCallConfig struct {
	MinLatency  time.Duration
	MaxLatency  time.Duration
	FailureRate float64
}

func DefaultRemoteCallConfig() RemoteCallConfig {
	return RemoteCallConfig{
		MinLatency:  1500 * time.Millisecond,
		MaxLatency:  3000 * time.Millisecond,
		FailureRate: 0.2,
	}
}

func (c RemoteCallConfig) withDefaults() RemoteCallConfig {
	d := DefaultRemoteCallConfig()
	if c.MinLatency <= 0 {
		c.MinLatency = d.MinLatency
	}
	if c.MaxLatency < c.MinLatency {
		c.MaxLatency = c.MinLatency
	}
	if c.FailureRate < 0 {
		c.FailureRate = 0
	}
	return c
}

// RemoteCallController performs one call through a UserAPI and reports the
// payload or the error with the elapsed time. Failures are terminal; there is
// no retry. Not cancellable.
type RemoteCallController struct {
	*core.Controller
	cfg RemoteCallConfig
	api UserAPI
}

// NewRemoteCallController uses api, or a SimulatedUserAPI configured from
// cfg and deps when api is nil.
func NewRemoteCallController(deps Deps, cfg RemoteCallConfig, api UserAPI) *RemoteCallController {
	cfg = cfg.withDefaults()
	ctrl := core.NewController(deps.controllerOptions(NameRemoteCall, false, ""))
	if api == nil {
		api = &SimulatedUserAPI{
			Clock:       ctrl.Clock(),
			Rand:        deps.rand(),
			MinLatency:  cfg.MinLatency,
			MaxLatency:  cfg.MaxLatency,
			FailureRate: cfg.FailureRate,
		}
	}
	return &RemoteCallController{Controller: ctrl, cfg: cfg, api: api}
}

func (c *RemoteCallController) Config() RemoteCallConfig { return c.cfg }

func (c *RemoteCallController) Start() error {
	_, err := c.Begin(func(rc *core.RunContext) {
		out := c.Output()
		out.Append("Starting API call...")
		out.Append("The call blocks its own goroutine, not the owner or the pool")
		out.Append("")
		out.Append("Connecting to server...")

		core.Spawn(rc, "get-user-data", func(u *core.UnitContext[UserData]) {
			u.Await(c.api.GetUserData)
		}, func(res core.UnitResult[UserData]) {
			c.report(rc, res)
		})
	})
	return err
}

func (c *RemoteCallController) report(rc *core.RunContext, res core.UnitResult[UserData]) {
	out := c.Output()
	elapsed := rc.Elapsed().Milliseconds()

	switch res.Outcome {
	case core.OutcomeSucceeded:
		out.Appendf("Response received in %dms", elapsed)
		out.Append("")
		out.Append("Data received:")
		for _, line := range res.Value.Lines() {
			out.Append(line)
		}
	case core.OutcomeCancelled:
		out.Appendf("Call abandoned after %dms", elapsed)
	default:
		out.Appendf("Error after %dms", elapsed)
		out.Appendf("Error: %v", res.Err)
	}

	out.Append("")
	out.Append("The call reads top to bottom while running off the owner")
	rc.Finish(terminalState(res.Outcome), res.Err)
}
