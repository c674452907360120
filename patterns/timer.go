package patterns

import (
	"context"
	"time"

	"github.com/Swind/go-task-patterns/core"
)

type TimerConfig struct {
	Interval time.Duration
	MaxTicks int
}

func DefaultTimerConfig() TimerConfig {
	return TimerConfig{Interval: time.Second, MaxTicks: 30}
}

func (c TimerConfig) withDefaults() TimerConfig {
	d := DefaultTimerConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.MaxTicks <= 0 {
		c.MaxTicks = d.MaxTicks
	}
	return c
}

// TimerController counts ticks on a single repeating unit until it reaches
// MaxTicks (Finished) or is cancelled (Cancelled). No tick is published once
// Cancel has returned.
type TimerController struct {
	*core.Controller
	cfg   TimerConfig
	ticks *core.Cell[int]
}

func NewTimerController(deps Deps, cfg TimerConfig) *TimerController {
	return &TimerController{
		Controller: core.NewController(deps.controllerOptions(NameTimer, true, "Cancellation requested...")),
		cfg:        cfg.withDefaults(),
		ticks:      core.NewCell(0),
	}
}

func (c *TimerController) Config() TimerConfig { return c.cfg }

// Ticks publishes the tick counter. It is reset to 0 on every Start.
func (c *TimerController) Ticks() *core.Cell[int] { return c.ticks }

// Restart cancels a running timer, waits for it to stop and starts a new one.
func (c *TimerController) Restart(ctx context.Context) error {
	return c.Controller.Restart(ctx, c.Start)
}

// Start begins counting. Use Restart to replace a running timer.
func (c *TimerController) Start() error {
	_, err := c.Begin(func(rc *core.RunContext) {
		out := c.Output()
		c.ticks.Set(0)
		out.Append("Timer started")
		out.Append("Counting on a background unit, the owner stays free")
		out.Append("")

		core.Spawn(rc, "timer", c.tick(0), func(res core.UnitResult[int]) {
			switch res.Outcome {
			case core.OutcomeSucceeded:
				out.Append("")
				out.Appendf("Limit reached (%d seconds)", res.Value)
			case core.OutcomeCancelled:
				out.Append("")
				out.Append("Timer cancelled")
			default:
				out.Appendf("Timer failed: %v", res.Err)
			}
			rc.Finish(terminalState(res.Outcome), res.Err)
		})
	})
	return err
}

// tick publishes tick n, if any, and waits for the next one.
func (c *TimerController) tick(n int) core.UnitFunc[int] {
	return func(u *core.UnitContext[int]) {
		if n > 0 {
			_ = u.Run().Deliver(func() {
				c.ticks.Set(n)
				c.Output().Appendf("Second %d", n)
			})
			if n >= c.cfg.MaxTicks {
				u.Return(n, nil)
				return
			}
		}
		u.After(c.cfg.Interval, c.tick(n+1))
	}
}
