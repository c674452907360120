package patterns

import (
	"time"

	"github.com/Swind/go-task-patterns/core"
)

// SequentialConfig holds the simulated duration of each step.
type SequentialConfig struct {
	LoginDelay       time.Duration
	ProfileDelay     time.Duration
	PreferencesDelay time.Duration
}

func DefaultSequentialConfig() SequentialConfig {
	return SequentialConfig{
		LoginDelay:       2000 * time.Millisecond,
		ProfileDelay:     1500 * time.Millisecond,
		PreferencesDelay: 1000 * time.Millisecond,
	}
}

func (c SequentialConfig) withDefaults() SequentialConfig {
	d := DefaultSequentialConfig()
	if c.LoginDelay <= 0 {
		c.LoginDelay = d.LoginDelay
	}
	if c.ProfileDelay <= 0 {
		c.ProfileDelay = d.ProfileDelay
	}
	if c.PreferencesDelay <= 0 {
		c.PreferencesDelay = d.PreferencesDelay
	}
	return c
}

// Total is the minimum elapsed time of a run.
func (c SequentialConfig) Total() time.Duration {
	return c.LoginDelay + c.ProfileDelay + c.PreferencesDelay
}

// chainStep is one dependent step. result receives the values of every
// earlier step.
type chainStep struct {
	name   string
	delay  time.Duration
	begin  string
	done   string
	result func(prev []string) string
}

// SequentialController runs login, profile and preferences strictly in order.
// Each step starts only from the reply of the previous one. Not cancellable.
type SequentialController struct {
	*core.Controller
	cfg   SequentialConfig
	steps []chainStep
}

func NewSequentialController(deps Deps, cfg SequentialConfig) *SequentialController {
	cfg = cfg.withDefaults()
	return &SequentialController{
		Controller: core.NewController(deps.controllerOptions(NameSequential, false, "")),
		cfg:        cfg,
		steps: []chainStep{
			{
				name:   "login",
				delay:  cfg.LoginDelay,
				begin:  "Starting login...",
				done:   "Login completed: %s",
				result: func([]string) string { return "user_token_12345" },
			},
			{
				name:   "profile",
				delay:  cfg.ProfileDelay,
				begin:  "Loading user profile...",
				done:   "Profile loaded: %s",
				result: func([]string) string { return "Juan Pérez (juan@example.com)" },
			},
			{
				name:   "preferences",
				delay:  cfg.PreferencesDelay,
				begin:  "Loading preferences...",
				done:   "Preferences loaded: %s",
				result: func([]string) string { return "Dark theme, Notifications: ON" },
			},
		},
	}
}

func (c *SequentialController) Config() SequentialConfig { return c.cfg }

// Start begins a run. It returns core.ErrRunInProgress while one is active.
func (c *SequentialController) Start() error {
	_, err := c.Begin(func(rc *core.RunContext) {
		c.step(rc, 0, nil)
	})
	return err
}

func (c *SequentialController) step(rc *core.RunContext, i int, results []string) {
	out := c.Output()
	if i == len(c.steps) {
		out.Append("")
		out.Appendf("Total time: %dms", rc.Elapsed().Milliseconds())
		out.Append("The steps ran SEQUENTIALLY")
		out.Append("   (one after another)")
		rc.Finish(core.StateFinished, nil)
		return
	}

	s := c.steps[i]
	if i > 0 {
		out.Append("")
	}
	out.Append(s.begin)

	core.Spawn(rc, s.name, core.Delayed(s.delay, func() (string, error) {
		return s.result(results), nil
	}), func(res core.UnitResult[string]) {
		switch res.Outcome {
		case core.OutcomeSucceeded:
			out.Appendf(s.done, res.Value)
			c.step(rc, i+1, append(results, res.Value))
		case core.OutcomeCancelled:
			out.Appendf("Step %s interrupted", s.name)
			rc.Finish(core.StateCancelled, nil)
		default:
			out.Appendf("Step %s failed: %v", s.name, res.Err)
			rc.Finish(core.StateFailed, res.Err)
		}
	})
}
