package patterns

import (
	"fmt"
	"sync"
	"time"

	"github.com/Swind/go-task-patterns/core"
)

// FanOutConfig holds the simulated duration of each of the three requests.
type FanOutConfig struct {
	TemperatureDelay time.Duration
	HumidityDelay    time.Duration
	WindDelay        time.Duration
}

func DefaultFanOutConfig() FanOutConfig {
	return FanOutConfig{
		TemperatureDelay: 2000 * time.Millisecond,
		HumidityDelay:    1500 * time.Millisecond,
		WindDelay:        1000 * time.Millisecond,
	}
}

func (c FanOutConfig) withDefaults() FanOutConfig {
	d := DefaultFanOutConfig()
	if c.TemperatureDelay <= 0 {
		c.TemperatureDelay = d.TemperatureDelay
	}
	if c.HumidityDelay <= 0 {
		c.HumidityDelay = d.HumidityDelay
	}
	if c.WindDelay <= 0 {
		c.WindDelay = d.WindDelay
	}
	return c
}

// Sequential is the elapsed time the three requests would take one by one.
func (c FanOutConfig) Sequential() time.Duration {
	return c.TemperatureDelay + c.HumidityDelay + c.WindDelay
}

// Forecast is the fan-in result of one run.
type Forecast struct {
	Temperature string
	Humidity    string
	Wind        string
	Elapsed     time.Duration
}

type weatherRequest struct {
	name    string
	label   string
	delay   time.Duration
	measure func(r Rand) string
}

// FanOutController fetches temperature, humidity and wind concurrently and
// reports once all three have arrived. The elapsed time tracks the slowest
// request, not the sum. Not cancellable.
type FanOutController struct {
	*core.Controller
	cfg      FanOutConfig
	rand     Rand
	requests []weatherRequest

	mu       sync.Mutex
	forecast Forecast
	ok       bool
}

func NewFanOutController(deps Deps, cfg FanOutConfig) *FanOutController {
	cfg = cfg.withDefaults()
	return &FanOutController{
		Controller: core.NewController(deps.controllerOptions(NameFanOut, false, "")),
		cfg:        cfg,
		rand:       deps.rand(),
		requests: []weatherRequest{
			{"temperature", "Temperature", cfg.TemperatureDelay, func(r Rand) string {
				return fmt.Sprintf("%d°C", intRange(r, 15, 35))
			}},
			{"humidity", "Humidity", cfg.HumidityDelay, func(r Rand) string {
				return fmt.Sprintf("%d%%", intRange(r, 40, 90))
			}},
			{"wind", "Wind", cfg.WindDelay, func(r Rand) string {
				return fmt.Sprintf("%d km/h", intRange(r, 5, 40))
			}},
		},
	}
}

func (c *FanOutController) Config() FanOutConfig { return c.cfg }

// LastForecast returns the result of the most recent finished run.
func (c *FanOutController) LastForecast() (Forecast, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forecast, c.ok
}

func (c *FanOutController) Start() error {
	_, err := c.Begin(func(rc *core.RunContext) {
		out := c.Output()
		out.Append("Fetching weather forecast...")
		out.Append("Fan-out over the pool, fan-in on the owner")
		out.Append("")
		out.Appendf("Starting %d concurrent requests...", len(c.requests))
		out.Append("")

		specs := make([]core.UnitSpec[string], 0, len(c.requests))
		for _, req := range c.requests {
			specs = append(specs, core.UnitSpec[string]{
				Name: req.name,
				Run: func(u *core.UnitContext[string]) {
					u.Logf("Requesting %s...", req.name)
					u.After(req.delay, func(u *core.UnitContext[string]) {
						u.Return(req.measure(c.rand), nil)
					})
				},
			})
		}
		core.SpawnAll(rc, specs, nil, func(results []core.UnitResult[string]) {
			c.collect(rc, results)
		})

		out.Append("")
		out.Append("Waiting for results...")
		out.Append("")
	})
	return err
}

func (c *FanOutController) collect(rc *core.RunContext, results []core.UnitResult[string]) {
	out := c.Output()

	for i, res := range results {
		if res.Outcome != core.OutcomeSucceeded {
			out.Appendf("%s request did not complete: %v", c.requests[i].label, res.Err)
			rc.Finish(terminalState(res.Outcome), res.Err)
			return
		}
	}
	for i, res := range results {
		out.Appendf("%s: %s", c.requests[i].label, res.Value)
	}

	elapsed := rc.Elapsed()
	sequential := c.cfg.Sequential()

	out.Append("")
	out.Appendf("Total time: %dms", elapsed.Milliseconds())
	out.Append("")
	out.Append("ANALYSIS:")
	out.Appendf("   Expected sequential time: ~%dms", sequential.Milliseconds())
	out.Appendf("     (%dms + %dms + %dms)",
		c.cfg.TemperatureDelay.Milliseconds(), c.cfg.HumidityDelay.Milliseconds(), c.cfg.WindDelay.Milliseconds())
	out.Appendf("   Actual concurrent time: %dms", elapsed.Milliseconds())
	out.Appendf("   Saved: ~%dms", (sequential - elapsed).Milliseconds())
	out.Append("")
	out.Append("The requests ran IN PARALLEL")

	c.mu.Lock()
	c.forecast = Forecast{
		Temperature: results[0].Value,
		Humidity:    results[1].Value,
		Wind:        results[2].Value,
		Elapsed:     elapsed,
	}
	c.ok = true
	c.mu.Unlock()

	rc.Finish(core.StateFinished, nil)
}
