package taskpatterns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-task-patterns/core"
	"github.com/Swind/go-task-patterns/patterns"
)

const defaultPoolDrainTimeout = 5 * time.Second

// CatalogConfig holds the per-pattern settings of a Catalog. Zero values
// fall back to each pattern's defaults.
type CatalogConfig struct {
	Workers int

	Sequential    patterns.SequentialConfig
	Timer         patterns.TimerConfig
	RemoteCall    patterns.RemoteCallConfig
	FanOut        patterns.FanOutConfig
	Progress      patterns.ProgressConfig
	Notifications patterns.NotificationConfig
}

// DefaultCatalogConfig returns the reference timings of every pattern.
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Workers:       4,
		Sequential:    patterns.DefaultSequentialConfig(),
		Timer:         patterns.DefaultTimerConfig(),
		RemoteCall:    patterns.DefaultRemoteCallConfig(),
		FanOut:        patterns.DefaultFanOutConfig(),
		Progress:      patterns.DefaultProgressConfig(),
		Notifications: patterns.DefaultNotificationConfig(),
	}
}

// CatalogOptions are the collaborators handed to every controller.
// A nil Pool makes the Catalog start and own a pool of cfg.Workers workers.
type CatalogOptions struct {
	Pool         core.ThreadPool
	Clock        core.Clock
	Logger       core.Logger
	Metrics      core.Metrics
	PanicHandler core.PanicHandler
	Rand         patterns.Rand
	UserAPI      patterns.UserAPI
	Context      context.Context
}

// Catalog owns one controller per pattern, all sharing a pool.
type Catalog struct {
	pool     core.ThreadPool
	ownsPool *core.GoroutineThreadPool
	order    []string
	byName   map[string]patterns.Pattern

	Sequential    *patterns.SequentialController
	Timer         *patterns.TimerController
	RemoteCall    *patterns.RemoteCallController
	FanOut        *patterns.FanOutController
	Progress      *patterns.ProgressController
	Notifications *patterns.NotificationController
}

// NewCatalog builds the six controllers.
func NewCatalog(cfg CatalogConfig, opts CatalogOptions) *Catalog {
	c := &Catalog{byName: make(map[string]patterns.Pattern)}

	pool := opts.Pool
	if pool == nil {
		workers := cfg.Workers
		if workers <= 0 {
			workers = DefaultCatalogConfig().Workers
		}
		owned := core.NewGoroutineThreadPoolWithConfig("taskpatterns-pool", workers, &core.TaskSchedulerConfig{
			PanicHandler: opts.PanicHandler,
			Metrics:      opts.Metrics,
			Logger:       opts.Logger,
		})
		ctx := opts.Context
		if ctx == nil {
			ctx = context.Background()
		}
		owned.Start(ctx)
		pool = owned
		c.ownsPool = owned
	}
	c.pool = pool

	deps := patterns.Deps{
		Pool:         pool,
		Clock:        opts.Clock,
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
		PanicHandler: opts.PanicHandler,
		Rand:         opts.Rand,
		Context:      opts.Context,
	}

	c.Sequential = patterns.NewSequentialController(deps, cfg.Sequential)
	c.Timer = patterns.NewTimerController(deps, cfg.Timer)
	c.RemoteCall = patterns.NewRemoteCallController(deps, cfg.RemoteCall, opts.UserAPI)
	c.FanOut = patterns.NewFanOutController(deps, cfg.FanOut)
	c.Progress = patterns.NewProgressController(deps, cfg.Progress)
	c.Notifications = patterns.NewNotificationController(deps, cfg.Notifications)

	for _, p := range []patterns.Pattern{c.Sequential, c.Timer, c.RemoteCall, c.FanOut, c.Progress, c.Notifications} {
		c.order = append(c.order, p.Name())
		c.byName[p.Name()] = p
	}
	return c
}

// Names returns the pattern names in presentation order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// Patterns returns every controller in presentation order.
func (c *Catalog) Patterns() []patterns.Pattern {
	out := make([]patterns.Pattern, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}

// Get looks a controller up by name.
func (c *Catalog) Get(name string) (patterns.Pattern, error) {
	p, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown pattern %q", name)
	}
	return p, nil
}

// Pool returns the pool the controllers run their units on.
func (c *Catalog) Pool() core.ThreadPool { return c.pool }

// Close tears every controller down. A pool the Catalog started is drained
// of queued tasks, bounded by ctx's deadline, before it stops.
func (c *Catalog) Close(ctx context.Context) error {
	var errs []error
	for _, p := range c.Patterns() {
		if err := p.Close(ctx); err != nil && !errors.Is(err, core.ErrControllerClosed) {
			errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
		}
	}
	if c.ownsPool != nil {
		if err := c.ownsPool.StopGraceful(drainTimeout(ctx)); err != nil {
			errs = append(errs, fmt.Errorf("stop pool: %w", err))
		}
	}
	return errors.Join(errs...)
}

// drainTimeout bounds how long Close lets the owned pool finish queued tasks.
func drainTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return max(time.Until(deadline), 0)
	}
	return defaultPoolDrainTimeout
}
