package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	taskpatterns "github.com/Swind/go-task-patterns"
	"github.com/Swind/go-task-patterns/core"
	"github.com/Swind/go-task-patterns/patterns"
)

func ListCommand(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "List the available patterns",
		Action: env.listAction,
	}
}

func (e *appEnv) listAction(c *cli.Context) error {
	catalog := taskpatterns.NewCatalog(e.cfg.CatalogConfig(), taskpatterns.CatalogOptions{Logger: core.NewNoOpLogger()})
	defer catalog.Close(context.Background())

	for _, info := range patternCommands {
		p, err := catalog.Get(info.name)
		if err != nil {
			return cli.Exit(err.Error(), exitInternal)
		}
		cancel := "no"
		if p.Cancellable() {
			cancel = "yes"
		}
		fmt.Fprintf(e.out, "%-14s cancellable=%-3s %s\n", info.name, cancel, info.usage)
	}
	return nil
}

func PatternCommand(env *appEnv, info patternInfo) *cli.Command {
	return &cli.Command{
		Name:  info.name,
		Usage: info.usage,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "cancel-after",
				Usage: "Request cancellation after this long (0 waits for the run to end)",
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Seed the simulation for a reproducible run (0 is random)",
			},
		},
		Action: func(c *cli.Context) error {
			return env.runPattern(c, info.name)
		},
	}
}

func (e *appEnv) runPattern(c *cli.Context, name string) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := taskpatterns.CatalogOptions{Logger: e.logger}
	if seed := c.Uint64("seed"); seed != 0 {
		opts.Rand = patterns.LockedRand(rand.New(rand.NewPCG(seed, seed)))
	}

	var metrics *metricsServer
	if e.cfg.Metrics.Addr != "" {
		var err error
		metrics, err = newMetricsServer(e.cfg.Metrics.Addr, e.cfg.Metrics.PollInterval)
		if err != nil {
			return cli.Exit(fmt.Sprintf("metrics: %v", err), exitInternal)
		}
		opts.Metrics = metrics.exporter
	}

	catalog := taskpatterns.NewCatalog(e.cfg.CatalogConfig(), opts)
	defer catalog.Close(context.Background())

	if metrics != nil {
		metrics.start(ctx, catalog)
		defer metrics.shutdown()
		e.logger.Info("serving metrics", core.F("addr", metrics.addr()))
	}

	p, err := catalog.Get(name)
	if err != nil {
		return cli.Exit(err.Error(), exitInternal)
	}

	f := newFollower(e.out)
	unfollow := f.follow(p)
	defer unfollow()

	if err := p.Start(); err != nil {
		return cli.Exit(fmt.Sprintf("start %s: %v", name, err), exitInternal)
	}

	state := e.await(ctx, p, c.Duration("cancel-after"), f)
	unfollow()
	return exitFor(name, state)
}

// await blocks until the run ends, turning a signal or the cancel-after
// deadline into one cancel request.
func (e *appEnv) await(ctx context.Context, p patterns.Pattern, cancelAfter time.Duration, f *follower) core.RunState {
	ended := make(chan core.RunState, 1)
	go func() {
		state, _ := p.Wait(context.Background())
		ended <- state
	}()

	var deadline <-chan time.Time
	if cancelAfter > 0 {
		timer := time.NewTimer(cancelAfter)
		defer timer.Stop()
		deadline = timer.C
	}
	interrupted := ctx.Done()

	for {
		select {
		case state := <-ended:
			return state
		case <-interrupted:
			interrupted = nil
			e.requestCancel(p, f)
		case <-deadline:
			deadline = nil
			e.requestCancel(p, f)
		}
	}
}

func (e *appEnv) requestCancel(p patterns.Pattern, f *follower) {
	err := p.Cancel()
	switch {
	case err == nil:
	case errors.Is(err, core.ErrNotCancellable):
		f.note("%s cannot be cancelled, waiting for it to finish", p.Name())
	case errors.Is(err, core.ErrNoActiveRun):
	default:
		e.logger.Warn("cancel failed", core.F("controller", p.Name()), core.F("error", err))
	}
}

func exitFor(name string, state core.RunState) error {
	switch state {
	case core.StateFinished:
		return nil
	case core.StateCancelled:
		return cli.Exit(fmt.Sprintf("%s: run cancelled", name), exitCancelled)
	case core.StateFailed:
		return cli.Exit(fmt.Sprintf("%s: run failed", name), exitFailed)
	default:
		return cli.Exit(fmt.Sprintf("%s: run ended in %s", name, state), exitInternal)
	}
}
