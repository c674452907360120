package main

import (
	"io"

	"github.com/urfave/cli/v2"

	"github.com/Swind/go-task-patterns/core"
	"github.com/Swind/go-task-patterns/internal/config"
	"github.com/Swind/go-task-patterns/internal/platform/logger"
	"github.com/Swind/go-task-patterns/patterns"
)

// Exit codes mirror the terminal state of the run.
const (
	exitFinished  = 0
	exitFailed    = 1
	exitCancelled = 2
	exitInternal  = 3
)

// appEnv carries what the Before hook resolves to every action.
type appEnv struct {
	out    io.Writer
	cfg    *config.Config
	logger core.Logger
}

func newApp(out io.Writer) *cli.App {
	env := &appEnv{out: out}

	commands := []*cli.Command{ListCommand(env)}
	for _, p := range patternCommands {
		commands = append(commands, PatternCommand(env, p))
	}

	return &cli.App{
		Name:   "taskpatterns",
		Usage:  "Run asynchronous orchestration patterns and watch their output",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML, JSON or TOML config file",
				EnvVars: []string{config.EnvPrefix + "_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override log.level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Override log.format (json, text)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address, e.g. localhost:9090",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Override pool.workers",
			},
		},
		Before:   env.load,
		Commands: commands,
		// Exit codes are applied by main so tests can inspect them.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func (e *appEnv) load(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitInternal)
	}

	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Addr = c.String("metrics-addr")
	}
	if c.IsSet("workers") {
		cfg.Pool.Workers = c.Int("workers")
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), exitInternal)
	}

	_, e.logger = logger.Setup(cfg.Log)
	e.cfg = cfg
	return nil
}

// patternInfo describes one pattern subcommand.
type patternInfo struct {
	name  string
	usage string
}

var patternCommands = []patternInfo{
	{patterns.NameSequential, "Chain login, profile and preferences one after another"},
	{patterns.NameTimer, "Count seconds until the cap or a cancel"},
	{patterns.NameRemoteCall, "Call a simulated API with random latency and failures"},
	{patterns.NameFanOut, "Fetch three weather values in parallel and join them"},
	{patterns.NameProgress, "Download several files in parallel with aggregate progress"},
	{patterns.NameNotifications, "Emit periodic notifications until the cap or a stop"},
}
