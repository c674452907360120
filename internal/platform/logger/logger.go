// Package logger configures the structured logger of the task patterns CLI.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Swind/go-task-patterns/core"
	"github.com/Swind/go-task-patterns/internal/config"
)

// Setup builds a logger writing to stderr from cfg and sets it as the
// default slog logger. It returns the logger together with its core.Logger
// adapter for the controllers.
func Setup(cfg config.LogConfig) (*slog.Logger, core.Logger) {
	l := New(cfg, os.Stderr)
	slog.SetDefault(l)
	return l, core.NewSlogLogger(l)
}

// New builds a JSON or text logger at the configured level writing to w.
// An unknown level falls back to info and a warning is logged.
func New(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level, ok := ParseLevel(cfg.Level)

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	l := slog.New(handler)
	if !ok {
		l.Warn("invalid log level configured, using default level",
			"configured_level", cfg.Level,
			"default_level", "info")
	}
	return l
}

// ParseLevel maps a case-insensitive level name to a slog.Level.
// It reports false for unknown names, returning slog.LevelInfo.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
