package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

// captureLogger records every call for assertions.
type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level  string
	msg    string
	fields map[string]any
}

func (l *captureLogger) record(level, msg string, fields []Field) {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: m})
	l.mu.Unlock()
}

func (l *captureLogger) Debug(msg string, fields ...Field) { l.record("DEBUG", msg, fields) }
func (l *captureLogger) Info(msg string, fields ...Field)  { l.record("INFO", msg, fields) }
func (l *captureLogger) Warn(msg string, fields ...Field)  { l.record("WARN", msg, fields) }
func (l *captureLogger) Error(msg string, fields ...Field) { l.record("ERROR", msg, fields) }

func (l *captureLogger) snapshot() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]logEntry(nil), l.entries...)
}

// TestDefaultPanicHandler verifies panics are reported through the configured Logger
// Given: A DefaultPanicHandler with a capturing logger
// When: HandlePanic is called
// Then: One error entry carries the runner, worker and panic value
func TestDefaultPanicHandler(t *testing.T) {
	logger := &captureLogger{}
	h := &DefaultPanicHandler{Logger: logger}

	h.HandlePanic(context.Background(), "timer-owner", -1, "boom", []byte("stack"))

	entries := logger.snapshot()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	e := entries[0]
	if e.level != "ERROR" || e.msg != "task panicked" {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.fields["runner"] != "timer-owner" || e.fields["worker"] != -1 || e.fields["panic"] != "boom" {
		t.Errorf("unexpected fields %+v", e.fields)
	}
}

func TestDefaultRejectedTaskHandler(t *testing.T) {
	logger := &captureLogger{}
	h := &DefaultRejectedTaskHandler{Logger: logger}

	h.HandleRejectedTask("pool", "shutting down")

	entries := logger.snapshot()
	if len(entries) != 1 || entries[0].level != "WARN" {
		t.Fatalf("expected one warning, got %+v", entries)
	}
	if entries[0].fields["reason"] != "shutting down" {
		t.Errorf("expected reason field, got %+v", entries[0].fields)
	}
}

// TestNilMetrics verifies the no-op implementation accepts every call
func TestNilMetrics(t *testing.T) {
	var m Metrics = &NilMetrics{}
	m.RecordRunDuration("c", StateFinished, time.Second)
	m.RecordUnitOutcome("c", OutcomeFailed)
	m.RecordRunRejected("c", "in_progress")
	m.RecordTaskPanic("r", "p")
	m.RecordQueueDepth("r", 3)
}

func TestDefaultTaskSchedulerConfig(t *testing.T) {
	cfg := DefaultTaskSchedulerConfig()
	if cfg.PanicHandler == nil || cfg.Metrics == nil || cfg.RejectedTaskHandler == nil || cfg.Logger == nil {
		t.Fatalf("default config has nil handlers: %+v", cfg)
	}
}

// TestTaskSchedulerConfig_PartialConfig verifies nil fields fall back to defaults
// Given: A config carrying only a Logger
// When: A scheduler is built from it
// Then: The default handlers report through that Logger
func TestTaskSchedulerConfig_PartialConfig(t *testing.T) {
	logger := &captureLogger{}
	s := NewTaskSchedulerWithConfig("partial", 1, &TaskSchedulerConfig{Logger: logger})

	if _, ok := s.GetMetrics().(*NilMetrics); !ok {
		t.Errorf("expected NilMetrics fallback, got %T", s.GetMetrics())
	}

	s.GetPanicHandler().HandlePanic(context.Background(), "partial", 0, "x", nil)
	s.Shutdown()
	_ = s.PostInternal(func(context.Context) {})

	var panics, rejects int
	for _, e := range logger.snapshot() {
		switch e.msg {
		case "task panicked":
			panics++
		case "task rejected":
			rejects++
		}
	}
	if panics != 1 || rejects != 1 {
		t.Errorf("expected 1 panic and 1 rejection logged, got %d and %d", panics, rejects)
	}
}
