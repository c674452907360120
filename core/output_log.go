package core

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// TimestampLayout is the layout of the timestamp prefixed to every log line.
const TimestampLayout = "15:04:05.000"

// OutputLog is the append-only, timestamped text log of a controller.
// Subscribers receive the full concatenated text on every change.
type OutputLog struct {
	clock Clock

	mu    sync.Mutex
	lines []string

	text *Cell[string]
}

// NewOutputLog returns an empty log stamping lines with clock.
func NewOutputLog(clock Clock) *OutputLog {
	if clock == nil {
		clock = NewRealClock()
	}
	return &OutputLog{clock: clock, text: NewCell("")}
}

// Append adds text stamped with the current clock time.
func (l *OutputLog) Append(text string) {
	l.AppendAt(l.clock.Now(), text)
}

// Appendf formats and appends a line.
func (l *OutputLog) Appendf(format string, args ...any) {
	l.AppendAt(l.clock.Now(), fmt.Sprintf(format, args...))
}

// AppendAt adds text stamped with at. Callers that post a line to another
// goroutine capture the time first so the stamp reflects the event.
func (l *OutputLog) AppendAt(at time.Time, text string) {
	line := "[" + at.Format(TimestampLayout) + "] " + text
	l.text.Update(func(cur string) string {
		l.mu.Lock()
		l.lines = append(l.lines, line)
		l.mu.Unlock()
		return cur + line + "\n"
	})
}

// Clear empties the log and notifies subscribers with "".
func (l *OutputLog) Clear() {
	l.text.Update(func(string) string {
		l.mu.Lock()
		l.lines = nil
		l.mu.Unlock()
		return ""
	})
}

// Text returns the full log.
func (l *OutputLog) Text() string {
	return l.text.Get()
}

// Lines returns a copy of the log lines without trailing newlines.
func (l *OutputLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.lines)
}

// Contains reports whether any line contains substr.
func (l *OutputLog) Contains(substr string) bool {
	return strings.Contains(l.Text(), substr)
}

// Subscribe registers fn for every change of the log text.
func (l *OutputLog) Subscribe(fn func(text string)) (unsubscribe func()) {
	return l.text.Subscribe(fn)
}

// Cell exposes the underlying observable text.
func (l *OutputLog) Cell() *Cell[string] {
	return l.text
}
