package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/Swind/go-task-patterns/core"
	"github.com/Swind/go-task-patterns/patterns"
)

// follower prints what a controller publishes: new output lines, status
// changes and progress.
type follower struct {
	mu           sync.Mutex
	w            io.Writer
	printed      int
	lastProgress int
}

func newFollower(w io.Writer) *follower {
	return &follower{w: w}
}

// follow subscribes to p and returns a func that unsubscribes everything.
func (f *follower) follow(p patterns.Pattern) func() {
	f.mu.Lock()
	f.printed = len(p.Output().Text())
	f.lastProgress = p.Progress().Get()
	f.mu.Unlock()

	unsubs := []func(){
		p.Output().Subscribe(f.onText),
		p.Status().Subscribe(f.onStatus),
		p.Progress().Subscribe(f.onProgress),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (f *follower) onText(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Cleared log.
	if len(text) < f.printed {
		f.printed = 0
	}
	fmt.Fprint(f.w, text[f.printed:])
	f.printed = len(text)
}

func (f *follower) onStatus(state core.RunState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.w, "-- status: %s\n", state.Label())
}

func (f *follower) onProgress(pct int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pct == f.lastProgress {
		return
	}
	f.lastProgress = pct
	fmt.Fprintf(f.w, "-- progress: %d%%\n", pct)
}

func (f *follower) note(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.w, "-- "+format+"\n", args...)
}
