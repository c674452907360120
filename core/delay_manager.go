package core

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DelayedTask represents a task scheduled for the future
type DelayedTask struct {
	RunAt  time.Time
	Task   Task
	Target TaskRunner

	dm    *DelayManager
	timer clockwork.Timer
}

// Cancel withdraws the task. It reports whether the task was still pending;
// false means it has already been handed to its target.
func (t *DelayedTask) Cancel() bool {
	if !t.dm.remove(t) {
		return false
	}
	t.timer.Stop()
	return true
}

// DelayManager posts tasks to their target runner once a delay has elapsed
// on its Clock. A pending task holds one clock timer and nothing else: no
// goroutine and no pool worker is parked while it waits.
type DelayManager struct {
	clock Clock

	mu      sync.Mutex
	pending map[*DelayedTask]struct{}
	stopped bool
}

func NewDelayManager(clock Clock) *DelayManager {
	if clock == nil {
		clock = NewRealClock()
	}
	return &DelayManager{
		clock:   clock,
		pending: make(map[*DelayedTask]struct{}),
	}
}

// AddDelayedTask schedules task on target after delay. It returns
// ErrRunnerClosed once the manager has been stopped.
func (dm *DelayManager) AddDelayedTask(task Task, delay time.Duration, target TaskRunner) (*DelayedTask, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.stopped {
		return nil, ErrRunnerClosed
	}

	item := &DelayedTask{
		RunAt:  dm.clock.Now().Add(delay),
		Task:   task,
		Target: target,
		dm:     dm,
	}
	dm.pending[item] = struct{}{}
	// The callback runs on its own goroutine and takes dm.mu, so it cannot
	// observe item before timer is set.
	item.timer = dm.clock.AfterFunc(delay, func() { dm.fire(item) })
	return item, nil
}

func (dm *DelayManager) fire(item *DelayedTask) {
	if !dm.remove(item) {
		return
	}
	// Post outside the lock; a refusing target handles its own error
	_ = item.Target.PostTask(item.Task)
}

func (dm *DelayManager) remove(item *DelayedTask) bool {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if _, ok := dm.pending[item]; !ok {
		return false
	}
	delete(dm.pending, item)
	return true
}

// Stop cancels every pending task and refuses new ones.
func (dm *DelayManager) Stop() {
	dm.mu.Lock()
	dm.stopped = true
	pending := dm.pending
	dm.pending = make(map[*DelayedTask]struct{})
	dm.mu.Unlock()

	// Release TaskRunner references held by the timers
	for item := range pending {
		item.timer.Stop()
	}
}

func (dm *DelayManager) TaskCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.pending)
}
