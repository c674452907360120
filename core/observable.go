package core

import (
	"slices"
	"sync"
)

// Cell holds one value and notifies subscribers on every Set.
//
// Notifications are synchronous: Set returns after every subscriber present
// at the time of the call has been invoked, in subscription order. Concurrent
// Sets are serialized so deliveries never interleave. Unchanged values still
// notify. A subscriber must not Set the cell it is subscribed to.
type Cell[T any] struct {
	notifyMu sync.Mutex

	mu     sync.RWMutex
	value  T
	subs   []*subscription[T]
	nextID uint64
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// NewCell creates a cell holding initial.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set stores v and notifies subscribers.
func (c *Cell[T]) Set(v T) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.store(v)
}

// Update replaces the value with fn(current) atomically with respect to
// other Set and Update calls, then notifies. It returns the new value.
func (c *Cell[T]) Update(fn func(T) T) T {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	v := fn(c.Get())
	c.store(v)
	return v
}

func (c *Cell[T]) store(v T) {
	c.mu.Lock()
	c.value = v
	subs := slices.Clone(c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Subscribe registers fn for future Sets. The current value is not replayed.
// The returned func removes the subscription; calling it again is a no-op.
func (c *Cell[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, &subscription[T]{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.subs = slices.DeleteFunc(c.subs, func(s *subscription[T]) bool {
				return s.id == id
			})
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (c *Cell[T]) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}
