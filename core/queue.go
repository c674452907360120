package core

import (
	"sync"
)

const (
	defaultQueueCap = 16
	compactMinCap   = 64 // Never shrink below this
)

// TaskQueue is the ready queue a TaskScheduler hands to its workers.
type TaskQueue interface {
	Push(t Task)
	Pop() (Task, bool)
	Len() int
	IsEmpty() bool
	// Drain drops every queued task and reports how many there were.
	Drain() int
}

// ring is a mutex-guarded circular buffer. It doubles when full and halves
// once it is less than a quarter used.
type ring[T any] struct {
	mu   sync.Mutex
	buf  []T
	head int
	n    int
}

func (r *ring[T]) push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.n == len(r.buf) {
		r.resize(max(2*len(r.buf), defaultQueueCap))
	}
	r.buf[(r.head+r.n)%len(r.buf)] = v
	r.n++
}

func (r *ring[T]) pop() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.n == 0 {
		return zero, false
	}

	v := r.buf[r.head]
	// Unit closures hold run contexts; drop the reference
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.n--

	if len(r.buf) >= compactMinCap && r.n*4 < len(r.buf) {
		r.resize(len(r.buf) / 2)
	}
	return v, true
}

func (r *ring[T]) resize(size int) {
	buf := make([]T, size)
	for i := range r.n {
		buf[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	r.buf = buf
	r.head = 0
}

func (r *ring[T]) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

func (r *ring[T]) capacity() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

func (r *ring[T]) drain() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.n
	r.buf = make([]T, defaultQueueCap)
	r.head = 0
	r.n = 0
	return n
}

// FIFOTaskQueue hands out pool tasks in submission order.
type FIFOTaskQueue struct {
	ring[Task]
}

func NewFIFOTaskQueue() *FIFOTaskQueue {
	return &FIFOTaskQueue{ring: ring[Task]{buf: make([]Task, defaultQueueCap)}}
}

func (q *FIFOTaskQueue) Push(t Task)       { q.push(t) }
func (q *FIFOTaskQueue) Pop() (Task, bool) { return q.pop() }
func (q *FIFOTaskQueue) Len() int          { return q.size() }
func (q *FIFOTaskQueue) IsEmpty() bool     { return q.size() == 0 }
func (q *FIFOTaskQueue) Drain() int        { return q.drain() }
