package core

import (
	"time"

	"github.com/google/uuid"
)

// RunRecord captures one completed controller run.
type RunRecord struct {
	RunID      uuid.UUID
	Controller string
	State      RunState
	Err        error
	Units      int
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
}

// RunnerStats represents runtime observability state for a single-thread runner.
type RunnerStats struct {
	Name     string
	Type     string
	Pending  int
	Running  int
	Rejected int64
	Closed   bool
}

// PoolStats represents runtime observability state for a thread pool.
type PoolStats struct {
	ID       string
	Workers  int
	Queued   int
	Active   int
	Rejected int64
	Running  bool
}

// ControllerStats represents runtime observability state for a controller.
type ControllerStats struct {
	Name         string
	State        RunState
	Running      bool
	ActiveUnits  int
	WaitingUnits int // parked on the clock, holding no worker
	Started      int64
	Rejected     int64
	Closed       bool
	LastRunID    uuid.UUID
	LastRunAt    time.Time
	Owner        RunnerStats
}
