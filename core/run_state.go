package core

import "fmt"

// RunState is the lifecycle phase of a controller.
type RunState int

const (
	StateIdle RunState = iota
	StateRunning
	StateFinished
	StateCancelled
	StateFailed
)

var runStateNames = map[RunState]string{
	StateIdle:      "idle",
	StateRunning:   "running",
	StateFinished:  "finished",
	StateCancelled: "cancelled",
	StateFailed:    "failed",
}

// allowedTransitions lists every legal move. Terminal states go back to Idle
// only through ClearOutput.
var allowedTransitions = map[RunState][]RunState{
	StateIdle:      {StateRunning},
	StateRunning:   {StateFinished, StateCancelled, StateFailed},
	StateFinished:  {StateRunning, StateIdle},
	StateCancelled: {StateRunning, StateIdle},
	StateFailed:    {StateRunning, StateIdle},
}

func (s RunState) String() string {
	if name, ok := runStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("RunState(%d)", int(s))
}

// Label is the user-facing status text.
func (s RunState) Label() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateFinished:
		return "Finished"
	case StateCancelled:
		return "Cancelled"
	case StateFailed:
		return "Error"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether s ends a run.
func (s RunState) IsTerminal() bool {
	return s == StateFinished || s == StateCancelled || s == StateFailed
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to RunState) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error describing an illegal move.
func ValidateTransition(from, to RunState) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid state transition %s -> %s", from, to)
	}
	return nil
}
