package core

import "errors"

var (
	// ErrRunnerClosed is returned when posting to a stopped runner or pool.
	ErrRunnerClosed = errors.New("task runner is closed")

	// ErrRunInProgress is returned by Begin while another run is active.
	ErrRunInProgress = errors.New("a run is already in progress")

	// ErrNoActiveRun is returned by Cancel when the controller is idle.
	ErrNoActiveRun = errors.New("no active run")

	// ErrNotCancellable is returned by Cancel on controllers whose pattern
	// runs to completion.
	ErrNotCancellable = errors.New("controller does not support cancellation")

	// ErrControllerClosed is returned by operations on a closed controller.
	ErrControllerClosed = errors.New("controller is closed")

	// ErrCancelled is the error a unit returns when it observed cancellation.
	ErrCancelled = errors.New("cancelled")

	// ErrUnitPanicked wraps a panic recovered from a task unit.
	ErrUnitPanicked = errors.New("task unit panicked")

	// ErrUnitStalled is the error of a unit step that returned without ending
	// the unit or scheduling its next step.
	ErrUnitStalled = errors.New("task unit step neither returned nor continued")

	// ErrRunPanicked wraps a panic recovered from controller code on the owner runner.
	ErrRunPanicked = errors.New("run panicked")
)
