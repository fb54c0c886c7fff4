package pipeline

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when the loop is active.
	ErrAlreadyRunning = errors.New("pipeline: detection already running")

	// ErrNotRunning is returned by Stop when the loop is idle.
	ErrNotRunning = errors.New("pipeline: detection not running")
)
