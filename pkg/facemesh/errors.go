package facemesh

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyFrame is returned when Detect is called without image data.
	ErrEmptyFrame = errors.New("facemesh: empty frame")

	// ErrClosed is returned when using a closed StreamClient.
	ErrClosed = errors.New("facemesh: client closed")

	// ErrBadResult is returned when a detector reply cannot be used.
	ErrBadResult = errors.New("facemesh: malformed result")
)

// APIError is a non-success reply from the detector sidecar.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("facemesh: detector error %d: %s", e.StatusCode, e.Message)
}

// IsServerError reports a 5xx status.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsTemporary reports whether retrying the same frame later might succeed.
func (e *APIError) IsTemporary() bool {
	return e.StatusCode == 429 || e.StatusCode == 503
}
