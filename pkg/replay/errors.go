package replay

import (
	"errors"
	"fmt"
)

// ErrEmpty is returned when a recording holds no samples.
var ErrEmpty = errors.New("replay: recording has no samples")

// LineError reports a malformed line in a recording.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("replay: line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
