// Package headpose turns head rotation angles into a coarse gaze direction.
package headpose

import (
	"fmt"
	"strings"
)

// Direction is a coarse head direction label.
type Direction uint8

// The zero value is Unknown, so a missing detection is never mistaken
// for a forward-facing subject.
const (
	Unknown Direction = iota
	Forward
	Up
	Down
	Left
	Right
)

var directionNames = [...]string{
	Unknown: "Unknown",
	Forward: "Looking Forward",
	Up:      "Looking Up",
	Down:    "Looking Down",
	Left:    "Looking Left",
	Right:   "Looking Right",
}

// String returns the display label, e.g. "Looking Forward".
func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// IsVertical reports whether d is Up or Down.
func (d Direction) IsVertical() bool {
	return d == Up || d == Down
}

// IsLateral reports whether d is Left or Right.
func (d Direction) IsLateral() bool {
	return d == Left || d == Right
}

// ParseDirection accepts display labels ("Looking Left") as well as short
// names ("left", "FORWARD"). Unrecognised input yields Unknown and an error.
func ParseDirection(s string) (Direction, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.TrimPrefix(key, "looking ")
	switch key {
	case "forward", "center", "centre":
		return Forward, nil
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	case "unknown", "":
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("headpose: unknown direction %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
