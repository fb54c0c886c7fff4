package drowsiness

import (
	"fmt"
	"image/color"
	"strings"
)

// Level is the attention classification emitted per sample.
type Level uint8

// Levels. NotDrowsy is the zero value and the initial state.
const (
	NotDrowsy Level = iota
	Medium
	Critical
	Distraction
)

var levelNames = [...]string{
	NotDrowsy:   "NOT DROWSY",
	Medium:      "MEDIUM",
	Critical:    "CRITICAL",
	Distraction: "DISTRACTION",
}

// Overlay colours per level.
var levelColors = [...]color.RGBA{
	NotDrowsy:   {R: 0, G: 255, B: 0, A: 255},
	Medium:      {R: 255, G: 255, B: 0, A: 255},
	Critical:    {R: 255, G: 0, B: 0, A: 255},
	Distraction: {R: 255, G: 165, B: 0, A: 255},
}

// String returns the display label, e.g. "NOT DROWSY".
func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("Level(%d)", uint8(l))
}

// Color returns the overlay colour for l.
func (l Level) Color() color.RGBA {
	if int(l) < len(levelColors) {
		return levelColors[l]
	}
	return color.RGBA{R: 128, G: 128, B: 128, A: 255}
}

// Severity ranks levels for alerting: 0 is safe, 2 is the most urgent.
// Distraction sits between Medium and Critical.
func (l Level) Severity() int {
	switch l {
	case Critical:
		return 2
	case Medium, Distraction:
		return 1
	default:
		return 0
	}
}

// ParseLevel accepts the display label or its snake/lower-case forms.
func ParseLevel(s string) (Level, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "_", " ")
	for i, name := range levelNames {
		if name == key {
			return Level(i), nil
		}
	}
	return NotDrowsy, fmt.Errorf("drowsiness: unknown level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
