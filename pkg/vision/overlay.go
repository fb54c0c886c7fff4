package vision

import (
	"fmt"
	"image"
	"image/color"

	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/eye"
	"github.com/teslashibe/go-vigil/pkg/monitor"
)

// Overlay is what gets drawn on a frame.
type Overlay struct {
	Level     drowsiness.Level
	Direction string
	EAR       float64
	Perclos   float64
	FPS       float64
	Face      bool

	// Eye contours in pixels, nil when no face was measured.
	Eyes *eye.Measurement
}

// OverlayFor builds the overlay for a monitor snapshot.
func OverlayFor(snap monitor.Snapshot, eyes *eye.Measurement) Overlay {
	return Overlay{
		Level:     snap.Level,
		Direction: snap.Direction.String(),
		EAR:       snap.EAR,
		Perclos:   snap.Perclos,
		FPS:       snap.FPS,
		Face:      snap.FaceFound,
		Eyes:      eyes,
	}
}

// Color is the status colour for the level.
func (o Overlay) Color() color.RGBA {
	return o.Level.Color()
}

// Lines returns the text rows, top to bottom.
func (o Overlay) Lines() []string {
	head := "Head: " + o.Direction
	if !o.Face {
		head = "Head: no face"
	}
	return []string{
		"Status: " + o.Level.String(),
		head,
		fmt.Sprintf("EAR: %.2f", o.EAR),
		fmt.Sprintf("PERCLOS: %.1f%%", o.Perclos*100),
		fmt.Sprintf("FPS: %.1f", o.FPS),
	}
}

// Layout constants for the status box.
const (
	boxMargin    = 10
	lineHeight   = 26
	boxWidth     = 260
	textInsetX   = 10
	textBaseline = 22
)

// statusBox returns the status box rectangle for n text lines.
func statusBox(n int) image.Rectangle {
	return image.Rect(boxMargin, boxMargin, boxMargin+boxWidth, boxMargin+n*lineHeight+boxMargin/2)
}

// lineOrigin returns the text origin of line i.
func lineOrigin(i int) image.Point {
	return image.Pt(boxMargin+textInsetX, boxMargin+textBaseline+i*lineHeight)
}

func toPoint(p eye.Point) image.Point {
	return image.Pt(int(p.X), int(p.Y))
}
