// Package eye computes the eye aspect ratio (EAR) from face-mesh landmarks.
//
// EAR is the ratio of the two vertical eyelid distances to the horizontal
// eye width. It sits around 0.3 for an open eye and drops towards 0 as
// the lids close.
package eye

import (
	"errors"
	"math"
)

// ErrDegenerateEye is returned when an eye has zero width, which happens
// with bad landmarks or a face seen exactly edge-on.
var ErrDegenerateEye = errors.New("eye: degenerate eye contour")

// ErrMissingLandmarks is returned when the mesh is too small to contain
// the eye contours.
var ErrMissingLandmarks = errors.New("eye: missing eye landmarks")

// Face-mesh indices for the six-point eye contours, ordered outer corner,
// two upper lid points, inner corner, two lower lid points.
var (
	RightEye = [6]int{362, 385, 387, 263, 373, 380}
	LeftEye  = [6]int{33, 160, 158, 133, 153, 144}
)

// Point is a pixel position.
type Point struct {
	X, Y float64
}

// Landmark is a normalised face-mesh landmark (x, y in 0-1 of the image).
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// AspectRatio returns (|p1-p5| + |p2-p4|) / (2 |p0-p3|).
func AspectRatio(p [6]Point) (float64, error) {
	width := dist(p[0], p[3])
	if width == 0 {
		return 0, ErrDegenerateEye
	}
	return (dist(p[1], p[5]) + dist(p[2], p[4])) / (2 * width), nil
}

// Contour projects the landmarks at idx into pixel space. Coordinates are
// truncated to whole pixels, matching what a drawn overlay shows.
func Contour(landmarks []Landmark, idx [6]int, width, height int) ([6]Point, error) {
	var pts [6]Point
	for i, li := range idx {
		if li < 0 || li >= len(landmarks) {
			return pts, ErrMissingLandmarks
		}
		lm := landmarks[li]
		pts[i] = Point{
			X: float64(int(lm.X * float64(width))),
			Y: float64(int(lm.Y * float64(height))),
		}
	}
	return pts, nil
}

// Measurement is the per-frame EAR of both eyes.
type Measurement struct {
	Right  float64
	Left   float64
	Mean   float64
	RightP [6]Point
	LeftP  [6]Point
}

// Measure computes both eyes' EAR for a frame of the given pixel size.
func Measure(landmarks []Landmark, width, height int) (Measurement, error) {
	var m Measurement
	var err error

	if m.RightP, err = Contour(landmarks, RightEye, width, height); err != nil {
		return m, err
	}
	if m.LeftP, err = Contour(landmarks, LeftEye, width, height); err != nil {
		return m, err
	}
	if m.Right, err = AspectRatio(m.RightP); err != nil {
		return m, err
	}
	if m.Left, err = AspectRatio(m.LeftP); err != nil {
		return m, err
	}
	m.Mean = (m.Right + m.Left) / 2
	return m, nil
}
