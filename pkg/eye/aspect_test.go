package eye

import (
	"errors"
	"math"
	"testing"
)

func TestAspectRatio(t *testing.T) {
	tests := []struct {
		name string
		pts  [6]Point
		want float64
	}{
		{
			name: "open eye",
			// width 30, lids 10 apart on both verticals
			pts:  [6]Point{{0, 0}, {10, -5}, {20, -5}, {30, 0}, {20, 5}, {10, 5}},
			want: 20.0 / 60.0,
		},
		{
			name: "closed eye",
			pts:  [6]Point{{0, 0}, {10, 0}, {20, 0}, {30, 0}, {20, 0}, {10, 0}},
			want: 0,
		},
		{
			name: "half closed",
			pts:  [6]Point{{0, 0}, {10, -2}, {20, -3}, {40, 0}, {20, 3}, {10, 2}},
			want: (4.0 + 6.0) / 80.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AspectRatio(tt.pts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAspectRatio_Degenerate(t *testing.T) {
	_, err := AspectRatio([6]Point{{5, 5}, {5, 4}, {5, 4}, {5, 5}, {5, 6}, {5, 6}})
	if !errors.Is(err, ErrDegenerateEye) {
		t.Errorf("got %v, want ErrDegenerateEye", err)
	}
}

// meshWithEyes builds a 468-point mesh with both eye contours laid out as
// an open eye of the given vertical half-opening (normalised units).
func meshWithEyes(opening float64) []Landmark {
	mesh := make([]Landmark, 468)
	place := func(idx [6]int, cx float64) {
		mesh[idx[0]] = Landmark{X: cx - 0.03, Y: 0.5}
		mesh[idx[1]] = Landmark{X: cx - 0.01, Y: 0.5 - opening}
		mesh[idx[2]] = Landmark{X: cx + 0.01, Y: 0.5 - opening}
		mesh[idx[3]] = Landmark{X: cx + 0.03, Y: 0.5}
		mesh[idx[4]] = Landmark{X: cx + 0.01, Y: 0.5 + opening}
		mesh[idx[5]] = Landmark{X: cx - 0.01, Y: 0.5 + opening}
	}
	place(RightEye, 0.6)
	place(LeftEye, 0.4)
	return mesh
}

func TestMeasure(t *testing.T) {
	// 1000x1000 frame: eye width 60px, vertical gap 20px on each side.
	m, err := Measure(meshWithEyes(0.01), 1000, 1000)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	want := (20.0 + 20.0) / (2 * 60.0)
	if math.Abs(m.Mean-want) > 0.02 {
		t.Errorf("Mean = %v, want ~%v", m.Mean, want)
	}
	if math.Abs(m.Left-m.Right) > 0.02 {
		t.Errorf("symmetric eyes gave left %v right %v", m.Left, m.Right)
	}

	closed, err := Measure(meshWithEyes(0.001), 1000, 1000)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if closed.Mean >= m.Mean {
		t.Errorf("closing eyes should lower EAR: open %v closed %v", m.Mean, closed.Mean)
	}
}

func TestMeasure_ShortMesh(t *testing.T) {
	_, err := Measure(make([]Landmark, 100), 640, 480)
	if !errors.Is(err, ErrMissingLandmarks) {
		t.Errorf("got %v, want ErrMissingLandmarks", err)
	}
}
