package vision

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// Face is a detected face box, normalised to 0-1 of the frame.
type Face struct {
	X, Y       float64 // top-left corner
	W, H       float64
	Confidence float64
}

// Center returns the centre of the box.
func (f Face) Center() (x, y float64) {
	return f.X + f.W/2, f.Y + f.H/2
}

// Area returns the normalised box area.
func (f Face) Area() float64 {
	return f.W * f.H
}

// SelectBest picks the face most likely to be the subject, scoring
// confidence at 0.7 and relative size at 0.3. Returns nil for no faces.
func SelectBest(faces []Face) *Face {
	if len(faces) == 0 {
		return nil
	}
	maxArea := 0.0
	for _, f := range faces {
		maxArea = max(maxArea, f.Area())
	}

	best, bestScore := 0, -1.0
	for i, f := range faces {
		score := f.Confidence * 0.7
		if maxArea > 0 {
			score += f.Area() / maxArea * 0.3
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return &faces[best]
}

// FaceFinderConfig configures the YuNet face finder.
type FaceFinderConfig struct {
	ModelPath        string  // ONNX model
	ConfidenceThresh float64 // minimum face score
	MinArea          float64 // smaller boxes are ignored, normalised
}

// DefaultFaceFinderConfig returns the standard YuNet settings.
func DefaultFaceFinderConfig() FaceFinderConfig {
	return FaceFinderConfig{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.6,
		MinArea:          0.01,
	}
}

// FaceFinder locates faces with OpenCV's YuNet model. It is a cheap
// local presence check run before the face-mesh sidecar.
type FaceFinder struct {
	config FaceFinderConfig

	mu       sync.Mutex
	detector gocv.FaceDetectorYN
	closed   bool
}

// NewFaceFinder loads the YuNet model.
func NewFaceFinder(cfg FaceFinderConfig) (*FaceFinder, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("vision: face model: %w", err)
	}
	det := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath, "",
		image.Pt(320, 320), // resized per frame
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS
		5000, // top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)
	return &FaceFinder{config: cfg, detector: det}, nil
}

// Find returns every face above the confidence and area thresholds.
func (f *FaceFinder) Find(jpeg []byte) ([]Face, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, errors.New("vision: face finder closed")
	}

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("vision: decode frame: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, ErrNoFrame
	}

	w, h := float64(img.Cols()), float64(img.Rows())
	f.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	out := gocv.NewMat()
	defer out.Close()
	f.detector.Detect(img, &out)

	// Rows: x, y, w, h, five landmark pairs, score.
	var faces []Face
	for r := 0; r < out.Rows(); r++ {
		face := Face{
			X:          float64(out.GetFloatAt(r, 0)) / w,
			Y:          float64(out.GetFloatAt(r, 1)) / h,
			W:          float64(out.GetFloatAt(r, 2)) / w,
			H:          float64(out.GetFloatAt(r, 3)) / h,
			Confidence: float64(out.GetFloatAt(r, 14)),
		}
		if face.Area() < f.config.MinArea {
			continue
		}
		faces = append(faces, face)
	}
	return faces, nil
}

// HasFace reports whether at least one face is visible.
func (f *FaceFinder) HasFace(jpeg []byte) (bool, error) {
	faces, err := f.Find(jpeg)
	if err != nil {
		return false, err
	}
	return len(faces) > 0, nil
}

// Close releases the model.
func (f *FaceFinder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.detector.Close()
		f.closed = true
	}
	return nil
}
