// Package facemesh talks to a face landmark detector running as a sidecar
// process. The sidecar accepts a JPEG frame and replies with the
// normalised face-mesh landmarks of the first face and, when it can
// solve for it, the head pose in degrees.
package facemesh

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-vigil/pkg/eye"
	"github.com/teslashibe/go-vigil/pkg/headpose"
)

// MeshSize is the landmark count of a full face mesh.
const MeshSize = 468

// Detector finds a face in a JPEG frame.
type Detector interface {
	Detect(ctx context.Context, jpeg []byte) (*Result, error)
}

// Result is one detector reply.
type Result struct {
	Found     bool             `json:"found"`
	Width     int              `json:"width"`
	Height    int              `json:"height"`
	Landmarks []eye.Landmark   `json:"landmarks,omitempty"`
	Pose      *headpose.Angles `json:"pose,omitempty"`
}

// errorBody is the sidecar's error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// decodeResult parses and sanity checks a reply.
func decodeResult(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResult, err)
	}
	if !r.Found {
		return &Result{Width: r.Width, Height: r.Height}, nil
	}
	if r.Width <= 0 || r.Height <= 0 {
		return nil, fmt.Errorf("%w: frame size %dx%d", ErrBadResult, r.Width, r.Height)
	}
	if len(r.Landmarks) == 0 {
		return nil, fmt.Errorf("%w: face found without landmarks", ErrBadResult)
	}
	return &r, nil
}

// Func adapts a function to the Detector interface.
type Func func(ctx context.Context, jpeg []byte) (*Result, error)

// Detect calls f.
func (f Func) Detect(ctx context.Context, jpeg []byte) (*Result, error) {
	return f(ctx, jpeg)
}

// New returns a StreamClient for ws:// and wss:// URLs and an HTTPClient
// otherwise.
func New(url string, logger *slog.Logger) Detector {
	if strings.HasPrefix(url, "ws://") || strings.HasPrefix(url, "wss://") {
		return NewStreamClient(url, logger)
	}
	return NewHTTPClient(url, WithHTTPLogger(logger))
}
