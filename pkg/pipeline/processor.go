// Package pipeline turns camera frames into monitor samples: face-mesh
// detection, eye aspect ratio, head direction, then the drowsiness
// monitor. Runner drives a Processor from a frame source in the
// background.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/eye"
	"github.com/teslashibe/go-vigil/pkg/facemesh"
	"github.com/teslashibe/go-vigil/pkg/headpose"
	"github.com/teslashibe/go-vigil/pkg/monitor"
)

// FrameResult is the outcome of processing one frame.
type FrameResult struct {
	monitor.Snapshot
	Pose *headpose.Angles `json:"pose,omitempty"`

	// Eyes holds the pixel-space eye contours when a face was measured.
	Eyes *eye.Measurement `json:"-"`
}

// Processor is safe for concurrent use; frames are processed one at a time.
type Processor struct {
	detector facemesh.Detector
	monitor  *monitor.Monitor
	logger   *slog.Logger

	mu         sync.Mutex
	classifier *headpose.Classifier
	calibrate  bool
}

// NewProcessor wires a detector to a monitor.
func NewProcessor(det facemesh.Detector, mon *monitor.Monitor, cfg headpose.Config, logger *slog.Logger) *Processor {
	return &Processor{
		detector:   det,
		monitor:    mon,
		classifier: headpose.NewClassifier(cfg),
		logger:     log.Or(logger).With("component", "pipeline"),
	}
}

// Calibrate makes the next frame with a head pose the neutral position.
func (p *Processor) Calibrate() {
	p.mu.Lock()
	p.calibrate = true
	p.mu.Unlock()
}

// Offset returns the current head-pose calibration offset.
func (p *Processor) Offset() headpose.Angles {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.classifier.Offset()
}

// Monitor returns the monitor fed by this processor.
func (p *Processor) Monitor() *monitor.Monitor {
	return p.monitor
}

// Process runs one frame through the pipeline. The monitor is always fed
// a sample, even when detection fails; the detection error is returned
// alongside the result.
func (p *Processor) Process(ctx context.Context, jpeg []byte, now time.Time) (FrameResult, error) {
	res, err := p.detector.Detect(ctx, jpeg)
	if err != nil {
		fr := p.Apply(nil, now)
		return fr, fmt.Errorf("pipeline: detect: %w", err)
	}
	return p.Apply(res, now), nil
}

// Apply feeds a detector result to the monitor. A nil or faceless result
// is recorded as an Unknown-direction sample.
func (p *Processor) Apply(res *facemesh.Result, now time.Time) FrameResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	if res == nil || !res.Found {
		return FrameResult{Snapshot: p.monitor.Observe(monitor.Sample{At: now, NoFace: true})}
	}

	m, err := eye.Measure(res.Landmarks, res.Width, res.Height)
	if err != nil {
		p.logger.Debug("eye measurement failed", "error", err)
		return FrameResult{Snapshot: p.monitor.Observe(monitor.Sample{At: now, NoFace: true})}
	}

	dir := headpose.Unknown
	if res.Pose != nil {
		if p.calibrate {
			p.classifier.Calibrate(*res.Pose)
			p.calibrate = false
			p.logger.Info("head pose calibrated", "pitch", res.Pose.Pitch, "yaw", res.Pose.Yaw)
		}
		dir = p.classifier.Classify(*res.Pose)
	}

	snap := p.monitor.Observe(monitor.Sample{At: now, EAR: m.Mean, Direction: dir})
	return FrameResult{Snapshot: snap, Pose: res.Pose, Eyes: &m}
}
