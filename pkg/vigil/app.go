package vigil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/facemesh"
	"github.com/teslashibe/go-vigil/pkg/headpose"
	"github.com/teslashibe/go-vigil/pkg/ingest"
	"github.com/teslashibe/go-vigil/pkg/journal"
	"github.com/teslashibe/go-vigil/pkg/monitor"
	"github.com/teslashibe/go-vigil/pkg/pipeline"
	"github.com/teslashibe/go-vigil/pkg/replay"
	"github.com/teslashibe/go-vigil/pkg/vision"
	"github.com/teslashibe/go-vigil/pkg/web"
)

const (
	shutdownTimeout = 5 * time.Second
	publishInterval = 250 * time.Millisecond
)

// App is the vigil service orchestrator.
// It manages all components and their lifecycle.
type App struct {
	config Config
	base   *slog.Logger // handed to components, which add their own tag
	logger *slog.Logger

	// Estimation
	monitor   *monitor.Monitor
	processor *pipeline.Processor

	// Local capture, nil with NoCamera
	camera    *vision.Camera
	finder    *vision.FaceFinder
	detector  facemesh.Detector
	runner    *pipeline.Runner
	detection *detection

	// Persistence
	journal   *journal.Journal
	recorder  *journal.Recorder
	recording *os.File
	writer    *replay.Writer

	// Remote sensors and dashboard
	ingest    *ingest.Hub
	webServer *web.Server
}

// New creates the application with the given configuration.
func New(cfg Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := log.Or(logger)
	return &App{
		config: cfg,
		base:   base,
		logger: base.With("component", "vigil"),
	}, nil
}

// Init initializes all components.
// Call this after New() and before Run().
func (a *App) Init() error {
	mc, err := a.config.MonitorConfig()
	if err != nil {
		return err
	}
	a.monitor, err = monitor.New(mc, monitor.WithLogger(a.base))
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}

	// A processor is needed for ingest landmark messages even without a
	// local camera; its detector is only used by the runner.
	a.detector = facemesh.New(a.config.FaceMeshURL, a.base)
	if a.config.FaceModel != "" && !a.config.NoCamera {
		ffCfg := vision.DefaultFaceFinderConfig()
		ffCfg.ModelPath = a.config.FaceModel
		a.finder, err = vision.NewFaceFinder(ffCfg)
		if err != nil {
			return err
		}
		a.detector = facemesh.Gated(a.detector, a.finder.HasFace)
	}
	a.processor = pipeline.NewProcessor(a.detector, a.monitor, headpose.DefaultConfig(), a.base)

	if !a.config.NoCamera {
		if err := a.initCamera(); err != nil {
			return fmt.Errorf("camera: %w", err)
		}
	}

	if a.config.DBPath != "" {
		a.journal, err = journal.Open(a.config.DBPath, a.base)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		if a.detection != nil {
			a.detection.journal = a.journal
		}
	}

	if a.config.Record != "" {
		a.recording, err = os.OpenFile(a.config.Record, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("recording: %w", err)
		}
		a.writer = replay.NewWriter(a.recording)
	}

	if a.config.Ingest {
		sink := a.ingestSink()
		a.ingest = ingest.NewHub(sink, sink, nil, a.base)
	}

	deps := web.Deps{
		Monitor:    a.monitor,
		Calibrator: a.processor,
		Ingest:     a.ingest,
		Logger:     a.base,
	}
	if a.detection != nil {
		deps.Detector = a.detection
	}
	if a.journal != nil {
		deps.History = a.journal
	}
	a.webServer = web.NewServer(a.config.Addr, deps)

	a.logger.Info("initialized",
		"camera", !a.config.NoCamera,
		"facemesh", a.config.FaceMeshURL,
		"journal", a.config.DBPath,
		"ingest", a.config.Ingest,
		"preset", a.config.Preset)
	return nil
}

func (a *App) initCamera() error {
	camCfg, err := a.config.CameraConfig()
	if err != nil {
		return err
	}
	a.camera, err = vision.OpenCamera(camCfg)
	if err != nil {
		return err
	}
	a.detection = newDetection(a.monitor, a.logger)
	a.runner = pipeline.NewRunner(a.camera, a.processor,
		pipeline.WithTargetFPS(a.config.TargetFPS),
		pipeline.WithFrameHook(a.onFrame),
		pipeline.WithStartHook(a.detection.onStart),
		pipeline.WithLogger(a.base))
	a.detection.runner = a.runner
	return nil
}

// onFrame publishes each processed frame. Annotation is skipped when
// nobody is watching the camera stream.
func (a *App) onFrame(jpeg []byte, res pipeline.FrameResult) {
	a.webServer.PublishSnapshot(res.Snapshot)
	a.record(res.Snapshot)

	if a.webServer.CameraSubscribers() == 0 {
		return
	}
	annotated, err := vision.Annotate(jpeg, vision.OverlayFor(res.Snapshot, res.Eyes), a.camera.Config().Quality)
	if err != nil {
		a.logger.Debug("annotate failed", "error", err)
		return
	}
	a.webServer.PublishFrame(annotated)
}

func (a *App) record(snap monitor.Snapshot) {
	if a.writer == nil {
		return
	}
	if err := a.writer.Write(snap); err != nil {
		a.logger.Warn("recording write failed", "error", err)
	}
}

// Run starts the dashboard and background tasks.
// Blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.journal != nil {
		a.recorder = a.journal.Attach(ctx, a.monitor)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.webServer.Start(ctx)
	}()

	if a.config.AutoStart && a.detection != nil {
		if err := a.detection.Start(ctx); err != nil {
			return fmt.Errorf("start detection: %w", err)
		}
	}
	if a.ingest != nil {
		go a.publishRemote(ctx)
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// ingestSink records every sample a remote sensor feeds the monitor.
type ingestSink struct {
	observer ingest.Observer
	applier  ingest.Applier
	record   func(monitor.Snapshot)
}

func (a *App) ingestSink() *ingestSink {
	return &ingestSink{observer: a.monitor, applier: a.processor, record: a.record}
}

func (s *ingestSink) Observe(sample monitor.Sample) monitor.Snapshot {
	snap := s.observer.Observe(sample)
	s.record(snap)
	return snap
}

func (s *ingestSink) Apply(res *facemesh.Result, now time.Time) pipeline.FrameResult {
	fr := s.applier.Apply(res, now)
	s.record(fr.Snapshot)
	return fr
}

// publishRemote pushes snapshots produced by ingest sources to the
// dashboard while local detection is idle. Recording happens per sample
// in ingestSink.
func (a *App) publishRemote(ctx context.Context) {
	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if a.detection != nil && a.detection.Running() {
			continue
		}
		snap, ok := a.monitor.Snapshot()
		if !ok || !snap.At.After(last) {
			continue
		}
		last = snap.At
		a.webServer.PublishSnapshot(snap)
	}
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown() {
	if a.detection != nil && a.detection.Running() {
		if _, err := a.detection.Stop(); err != nil && !errors.Is(err, pipeline.ErrNotRunning) {
			a.logger.Warn("stop detection", "error", err)
		}
	}
	if a.webServer != nil {
		if err := a.webServer.Shutdown(shutdownTimeout); err != nil {
			a.logger.Warn("dashboard shutdown", "error", err)
		}
	}
	if a.recorder != nil {
		select {
		case <-a.recorder.Done():
		case <-time.After(shutdownTimeout):
			a.logger.Warn("journal recorder did not drain")
		}
	}
	if a.journal != nil {
		a.journal.Close()
	}
	if a.camera != nil {
		a.camera.Close()
	}
	if a.finder != nil {
		a.finder.Close()
	}
	if c, ok := a.detector.(io.Closer); ok {
		c.Close()
	}
	if a.recording != nil {
		a.recording.Close()
	}
	a.logger.Info("stopped")
}

// Monitor exposes the attention monitor.
func (a *App) Monitor() *monitor.Monitor {
	return a.monitor
}

// Server exposes the dashboard server.
func (a *App) Server() *web.Server {
	return a.webServer
}
