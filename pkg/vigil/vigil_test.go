package vigil

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/facemesh"
	"github.com/teslashibe/go-vigil/pkg/headpose"
	"github.com/teslashibe/go-vigil/pkg/journal"
	"github.com/teslashibe/go-vigil/pkg/monitor"
	"github.com/teslashibe/go-vigil/pkg/pipeline"
	"github.com/teslashibe/go-vigil/pkg/replay"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"no addr", func(c *Config) { c.Addr = "" }, "Addr"},
		{"nothing to feed", func(c *Config) { c.NoCamera, c.Ingest = true, false }, "NoCamera"},
		{"no facemesh", func(c *Config) { c.FaceMeshURL = "" }, "FaceMeshURL"},
		{"camera preset", func(c *Config) { c.CameraPreset = "4k" }, "CameraPreset"},
		{"negative fps", func(c *Config) { c.TargetFPS = -1 }, "TargetFPS"},
		{"preset", func(c *Config) { c.Preset = "paranoid" }, "Preset"},
		{"evidence", func(c *Config) { c.Evidence = "vibes" }, "Evidence"},
		{"smoothing", func(c *Config) { c.SmoothWindow = 0 }, "Estimator"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(&cfg)
			err := cfg.Validate()
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestConfig_NoCameraSkipsCameraChecks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NoCamera = true
	cfg.FaceMeshURL = ""
	cfg.CameraPreset = "bogus"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestConfig_MonitorConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Preset = "sensitive"
	cfg.Evidence = "duration"
	cfg.EARThreshold = 0.3
	cfg.SmoothWindow = 3

	mc, err := cfg.MonitorConfig()
	if err != nil {
		t.Fatal(err)
	}
	want, _ := drowsiness.Preset("sensitive")
	if mc.Estimator.CriticalRatio != want.CriticalRatio {
		t.Errorf("CriticalRatio = %v, want %v", mc.Estimator.CriticalRatio, want.CriticalRatio)
	}
	if mc.Estimator.Evidence != drowsiness.EvidenceDuration {
		t.Errorf("Evidence = %v, want duration", mc.Estimator.Evidence)
	}
	if mc.Estimator.EARThreshold != 0.3 {
		t.Errorf("EARThreshold = %v, want 0.3", mc.Estimator.EARThreshold)
	}
	if mc.SmoothWindow != 3 {
		t.Errorf("SmoothWindow = %d, want 3", mc.SmoothWindow)
	}
}

func TestConfig_CameraConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CameraPreset = "low"
	cfg.CameraDevice = "/dev/video2"

	cam, err := cfg.CameraConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cam.Device != "/dev/video2" || cam.Width != 320 {
		t.Errorf("CameraConfig() = %+v, want low preset on /dev/video2", cam)
	}
}

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("VIGIL_ADDR", ":9999")
	t.Setenv("VIGIL_PRESET", "relaxed")
	t.Setenv("VIGIL_EAR_THRESHOLD", "0.21")
	t.Setenv("VIGIL_AUTOSTART", "true")
	t.Setenv("VIGIL_DB", "")

	cfg := DefaultConfig()
	cfg.LoadEnvConfig()

	if cfg.Addr != ":9999" {
		t.Errorf("Addr = %q, want :9999", cfg.Addr)
	}
	if cfg.Preset != "relaxed" {
		t.Errorf("Preset = %q, want relaxed", cfg.Preset)
	}
	if cfg.EARThreshold != 0.21 {
		t.Errorf("EARThreshold = %v, want 0.21", cfg.EARThreshold)
	}
	if !cfg.AutoStart {
		t.Error("AutoStart = false, want true")
	}
	if cfg.DBPath != DefaultConfig().DBPath {
		t.Errorf("DBPath = %q, want default", cfg.DBPath)
	}
}

type frames struct{}

func (frames) CaptureJPEG() ([]byte, error) {
	time.Sleep(time.Millisecond)
	return []byte("jpeg"), nil
}

// newTestDetection wires a detection over a face-less detector the way
// App.initCamera does.
func newTestDetection(t *testing.T) (*detection, *monitor.Monitor, *journal.Journal) {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "vigil.db"), log.Discard())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { j.Close() })

	mon, err := monitor.New(monitor.DefaultConfig(), monitor.WithLogger(log.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	noFace := facemesh.Func(func(context.Context, []byte) (*facemesh.Result, error) {
		return &facemesh.Result{}, nil
	})
	proc := pipeline.NewProcessor(noFace, mon, headpose.DefaultConfig(), log.Discard())
	d := newDetection(mon, log.Discard())
	d.journal = j
	d.runner = pipeline.NewRunner(frames{}, proc,
		pipeline.WithTargetFPS(500),
		pipeline.WithStartHook(d.onStart),
		pipeline.WithLogger(log.Discard()))
	return d, mon, j
}

func TestDetection_BracketsJournalSession(t *testing.T) {
	d, mon, j := newTestDetection(t)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if !d.Running() {
		t.Fatal("Running() = false after Start")
	}
	if err := d.Start(context.Background()); !errors.Is(err, pipeline.ErrAlreadyRunning) {
		t.Errorf("second Start() = %v, want ErrAlreadyRunning", err)
	}
	session := mon.Session()

	time.Sleep(20 * time.Millisecond)
	if _, err := d.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
	if _, err := d.Stop(); !errors.Is(err, pipeline.ErrNotRunning) {
		t.Errorf("second Stop() = %v, want ErrNotRunning", err)
	}

	sessions, err := j.Sessions(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].ID != session {
		t.Errorf("session = %q, want %q", sessions[0].ID, session)
	}
	if sessions[0].EndedAt == nil {
		t.Error("session was not closed")
	}
}

func TestDetection_ConfigChangeRollsSession(t *testing.T) {
	d, mon, j := newTestDetection(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	first := mon.Session()
	time.Sleep(10 * time.Millisecond)

	relaxed := monitor.Config{Estimator: drowsiness.RelaxedConfig(), SmoothWindow: 3}
	if err := mon.SetConfig(relaxed); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	second := mon.Session()
	if second == first {
		t.Fatal("SetConfig kept the session")
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := d.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}

	// A reset while idle is not a detection run.
	mon.Reset()

	sessions, err := j.Sessions(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	byID := map[string]journal.Session{}
	for _, s := range sessions {
		byID[s.ID] = s
	}
	for _, id := range []string{first, second} {
		s, ok := byID[id]
		if !ok {
			t.Errorf("session %q not journaled", id)
			continue
		}
		if s.EndedAt == nil {
			t.Errorf("session %q was not closed", id)
		}
		if len(s.Config) == 0 {
			t.Errorf("session %q has no config", id)
		}
	}
	if s := byID[first]; s.EndedAt != nil && byID[second].StartedAt.Before(*s.EndedAt) {
		t.Errorf("second session started %v, before first ended %v", byID[second].StartedAt, *s.EndedAt)
	}
}

func TestApp_InitWithoutCamera(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NoCamera = true
	cfg.DBPath = filepath.Join(t.TempDir(), "vigil.db")
	cfg.Record = filepath.Join(t.TempDir(), "live.jsonl")

	app, err := New(cfg, log.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if err := app.Init(); err != nil {
		t.Fatalf("Init() = %v", err)
	}
	defer app.Shutdown()

	resp, err := app.Server().App().Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("GET /healthz = %d, want 200", resp.StatusCode)
	}

	// No local camera: starting detection is unavailable.
	resp, err = app.Server().App().Test(httptest.NewRequest("POST", "/api/start", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 503 {
		t.Errorf("POST /api/start = %d, want 503", resp.StatusCode)
	}

	resp, err = app.Server().App().Test(httptest.NewRequest("GET", "/api/events", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("GET /api/events = %d, want 200", resp.StatusCode)
	}
}

func TestApp_RecordsEveryIngestSample(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NoCamera = true
	cfg.Ingest = true
	cfg.DBPath = ""
	cfg.Record = filepath.Join(t.TempDir(), "remote.jsonl")

	app, err := New(cfg, log.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if err := app.Init(); err != nil {
		t.Fatalf("Init() = %v", err)
	}

	// One landmark message without a face, then 20 s of closed eyes at
	// 20 Hz, far faster than the dashboard publishes.
	sink := app.ingestSink()
	start := time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC)
	sink.Apply(&facemesh.Result{}, start)
	var live monitor.Snapshot
	for i := 1; i <= 400; i++ {
		live = sink.Observe(monitor.Sample{
			At:        start.Add(time.Duration(i) * 50 * time.Millisecond),
			EAR:       0.10,
			Direction: headpose.Forward,
		})
	}
	app.Shutdown()

	f, err := os.Open(cfg.Record)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	sum, err := replay.Run(context.Background(), f, replay.Options{Logger: log.Discard()})
	if err != nil {
		t.Fatalf("replay.Run() = %v", err)
	}
	if sum.Samples != 401 {
		t.Errorf("Samples: got %v, want %v", sum.Samples, 401)
	}
	if sum.NoFace != 1 {
		t.Errorf("NoFace: got %v, want %v", sum.NoFace, 1)
	}
	if live.Level != drowsiness.Critical {
		t.Fatalf("live level: got %v, want %v", live.Level, drowsiness.Critical)
	}
	if sum.FinalLevel != live.Level {
		t.Errorf("replayed level: got %v, want %v", sum.FinalLevel, live.Level)
	}
}
