package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/headpose"
	"github.com/teslashibe/go-vigil/pkg/journal"
	"github.com/teslashibe/go-vigil/pkg/monitor"
	"github.com/teslashibe/go-vigil/pkg/pipeline"
)

var t0 = time.Date(2026, 2, 2, 23, 0, 0, 0, time.UTC)

type fakeDetector struct {
	running bool
	last    *pipeline.FrameResult
}

func (f *fakeDetector) Start(context.Context) error {
	if f.running {
		return pipeline.ErrAlreadyRunning
	}
	f.running = true
	return nil
}

func (f *fakeDetector) Stop() (*pipeline.FrameResult, error) {
	if !f.running {
		return nil, pipeline.ErrNotRunning
	}
	f.running = false
	return f.last, nil
}

func (f *fakeDetector) Running() bool { return f.running }

type fakeHistory struct {
	events []journal.Event
	err    error
	limit  int
}

func (f *fakeHistory) RecentTransitions(_ context.Context, limit int) ([]journal.Event, error) {
	f.limit = limit
	return f.events, f.err
}

func (f *fakeHistory) Sessions(context.Context, int) ([]journal.Session, error) {
	return []journal.Session{{ID: "s1", StartedAt: t0}}, f.err
}

type fakeCalibrator struct{ calls int }

func (f *fakeCalibrator) Calibrate() { f.calls++ }

func newTestServer(t *testing.T, deps Deps) (*Server, *monitor.Monitor) {
	t.Helper()
	if deps.Monitor == nil {
		mon, err := monitor.New(monitor.DefaultConfig(), monitor.WithLogger(log.Discard()))
		if err != nil {
			t.Fatalf("monitor.New: %v", err)
		}
		deps.Monitor = mon
	}
	deps.Logger = log.Discard()
	return NewServer(":0", deps), deps.Monitor
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 && data[0] == '{' {
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
	}
	return resp.StatusCode, out
}

func TestStatus_NotStarted(t *testing.T) {
	s, _ := newTestServer(t, Deps{})
	code, body := do(t, s.App(), "GET", "/api/status", "")
	if code != 200 {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["drowsiness_level"] != NotStarted {
		t.Errorf("level = %v, want %q", body["drowsiness_level"], NotStarted)
	}
	if body["head_direction"] != "Unknown" || body["ear"] != 0.0 {
		t.Errorf("body = %v, want Unknown direction and ear 0", body)
	}
}

func TestStatus_AfterSamples(t *testing.T) {
	s, mon := newTestServer(t, Deps{})
	mon.Observe(monitor.Sample{At: t0, EAR: 0.3, Direction: headpose.Forward})

	code, body := do(t, s.App(), "GET", "/api/status", "")
	if code != 200 {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["drowsiness_level"] != "NOT DROWSY" {
		t.Errorf("level = %v, want NOT DROWSY", body["drowsiness_level"])
	}
	if body["head_direction"] != "Looking Forward" {
		t.Errorf("direction = %v, want Looking Forward", body["head_direction"])
	}
	if body["running"] != false {
		t.Errorf("running = %v, want false", body["running"])
	}
}

func TestStartStop(t *testing.T) {
	det := &fakeDetector{last: &pipeline.FrameResult{Snapshot: monitor.Snapshot{Level: drowsiness.Medium}}}
	s, _ := newTestServer(t, Deps{Detector: det})
	app := s.App()

	if code, _ := do(t, app, "POST", "/api/stop", ""); code != fiber.StatusConflict {
		t.Errorf("stop before start = %d, want 409", code)
	}
	if code, body := do(t, app, "POST", "/api/start", ""); code != 200 || body["session"] == "" {
		t.Errorf("start = %d %v, want 200 with session", code, body)
	}
	if code, _ := do(t, app, "POST", "/api/start", ""); code != fiber.StatusConflict {
		t.Errorf("second start = %d, want 409", code)
	}

	code, body := do(t, app, "POST", "/api/stop", "")
	if code != 200 {
		t.Fatalf("stop = %d, want 200", code)
	}
	last, ok := body["last_result"].(map[string]any)
	if !ok || last["drowsiness_level"] != "MEDIUM" {
		t.Errorf("last_result = %v, want MEDIUM", body["last_result"])
	}
}

func TestStart_NoDetector(t *testing.T) {
	s, _ := newTestServer(t, Deps{})
	if code, _ := do(t, s.App(), "POST", "/api/start", ""); code != fiber.StatusServiceUnavailable {
		t.Errorf("start = %d, want 503", code)
	}
}

func TestCalibrate(t *testing.T) {
	cal := &fakeCalibrator{}
	s, _ := newTestServer(t, Deps{Calibrator: cal})
	if code, _ := do(t, s.App(), "POST", "/api/calibrate", ""); code != fiber.StatusAccepted {
		t.Errorf("calibrate = %d, want 202", code)
	}
	if cal.calls != 1 {
		t.Errorf("calibrate calls = %d, want 1", cal.calls)
	}
}

func TestConfig_GetAndPut(t *testing.T) {
	s, mon := newTestServer(t, Deps{})
	app := s.App()

	code, body := do(t, app, "GET", "/api/config", "")
	if code != 200 || body["ear_threshold"] != 0.26 || body["evidence"] != "samples" {
		t.Fatalf("get config = %d %v", code, body)
	}

	code, body = do(t, app, "PUT", "/api/config", `{"preset":"relaxed","lateral_timeout_seconds":5}`)
	if code != 200 {
		t.Fatalf("put config = %d %v", code, body)
	}
	cfg := mon.Config()
	if cfg.Estimator.EARThreshold != 0.22 {
		t.Errorf("ear threshold = %v, want relaxed 0.22", cfg.Estimator.EARThreshold)
	}
	if cfg.Estimator.LateralTimeout != 5*time.Second {
		t.Errorf("lateral timeout = %v, want 5s override", cfg.Estimator.LateralTimeout)
	}
	if cfg.SmoothWindow != 5 {
		t.Errorf("smooth window = %d, want unchanged 5", cfg.SmoothWindow)
	}
}

func TestConfig_PutRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"unknown preset", `{"preset":"paranoid"}`},
		{"unknown evidence", `{"evidence":"vibes"}`},
		{"invalid ratio order", `{"medium_ratio":0.9}`},
		{"zero window", `{"window_seconds":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mon := newTestServer(t, Deps{})
			before := mon.Config()
			code, body := do(t, s.App(), "PUT", "/api/config", tt.body)
			if code != fiber.StatusBadRequest {
				t.Errorf("status = %d, want 400 (%v)", code, body)
			}
			if mon.Config() != before {
				t.Error("rejected config must not be applied")
			}
		})
	}
}

func TestPresets(t *testing.T) {
	s, _ := newTestServer(t, Deps{})
	_, body := do(t, s.App(), "GET", "/api/config/presets", "")
	presets, _ := body["presets"].([]any)
	if len(presets) != 3 {
		t.Errorf("presets = %v, want 3", presets)
	}
}

func TestEvents(t *testing.T) {
	hist := &fakeHistory{events: []journal.Event{
		{ID: 1, SessionID: "s1", At: t0, From: drowsiness.NotDrowsy, To: drowsiness.Critical, Direction: headpose.Up},
	}}
	s, _ := newTestServer(t, Deps{History: hist})
	app := s.App()

	code, body := do(t, app, "GET", "/api/events?limit=5", "")
	if code != 200 || body["count"] != 1.0 {
		t.Fatalf("events = %d %v", code, body)
	}
	if hist.limit != 5 {
		t.Errorf("limit = %d, want 5", hist.limit)
	}
	ev := body["events"].([]any)[0].(map[string]any)
	if ev["to"] != "CRITICAL" || ev["direction"] != "Looking Up" {
		t.Errorf("event = %v", ev)
	}

	if code, _ := do(t, app, "GET", "/api/events?limit=abc", ""); code != fiber.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", code)
	}

	hist.err = errors.New("disk full")
	if code, _ := do(t, app, "GET", "/api/events", ""); code != fiber.StatusInternalServerError {
		t.Errorf("store error = %d, want 500", code)
	}
}

func TestEvents_NoJournal(t *testing.T) {
	s, _ := newTestServer(t, Deps{})
	if code, _ := do(t, s.App(), "GET", "/api/events", ""); code != fiber.StatusServiceUnavailable {
		t.Errorf("events = %d, want 503", code)
	}
	if code, _ := do(t, s.App(), "GET", "/api/sessions", ""); code != fiber.StatusServiceUnavailable {
		t.Errorf("sessions = %d, want 503", code)
	}
}

func TestHealthAndIndex(t *testing.T) {
	s, _ := newTestServer(t, Deps{})
	app := s.App()

	code, body := do(t, app, "GET", "/healthz", "")
	if code != 200 || body["status"] != "ok" {
		t.Errorf("healthz = %d %v", code, body)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	html, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || !strings.Contains(string(html), "/ws/status") {
		t.Errorf("index = %d, want dashboard page", resp.StatusCode)
	}

	if code, _ := do(t, app, "GET", "/ws/status", ""); code != fiber.StatusUpgradeRequired {
		t.Errorf("plain GET on websocket = %d, want 426", code)
	}
}

func TestStaticRoot(t *testing.T) {
	root, err := staticRoot()
	if err != nil {
		t.Fatalf("staticRoot: %v", err)
	}
	f, err := root.Open("index.html")
	if err != nil {
		t.Fatalf("open index.html: %v", err)
	}
	defer f.Close()
	if st, err := f.Stat(); err != nil || st.Size() == 0 {
		t.Errorf("index.html stat = %v, %v; want non-empty file", st, err)
	}
}

func TestApplyPatch_EmptyObjectKeepsConfig(t *testing.T) {
	cur := monitor.DefaultConfig()
	got, err := ApplyPatch(cur, []byte(`{}`))
	if err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	if got != cur {
		t.Errorf("got %+v, want unchanged", got)
	}
}
