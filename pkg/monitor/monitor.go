// Package monitor hosts a drowsiness estimator for concurrent callers.
//
// A Monitor owns the EAR smoother and the estimator behind a mutex so each
// sample's blink and state updates happen as one step, and publishes the
// result as an immutable Snapshot that readers load without locking.
package monitor

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/conditioner"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/headpose"
)

// Sample is one observation fed to the monitor.
type Sample struct {
	At        time.Time
	EAR       float64 // raw, unsmoothed
	Direction headpose.Direction
	NoFace    bool // no face detected; EAR is ignored and direction forced to Unknown
}

// Snapshot is the published state after a sample.
type Snapshot struct {
	Session     string             `json:"session"`
	At          time.Time          `json:"at"`
	Level       drowsiness.Level   `json:"drowsiness_level"`
	Severity    int                `json:"severity"`
	Color       string             `json:"color"`
	Perclos     float64            `json:"perclos"`
	Direction   headpose.Direction `json:"head_direction"`
	EAR         float64            `json:"ear"`
	SmoothedEAR float64            `json:"smoothed_ear"`
	FaceFound   bool               `json:"face_found"`
	Sustained   float64            `json:"sustained_seconds"`
	HistoryLen  int                `json:"history_len"`
	Resets      uint64             `json:"history_resets"`
	Samples     uint64             `json:"samples"`
	FPS         float64            `json:"fps"`
	FPSSummary  FPSSummary         `json:"fps_summary"`
}

// Transition describes a level change.
type Transition struct {
	Session   string             `json:"session"`
	At        time.Time          `json:"at"`
	From      drowsiness.Level   `json:"from"`
	To        drowsiness.Level   `json:"to"`
	Perclos   float64            `json:"perclos"`
	Direction headpose.Direction `json:"direction"`
}

// SessionChange reports a reset: the session that ended, the one that
// replaced it and the configuration it runs under.
type SessionChange struct {
	Previous string
	Session  string
	Config   Config
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the monitor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// Monitor is safe for concurrent use.
type Monitor struct {
	mu        sync.Mutex
	config    Config
	smoother  *conditioner.Smoother
	estimator *drowsiness.Estimator
	fps       FPSMeter
	session   string
	lastEAR   float64
	listeners []func(Transition)
	resets    []func(SessionChange)

	snapshot atomic.Pointer[Snapshot]
	logger   *slog.Logger
}

// New creates a monitor. Invalid configs are rejected with *ConfigError.
func New(cfg Config, opts ...Option) (*Monitor, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, &ConfigError{Problems: errs}
	}
	m := &Monitor{config: cfg}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = log.Or(m.logger).With("component", "monitor")
	m.resetLocked()
	return m, nil
}

func (m *Monitor) resetLocked() {
	m.smoother = conditioner.NewSmoother(m.config.SmoothWindow)
	m.estimator = drowsiness.New(m.config.Estimator)
	m.fps = FPSMeter{}
	m.lastEAR = 0
	m.session = uuid.NewString()
	m.snapshot.Store(nil)
}

// Observe feeds one sample and returns the resulting snapshot.
func (m *Monitor) Observe(s Sample) Snapshot {
	m.mu.Lock()

	ear := s.EAR
	dir := s.Direction
	var smoothed float64
	if s.NoFace {
		ear = m.lastEAR
		dir = headpose.Unknown
		smoothed = m.smoother.Value()
	} else {
		m.lastEAR = ear
		smoothed = m.smoother.Smooth(ear)
	}

	prev := m.estimator.Level()
	m.estimator.UpdateBlink(smoothed, dir, s.At)
	level := m.estimator.UpdateState(dir, s.At)
	status := m.estimator.Status()
	stats := m.estimator.Stats()
	rate := m.fps.Tick(s.At)

	snap := &Snapshot{
		Session:     m.session,
		At:          s.At,
		Level:       level,
		Severity:    level.Severity(),
		Color:       hexColor(status.Color.R, status.Color.G, status.Color.B),
		Perclos:     status.Perclos,
		Direction:   dir,
		EAR:         ear,
		SmoothedEAR: smoothed,
		FaceFound:   !s.NoFace,
		Sustained:   stats.Sustained.Seconds(),
		HistoryLen:  stats.HistoryLen,
		Resets:      stats.HistoryResets,
		Samples:     stats.Samples,
		FPS:         rate,
		FPSSummary:  m.fps.Summary(),
	}
	m.snapshot.Store(snap)

	var listeners []func(Transition)
	var tr Transition
	if level != prev {
		tr = Transition{
			Session:   m.session,
			At:        s.At,
			From:      prev,
			To:        level,
			Perclos:   status.Perclos,
			Direction: dir,
		}
		listeners = append(listeners, m.listeners...)
	}
	m.mu.Unlock()

	if len(listeners) > 0 {
		m.logger.Info("level changed",
			"from", tr.From.String(),
			"to", tr.To.String(),
			"perclos", tr.Perclos,
			"direction", tr.Direction.String())
		for _, fn := range listeners {
			fn(tr)
		}
	}
	return *snap
}

// Snapshot returns the latest published state. ok is false before the
// first sample of the current session.
func (m *Monitor) Snapshot() (snap Snapshot, ok bool) {
	p := m.snapshot.Load()
	if p == nil {
		return Snapshot{}, false
	}
	return *p, true
}

// OnTransition registers fn to be called after every level change.
// Callbacks run on the observing goroutine, outside the monitor lock.
func (m *Monitor) OnTransition(fn func(Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// OnReset registers fn to be called after Reset or SetConfig replaces
// the session. Callbacks run outside the monitor lock.
func (m *Monitor) OnReset(fn func(SessionChange)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, fn)
}

// Reset discards all state and starts a new session.
func (m *Monitor) Reset() string {
	m.mu.Lock()
	ch, fns := m.newSessionLocked()
	m.mu.Unlock()

	m.logger.Debug("session reset", "session", ch.Session)
	notify(fns, ch)
	return ch.Session
}

func (m *Monitor) newSessionLocked() (SessionChange, []func(SessionChange)) {
	prev := m.session
	m.resetLocked()
	ch := SessionChange{Previous: prev, Session: m.session, Config: m.config}
	return ch, slices.Clone(m.resets)
}

func notify(fns []func(SessionChange), ch SessionChange) {
	for _, fn := range fns {
		fn(ch)
	}
}

// SetConfig replaces the configuration and resets the session, since
// history collected under old thresholds is not comparable.
func (m *Monitor) SetConfig(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return &ConfigError{Problems: errs}
	}
	m.mu.Lock()
	m.config = cfg
	ch, fns := m.newSessionLocked()
	m.mu.Unlock()

	m.logger.Info("config updated", "session", ch.Session, "ear_threshold", cfg.Estimator.EARThreshold)
	notify(fns, ch)
	return nil
}

// Config returns the active configuration.
func (m *Monitor) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Session returns the current session ID.
func (m *Monitor) Session() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// History returns a copy of the retained closure samples.
func (m *Monitor) History() []drowsiness.ClosureSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.estimator.History()
}

func hexColor(r, g, b uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
