// Package drowsiness classifies a subject's attention state from a stream of
// smoothed eye aspect ratios and head directions.
//
// The Estimator keeps a time-bounded history of forward-facing eye
// closures, weights recent samples more heavily, and combines the
// resulting closure fraction with sustained head-direction timing to
// emit one Level per sample. Time always comes from the caller, so the
// estimator can be driven by a live clock or by a recording.
package drowsiness

import (
	"image/color"
	"time"

	"github.com/teslashibe/go-vigil/pkg/headpose"
)

// Status is the externally visible classification.
type Status struct {
	Level   Level      `json:"level"`
	Color   color.RGBA `json:"-"`
	Perclos float64    `json:"perclos"`
}

// Stats are counters describing the estimator's history.
type Stats struct {
	Samples          uint64             `json:"samples"`           // UpdateBlink calls
	HistoryLen       int                `json:"history_len"`       // retained closure samples
	HistorySpan      time.Duration      `json:"history_span"`      // age of the oldest retained sample
	HistoryResets    uint64             `json:"history_resets"`    // away-period discards
	ClockRegressions uint64             `json:"clock_regressions"` // clamped out-of-order timestamps
	Direction        headpose.Direction `json:"direction"`
	Sustained        time.Duration      `json:"sustained"`
	Away             bool               `json:"away"`
}

// Estimator is the attention state machine. Call UpdateBlink and then
// UpdateState once per sample, with non-decreasing timestamps. Not safe
// for concurrent use; see pkg/monitor for a synchronised host.
type Estimator struct {
	config  Config
	history *closureHistory

	// Direction tracking
	lastDirection  headpose.Direction
	directionStart time.Time
	directionSet   bool
	awayStart      time.Time
	away           bool

	// Clock
	now    time.Time
	hasNow bool

	level Level

	samples          uint64
	historyResets    uint64
	clockRegressions uint64
}

// New creates an estimator in the NotDrowsy state.
func New(cfg Config) *Estimator {
	capacity := int(cfg.Window.Seconds()*cfg.AvgFPS) + 1
	return &Estimator{
		config:        cfg,
		history:       newClosureHistory(capacity),
		lastDirection: headpose.Forward,
		level:         NotDrowsy,
	}
}

// Config returns the estimator configuration.
func (e *Estimator) Config() Config {
	return e.config
}

// observe clamps now so time never runs backwards.
func (e *Estimator) observe(now time.Time) time.Time {
	if e.hasNow && now.Before(e.now) {
		e.clockRegressions++
		return e.now
	}
	e.now = now
	e.hasNow = true
	return now
}

// UpdateBlink records the eye state for one sample. While the subject
// faces forward the sample is appended to the closure history; a
// non-forward excursion longer than AwayPeriod discards the history.
func (e *Estimator) UpdateBlink(smoothedEAR float64, direction headpose.Direction, now time.Time) {
	now = e.observe(now)
	e.samples++
	closed := smoothedEAR < e.config.EARThreshold

	if direction == headpose.Forward {
		e.away = false
		e.history.PushBack(ClosureSample{At: now, Closed: closed})
		e.history.PruneBefore(now, e.config.Window)
		return
	}

	if !e.away {
		e.away = true
		e.awayStart = now
	}
	if now.Sub(e.awayStart) > e.config.AwayPeriod && e.history.Len() > 0 {
		e.history.Clear()
		e.historyResets++
	}
}

// Perclos returns the recency-weighted fraction of closed samples in the
// history, measured against the latest timestamp seen. It is 0 when the
// history is empty.
func (e *Estimator) Perclos() float64 {
	if e.history.Len() == 0 {
		return 0
	}

	var closed, total float64
	e.history.Each(func(s ClosureSample) {
		w := e.config.OlderWeight
		if e.now.Sub(s.At) <= e.config.RecentWindow {
			w = e.config.RecentWeight
		}
		total += w
		if s.Closed {
			closed += w
		}
	})
	if total <= 0 {
		return 0
	}
	return closed / total
}

// UpdateState classifies the current sample and returns the new level.
//
// Rules, first match wins:
//  1. Up/Down held longer than VerticalTimeout: Critical.
//  2. Left/Right held longer than LateralTimeout: Distraction.
//  3. Forward: NotDrowsy until enough evidence has accumulated, then
//     Critical/Medium/NotDrowsy by closure fraction.
//  4. Anything else: NotDrowsy.
func (e *Estimator) UpdateState(direction headpose.Direction, now time.Time) Level {
	now = e.observe(now)

	if !e.directionSet || direction != e.lastDirection {
		e.directionStart = now
		e.directionSet = true
	}
	e.lastDirection = direction
	sustained := now.Sub(e.directionStart)

	switch {
	case direction.IsVertical() && sustained > e.config.VerticalTimeout:
		e.level = Critical
	case direction.IsLateral() && sustained > e.config.LateralTimeout:
		e.level = Distraction
	case direction == headpose.Forward:
		e.level = e.classifyClosure()
	default:
		e.level = NotDrowsy
	}
	return e.level
}

func (e *Estimator) classifyClosure() Level {
	if !e.hasEvidence() {
		return NotDrowsy
	}
	perclos := e.Perclos()
	switch {
	case perclos > e.config.CriticalRatio:
		return Critical
	case perclos > e.config.MediumRatio:
		return Medium
	default:
		return NotDrowsy
	}
}

func (e *Estimator) hasEvidence() bool {
	if e.history.Len() == 0 {
		return false
	}
	if e.config.Evidence == EvidenceDuration {
		return e.now.Sub(e.history.Front().At) >= e.config.MinEvidence
	}
	return e.history.Len() >= e.config.MinSamples()
}

// Update runs UpdateBlink followed by UpdateState for one sample.
func (e *Estimator) Update(smoothedEAR float64, direction headpose.Direction, now time.Time) Status {
	e.UpdateBlink(smoothedEAR, direction, now)
	e.UpdateState(direction, now)
	return e.Status()
}

// Status returns the current classification. It has no side effects.
func (e *Estimator) Status() Status {
	return Status{
		Level:   e.level,
		Color:   e.level.Color(),
		Perclos: e.Perclos(),
	}
}

// Level returns the current level.
func (e *Estimator) Level() Level {
	return e.level
}

// HistoryLen returns the number of retained closure samples.
func (e *Estimator) HistoryLen() int {
	return e.history.Len()
}

// History returns a copy of the retained closure samples, oldest first.
func (e *Estimator) History() []ClosureSample {
	out := make([]ClosureSample, 0, e.history.Len())
	e.history.Each(func(s ClosureSample) { out = append(out, s) })
	return out
}

// Stats returns a snapshot of the estimator's counters.
func (e *Estimator) Stats() Stats {
	st := Stats{
		Samples:          e.samples,
		HistoryLen:       e.history.Len(),
		HistoryResets:    e.historyResets,
		ClockRegressions: e.clockRegressions,
		Direction:        e.lastDirection,
		Away:             e.away,
	}
	if e.history.Len() > 0 {
		st.HistorySpan = e.now.Sub(e.history.Front().At)
	}
	if e.directionSet {
		st.Sustained = e.now.Sub(e.directionStart)
	}
	return st
}
