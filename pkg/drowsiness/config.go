package drowsiness

import (
	"fmt"
	"sort"
	"time"
)

// EvidenceMode selects how the minimum-evidence guard is measured.
type EvidenceMode uint8

const (
	// EvidenceSamples requires MinEvidence × AvgFPS closure samples.
	EvidenceSamples EvidenceMode = iota
	// EvidenceDuration requires the oldest retained sample to be at
	// least MinEvidence old, independent of the frame rate.
	EvidenceDuration
)

// String returns "samples" or "duration".
func (m EvidenceMode) String() string {
	if m == EvidenceDuration {
		return "duration"
	}
	return "samples"
}

// ParseEvidenceMode parses "samples" or "duration".
func ParseEvidenceMode(s string) (EvidenceMode, error) {
	switch s {
	case "samples", "":
		return EvidenceSamples, nil
	case "duration":
		return EvidenceDuration, nil
	}
	return EvidenceSamples, fmt.Errorf("drowsiness: unknown evidence mode %q", s)
}

// Config holds all tunable parameters of the estimator.
type Config struct {
	// Eye closure
	EARThreshold float64 // smoothed EAR below this counts as closed

	// Closure history
	Window       time.Duration // samples older than this are pruned
	RecentWindow time.Duration // samples this young get RecentWeight
	RecentWeight float64
	OlderWeight  float64
	AwayPeriod   time.Duration // non-forward grace before the history is dropped

	// Minimum evidence
	Evidence    EvidenceMode
	MinEvidence time.Duration // forward data required before closure rules apply
	AvgFPS      float64       // assumed sample rate for EvidenceSamples

	// Classifier thresholds
	VerticalTimeout time.Duration // sustained Up/Down before Critical
	LateralTimeout  time.Duration // sustained Left/Right before Distraction
	CriticalRatio   float64       // closure fraction above this is Critical
	MediumRatio     float64       // closure fraction above this is Medium
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{
		EARThreshold: 0.26,

		Window:       20 * time.Second,
		RecentWindow: 10 * time.Second,
		RecentWeight: 2,
		OlderWeight:  1,
		AwayPeriod:   1 * time.Second,

		Evidence:    EvidenceSamples,
		MinEvidence: 12 * time.Second,
		AvgFPS:      20,

		VerticalTimeout: 2500 * time.Millisecond,
		LateralTimeout:  3 * time.Second,
		CriticalRatio:   0.40,
		MediumRatio:     0.25,
	}
}

// SensitiveConfig alarms earlier, for long night shifts.
func SensitiveConfig() Config {
	cfg := DefaultConfig()
	cfg.MinEvidence = 8 * time.Second
	cfg.VerticalTimeout = 2 * time.Second
	cfg.LateralTimeout = 2500 * time.Millisecond
	cfg.CriticalRatio = 0.35
	cfg.MediumRatio = 0.20
	return cfg
}

// RelaxedConfig tolerates more closure and longer glances, for subjects
// with naturally narrow eyes or busy mirror checks.
func RelaxedConfig() Config {
	cfg := DefaultConfig()
	cfg.EARThreshold = 0.22
	cfg.VerticalTimeout = 3500 * time.Millisecond
	cfg.LateralTimeout = 4 * time.Second
	cfg.CriticalRatio = 0.50
	cfg.MediumRatio = 0.30
	return cfg
}

var presets = map[string]func() Config{
	"default":   DefaultConfig,
	"sensitive": SensitiveConfig,
	"relaxed":   RelaxedConfig,
}

// Preset returns a named configuration.
func Preset(name string) (Config, bool) {
	fn, ok := presets[name]
	if !ok {
		return Config{}, false
	}
	return fn(), true
}

// PresetNames lists the available presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MinSamples returns the sample count required under EvidenceSamples.
func (c Config) MinSamples() int {
	return int(c.MinEvidence.Seconds() * c.AvgFPS)
}

// Validate returns a list of problems, empty when the config is usable.
func (c Config) Validate() []string {
	var errs []string

	if c.EARThreshold <= 0 {
		errs = append(errs, "ear_threshold must be > 0")
	}
	if c.Window <= 0 {
		errs = append(errs, "window must be > 0")
	}
	if c.RecentWindow < 0 || c.RecentWindow > c.Window {
		errs = append(errs, "recent_window must be within [0, window]")
	}
	if c.RecentWeight <= 0 || c.OlderWeight <= 0 {
		errs = append(errs, "weights must be > 0")
	}
	if c.AwayPeriod < 0 {
		errs = append(errs, "away_period must be >= 0")
	}
	if c.MinEvidence < 0 {
		errs = append(errs, "min_evidence must be >= 0")
	}
	switch c.Evidence {
	case EvidenceSamples:
		if c.AvgFPS <= 0 {
			errs = append(errs, "avg_fps must be > 0")
		}
	case EvidenceDuration:
		if c.MinEvidence > c.Window {
			errs = append(errs, "min_evidence must not exceed window in duration mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown evidence mode %d", c.Evidence))
	}
	if c.VerticalTimeout <= 0 || c.LateralTimeout <= 0 {
		errs = append(errs, "direction timeouts must be > 0")
	}
	if c.MediumRatio <= 0 || c.MediumRatio >= c.CriticalRatio || c.CriticalRatio > 1 {
		errs = append(errs, "ratios must satisfy 0 < medium_ratio < critical_ratio <= 1")
	}

	return errs
}
