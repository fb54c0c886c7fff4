package web

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/monitor"
)

// ConfigDTO is the wire form of monitor.Config. Durations are seconds.
type ConfigDTO struct {
	EARThreshold        float64 `json:"ear_threshold"`
	SmoothWindow        int     `json:"smooth_window"`
	WindowSeconds       float64 `json:"window_seconds"`
	RecentWindowSeconds float64 `json:"recent_window_seconds"`
	RecentWeight        float64 `json:"recent_weight"`
	OlderWeight         float64 `json:"older_weight"`
	AwayPeriodSeconds   float64 `json:"away_period_seconds"`
	Evidence            string  `json:"evidence"`
	MinEvidenceSeconds  float64 `json:"min_evidence_seconds"`
	AvgFPS              float64 `json:"avg_fps"`
	VerticalTimeout     float64 `json:"vertical_timeout_seconds"`
	LateralTimeout      float64 `json:"lateral_timeout_seconds"`
	CriticalRatio       float64 `json:"critical_ratio"`
	MediumRatio         float64 `json:"medium_ratio"`
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ConfigToDTO converts a monitor config for the API.
func ConfigToDTO(cfg monitor.Config) ConfigDTO {
	e := cfg.Estimator
	return ConfigDTO{
		EARThreshold:        e.EARThreshold,
		SmoothWindow:        cfg.SmoothWindow,
		WindowSeconds:       e.Window.Seconds(),
		RecentWindowSeconds: e.RecentWindow.Seconds(),
		RecentWeight:        e.RecentWeight,
		OlderWeight:         e.OlderWeight,
		AwayPeriodSeconds:   e.AwayPeriod.Seconds(),
		Evidence:            e.Evidence.String(),
		MinEvidenceSeconds:  e.MinEvidence.Seconds(),
		AvgFPS:              e.AvgFPS,
		VerticalTimeout:     e.VerticalTimeout.Seconds(),
		LateralTimeout:      e.LateralTimeout.Seconds(),
		CriticalRatio:       e.CriticalRatio,
		MediumRatio:         e.MediumRatio,
	}
}

// ToConfig converts back. It fails only on an unknown evidence mode;
// range checks are left to monitor.Config.Validate.
func (d ConfigDTO) ToConfig() (monitor.Config, error) {
	mode, err := drowsiness.ParseEvidenceMode(d.Evidence)
	if err != nil {
		return monitor.Config{}, err
	}
	return monitor.Config{
		SmoothWindow: d.SmoothWindow,
		Estimator: drowsiness.Config{
			EARThreshold:    d.EARThreshold,
			Window:          seconds(d.WindowSeconds),
			RecentWindow:    seconds(d.RecentWindowSeconds),
			RecentWeight:    d.RecentWeight,
			OlderWeight:     d.OlderWeight,
			AwayPeriod:      seconds(d.AwayPeriodSeconds),
			Evidence:        mode,
			MinEvidence:     seconds(d.MinEvidenceSeconds),
			AvgFPS:          d.AvgFPS,
			VerticalTimeout: seconds(d.VerticalTimeout),
			LateralTimeout:  seconds(d.LateralTimeout),
			CriticalRatio:   d.CriticalRatio,
			MediumRatio:     d.MediumRatio,
		},
	}, nil
}

// ApplyPatch applies a partial JSON update to current. A "preset" key
// replaces the estimator settings first; any other keys then override
// individual fields.
func ApplyPatch(current monitor.Config, body []byte) (monitor.Config, error) {
	var head struct {
		Preset string `json:"preset"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return current, fmt.Errorf("invalid JSON: %w", err)
	}
	if head.Preset != "" {
		est, ok := drowsiness.Preset(head.Preset)
		if !ok {
			return current, fmt.Errorf("unknown preset %q (have %v)", head.Preset, drowsiness.PresetNames())
		}
		current.Estimator = est
	}

	dto := ConfigToDTO(current)
	if err := json.Unmarshal(body, &dto); err != nil {
		return current, fmt.Errorf("invalid config: %w", err)
	}
	return dto.ToConfig()
}
