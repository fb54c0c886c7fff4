// Package vigil wires the camera, face-mesh sidecar, attention monitor,
// journal and dashboard into the live monitoring service.
package vigil

import (
	"fmt"
	"strings"

	"github.com/teslashibe/go-vigil/internal/config"
	"github.com/teslashibe/go-vigil/pkg/conditioner"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/monitor"
	"github.com/teslashibe/go-vigil/pkg/pipeline"
	"github.com/teslashibe/go-vigil/pkg/vision"
)

// Config holds all configuration for the vigil service.
// Flag parsing is done in cmd/vigil; this struct is data only.
type Config struct {
	// Dashboard listen address.
	Addr string

	// DBPath is the SQLite journal file. Empty disables the journal.
	DBPath string

	// FaceMeshURL is the landmark sidecar, http(s):// or ws(s)://.
	FaceMeshURL string

	// Camera.
	CameraDevice string
	CameraPreset string // "default", "low", "720p"
	NoCamera     bool   // run without local capture, samples come from ingest
	FaceModel    string // YuNet ONNX model gating sidecar calls; empty disables

	// Estimator.
	Preset       string  // drowsiness preset name
	Evidence     string  // "samples" or "duration"; empty keeps the preset's
	EARThreshold float64 // overrides the preset when > 0
	SmoothWindow int
	TargetFPS    float64

	// Features.
	AutoStart bool   // start detection without waiting for the dashboard
	Ingest    bool   // accept remote sensors on /ws/ingest
	Record    string // append live samples to this JSONL file

	LogLevel string
}

// DefaultConfig returns sensible defaults for the service.
func DefaultConfig() Config {
	return Config{
		Addr:         config.DefaultAddr,
		DBPath:       config.DefaultDBPath,
		FaceMeshURL:  config.DefaultFaceMeshURL,
		CameraDevice: config.DefaultCamera,
		CameraPreset: vision.PresetDefault,
		Preset:       "default",
		SmoothWindow: conditioner.DefaultWindow,
		TargetFPS:    pipeline.DefaultTargetFPS,
		Ingest:       true,
		LogLevel:     config.DefaultLogLevel,
	}
}

// LoadEnvConfig applies environment overrides. Call it before flag
// parsing so flags take precedence.
func (c *Config) LoadEnvConfig() {
	c.Addr = config.String(config.EnvAddr, c.Addr)
	c.DBPath = config.String(config.EnvDBPath, c.DBPath)
	c.FaceMeshURL = config.String(config.EnvFaceMeshURL, c.FaceMeshURL)
	c.CameraDevice = config.String(config.EnvCamera, c.CameraDevice)
	c.CameraPreset = config.String(config.EnvCameraPreset, c.CameraPreset)
	c.FaceModel = config.String(config.EnvFaceModel, c.FaceModel)
	c.Preset = config.String(config.EnvPreset, c.Preset)
	c.Evidence = config.String(config.EnvEvidence, c.Evidence)
	c.EARThreshold = config.Float(config.EnvEARThreshold, c.EARThreshold)
	c.TargetFPS = config.Float(config.EnvTargetFPS, c.TargetFPS)
	c.Record = config.String(config.EnvRecord, c.Record)
	c.AutoStart = config.Bool(config.EnvAutoStart, c.AutoStart)
	c.Ingest = config.Bool(config.EnvIngest, c.Ingest)
	c.LogLevel = config.String(config.EnvLogLevel, c.LogLevel)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return &ConfigError{Field: "Addr", Message: "listen address is required"}
	}
	if c.NoCamera && !c.Ingest {
		return &ConfigError{Field: "NoCamera", Message: "no camera and no ingest: nothing would feed the monitor"}
	}
	if !c.NoCamera {
		if c.FaceMeshURL == "" {
			return &ConfigError{Field: "FaceMeshURL", Message: "FACEMESH_URL is required when the camera is enabled"}
		}
		cam, err := c.CameraConfig()
		if err != nil {
			return err
		}
		if errs := cam.Validate(); len(errs) > 0 {
			return &ConfigError{Field: "Camera", Message: "camera: " + strings.Join(errs, "; ")}
		}
	}
	if c.TargetFPS < 0 {
		return &ConfigError{Field: "TargetFPS", Message: fmt.Sprintf("target fps %v must not be negative", c.TargetFPS)}
	}
	_, err := c.MonitorConfig()
	return err
}

// CameraConfig resolves the camera preset and device.
func (c *Config) CameraConfig() (vision.CameraConfig, error) {
	preset := vision.GetPreset(c.CameraPreset)
	if preset == nil {
		return vision.CameraConfig{}, &ConfigError{
			Field:   "CameraPreset",
			Message: fmt.Sprintf("unknown camera preset %q", c.CameraPreset),
		}
	}
	cam := *preset
	if c.CameraDevice != "" {
		cam.Device = c.CameraDevice
	}
	return cam, nil
}

// MonitorConfig builds the estimator configuration from the preset and
// overrides.
func (c *Config) MonitorConfig() (monitor.Config, error) {
	est, ok := drowsiness.Preset(c.Preset)
	if !ok {
		return monitor.Config{}, &ConfigError{
			Field:   "Preset",
			Message: fmt.Sprintf("unknown preset %q (have %s)", c.Preset, strings.Join(drowsiness.PresetNames(), ", ")),
		}
	}
	if c.Evidence != "" {
		mode, err := drowsiness.ParseEvidenceMode(c.Evidence)
		if err != nil {
			return monitor.Config{}, &ConfigError{Field: "Evidence", Message: err.Error()}
		}
		est.Evidence = mode
	}
	if c.EARThreshold > 0 {
		est.EARThreshold = c.EARThreshold
	}
	mc := monitor.Config{Estimator: est, SmoothWindow: c.SmoothWindow}
	if errs := mc.Validate(); len(errs) > 0 {
		return monitor.Config{}, &ConfigError{Field: "Estimator", Message: strings.Join(errs, "; ")}
	}
	return mc, nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
