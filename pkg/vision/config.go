// Package vision captures webcam frames with OpenCV and draws the
// attention overlay onto them for the dashboard.
package vision

import "fmt"

// CameraConfig holds capture settings.
type CameraConfig struct {
	Device    string `json:"device"`    // index ("0") or path/URL
	Width     int    `json:"width"`     // requested frame width, 0 = driver default
	Height    int    `json:"height"`    // requested frame height, 0 = driver default
	Framerate int    `json:"framerate"` // requested capture rate, 0 = driver default
	Quality   int    `json:"quality"`   // JPEG quality 1-100
	Mirror    bool   `json:"mirror"`    // flip horizontally so the preview reads like a mirror
}

// Preset names.
const (
	PresetDefault = "default"
	PresetLow     = "low"
	Preset720p    = "720p"
)

// DefaultConfig returns 640x480 mirrored capture, which is enough for the
// face mesh at laptop-webcam distances.
func DefaultConfig() CameraConfig {
	return CameraConfig{
		Device:    "0",
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   80,
		Mirror:    true,
	}
}

// LowConfig trades landmark precision for throughput on slow machines.
func LowConfig() CameraConfig {
	cfg := DefaultConfig()
	cfg.Width = 320
	cfg.Height = 240
	cfg.Quality = 70
	return cfg
}

// HD720Config is for subjects sitting further from the camera.
func HD720Config() CameraConfig {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	return cfg
}

// GetPreset returns the named preset, or nil if unknown.
func GetPreset(name string) *CameraConfig {
	var cfg CameraConfig
	switch name {
	case PresetDefault:
		cfg = DefaultConfig()
	case PresetLow:
		cfg = LowConfig()
	case Preset720p:
		cfg = HD720Config()
	default:
		return nil
	}
	return &cfg
}

// Validate returns a list of problems, empty when the config is usable.
func (c CameraConfig) Validate() []string {
	var errs []string
	if c.Device == "" {
		errs = append(errs, "device is required")
	}
	if c.Width < 0 || c.Height < 0 {
		errs = append(errs, fmt.Sprintf("resolution %dx%d must not be negative", c.Width, c.Height))
	}
	if (c.Width == 0) != (c.Height == 0) {
		errs = append(errs, "width and height must be set together")
	}
	if c.Framerate < 0 || c.Framerate > 120 {
		errs = append(errs, "framerate must be 0-120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, "quality must be 1-100")
	}
	return errs
}
