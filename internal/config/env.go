// Package config provides environment helpers for go-vigil commands.
package config

import (
	"os"
	"strconv"
	"time"
)

// Default process configuration.
const (
	DefaultAddr        = ":8080"
	DefaultDBPath      = "vigil.db"
	DefaultFaceMeshURL = "http://localhost:8000/landmarks"
	DefaultCamera      = "0"
	DefaultLogLevel    = "info"
)

// Environment variables read by the vigil service.
const (
	EnvAddr         = "VIGIL_ADDR"
	EnvDBPath       = "VIGIL_DB"
	EnvFaceMeshURL  = "FACEMESH_URL"
	EnvCamera       = "CAMERA_DEVICE"
	EnvCameraPreset = "CAMERA_PRESET"
	EnvFaceModel    = "VIGIL_FACE_MODEL"
	EnvPreset       = "VIGIL_PRESET"
	EnvEvidence     = "VIGIL_EVIDENCE"
	EnvEARThreshold = "VIGIL_EAR_THRESHOLD"
	EnvTargetFPS    = "VIGIL_TARGET_FPS"
	EnvRecord       = "VIGIL_RECORD"
	EnvAutoStart    = "VIGIL_AUTOSTART"
	EnvIngest       = "VIGIL_INGEST"
	EnvLogLevel     = "LOG_LEVEL"
)

// String returns the value of the env var key, or def when unset or empty.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Float returns the env var key parsed as a float64.
// Falls back to def if unset or unparsable.
func Float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// Duration returns the env var key parsed with time.ParseDuration.
// Falls back to def if unset or unparsable.
func Duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Int returns the env var key parsed as an int.
// Falls back to def if unset or unparsable.
func Int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Bool returns the env var key parsed with strconv.ParseBool.
// Falls back to def if unset or unparsable.
func Bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
