// vigil - real-time drowsiness and attention monitor.
// Captures webcam frames, measures eye closure and head direction through
// a face-mesh sidecar, and serves live status on a web dashboard.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/vigil"
)

func main() {
	cfg := parseFlags()
	log.Init(cfg.LogLevel)

	app, err := vigil.New(cfg, log.L())
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	if err := app.Init(); err != nil {
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		cancel()
		app.Shutdown()
		os.Exit(1)
	}
}

// parseFlags applies environment overrides, then command line flags.
func parseFlags() vigil.Config {
	cfg := vigil.DefaultConfig()
	cfg.LoadEnvConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Dashboard listen address")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite journal path (empty disables the journal)")
	flag.StringVar(&cfg.FaceMeshURL, "facemesh", cfg.FaceMeshURL, "Face-mesh sidecar URL (http:// or ws://)")
	flag.StringVar(&cfg.CameraDevice, "camera", cfg.CameraDevice, "Camera index or stream path")
	flag.StringVar(&cfg.CameraPreset, "camera-preset", cfg.CameraPreset, "Camera preset: default, low, 720p")
	flag.StringVar(&cfg.FaceModel, "face-model", cfg.FaceModel, "YuNet model used to skip face-mesh calls on empty frames")
	flag.BoolVar(&cfg.NoCamera, "no-camera", cfg.NoCamera, "Disable local capture and rely on ingest sources")
	flag.StringVar(&cfg.Preset, "preset", cfg.Preset, "Estimator preset: "+strings.Join(drowsiness.PresetNames(), ", "))
	flag.StringVar(&cfg.Evidence, "evidence", cfg.Evidence, "Minimum evidence mode: samples or duration")
	flag.Float64Var(&cfg.EARThreshold, "ear-threshold", cfg.EARThreshold, "Override the preset's closed-eye EAR threshold")
	flag.IntVar(&cfg.SmoothWindow, "smooth", cfg.SmoothWindow, "EAR smoothing window in samples")
	flag.Float64Var(&cfg.TargetFPS, "fps", cfg.TargetFPS, "Target acquisition rate (0 = unpaced)")
	flag.BoolVar(&cfg.AutoStart, "autostart", cfg.AutoStart, "Start detection immediately")
	flag.BoolVar(&cfg.Ingest, "ingest", cfg.Ingest, "Accept remote sensors on /ws/ingest")
	flag.StringVar(&cfg.Record, "record", cfg.Record, "Append live samples to this JSONL file")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	debug := flag.Bool("debug", false, "Shorthand for -log-level debug")
	flag.Parse()

	if *debug {
		cfg.LogLevel = "debug"
	}
	return cfg
}
