// vigil-replay runs recorded EAR/head-direction samples through the
// attention estimator and prints a per-recording summary.
//
//	vigil-replay -preset sensitive drive1.jsonl drive2.jsonl
//	vigil-replay -json < session.jsonl
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/monitor"
	"github.com/teslashibe/go-vigil/pkg/replay"
)

type result struct {
	File    string         `json:"file"`
	Summary replay.Summary `json:"summary"`
	Error   string         `json:"error,omitempty"`
}

func main() {
	preset := flag.String("preset", "default", "Estimator preset: "+strings.Join(drowsiness.PresetNames(), ", "))
	evidence := flag.String("evidence", "", "Minimum evidence mode: samples or duration (default from preset)")
	smooth := flag.Int("smooth", monitor.DefaultConfig().SmoothWindow, "EAR smoothing window in samples")
	asJSON := flag.Bool("json", false, "Print results as JSON lines")
	verbose := flag.Bool("v", false, "Print every level transition")
	logLevel := flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*logLevel)

	est, ok := drowsiness.Preset(*preset)
	if !ok {
		fatalf("unknown preset %q (have %s)", *preset, strings.Join(drowsiness.PresetNames(), ", "))
	}
	if *evidence != "" {
		mode, err := drowsiness.ParseEvidenceMode(*evidence)
		if err != nil {
			fatalf("%v", err)
		}
		est.Evidence = mode
	}
	cfg := monitor.Config{Estimator: est, SmoothWindow: *smooth}
	if errs := cfg.Validate(); len(errs) > 0 {
		fatalf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	files := flag.Args()
	if len(files) == 0 {
		files = []string{"-"}
	}

	failed := false
	for _, name := range files {
		res := run(ctx, name, cfg, *verbose && !*asJSON)
		if res.Error != "" {
			failed = true
		}
		if *asJSON {
			b, _ := json.Marshal(res)
			fmt.Println(string(b))
			continue
		}
		printResult(res)
	}
	if failed {
		os.Exit(1)
	}
}

func run(ctx context.Context, name string, cfg monitor.Config, verbose bool) result {
	res := result{File: name}

	var r io.Reader = os.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		defer f.Close()
		r = f
	}

	opts := replay.Options{Config: cfg}
	if verbose {
		opts.OnTransition = func(tr monitor.Transition) {
			fmt.Printf("  %s  %-11s -> %-11s perclos=%.2f head=%s\n",
				tr.At.UTC().Format("15:04:05.00"), tr.From, tr.To, tr.Perclos, tr.Direction)
		}
	}

	sum, err := replay.Run(ctx, r, opts)
	res.Summary = sum
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func printResult(res result) {
	fmt.Printf("%s\n", res.File)
	if res.Error != "" {
		fmt.Printf("  error: %s\n", res.Error)
		return
	}
	s := res.Summary
	fmt.Printf("  samples:     %d (%d without face)\n", s.Samples, s.NoFace)
	fmt.Printf("  duration:    %s in %d segment(s)\n", s.Duration.Round(time.Millisecond), s.Segments)
	fmt.Printf("  transitions: %d\n", s.Transitions)
	fmt.Printf("  max perclos: %.3f\n", s.MaxPerclos)
	fmt.Printf("  final:       %s\n", s.FinalLevel)
	if s.FirstCritical >= 0 {
		fmt.Printf("  critical at: %s\n", s.FirstCritical.Round(time.Millisecond))
	}
	for _, lvl := range []drowsiness.Level{drowsiness.NotDrowsy, drowsiness.Medium, drowsiness.Critical, drowsiness.Distraction} {
		fmt.Printf("  %-12s %5.1f%%  %s\n", lvl.String()+":", 100*s.Fraction(lvl), s.TimeIn[lvl].Round(time.Millisecond))
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "vigil-replay: "+format+"\n", args...)
	os.Exit(2)
}
