// Package replay drives a Monitor from a recorded JSONL sample stream.
//
// Each line of a recording is one sample:
//
//	{"t":12.35,"ear":0.241,"direction":"Looking Forward"}
//	{"t":12.40,"no_face":true}
//
// t is seconds from any fixed origin; Writer uses the Unix epoch. An
// optional "session" names the monitor session the sample came from.
// Blank lines and lines starting with '#' are skipped.
//
// A recording may hold several runs appended one after another. A new
// run starts where the session changes or t goes backwards; the monitor
// is reset there and the gap between runs counts toward no level.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/headpose"
	"github.com/teslashibe/go-vigil/pkg/monitor"
)

// maxLine bounds a single recording line.
const maxLine = 64 * 1024

// Record is one recorded sample.
type Record struct {
	T         float64            `json:"t"`
	EAR       float64            `json:"ear"`
	Direction headpose.Direction `json:"direction"`
	NoFace    bool               `json:"no_face,omitempty"`
	Session   string             `json:"session,omitempty"`
}

// rawRecord uses pointers so missing fields can be told apart from zeros.
type rawRecord struct {
	T         *float64            `json:"t"`
	EAR       *float64            `json:"ear"`
	Direction *headpose.Direction `json:"direction"`
	NoFace    bool                `json:"no_face"`
	Session   string              `json:"session"`
}

// ParseRecord decodes and validates a single line.
func ParseRecord(line []byte) (Record, error) {
	var raw rawRecord
	if err := json.Unmarshal(line, &raw); err != nil {
		return Record{}, err
	}
	if raw.T == nil {
		return Record{}, errors.New("missing t")
	}
	if *raw.T < 0 {
		return Record{}, fmt.Errorf("negative t %v", *raw.T)
	}
	rec := Record{T: *raw.T, NoFace: raw.NoFace, Session: raw.Session}
	if raw.NoFace {
		return rec, nil
	}
	if raw.EAR == nil {
		return Record{}, errors.New("missing ear")
	}
	if *raw.EAR < 0 {
		return Record{}, fmt.Errorf("negative ear %v", *raw.EAR)
	}
	rec.EAR = *raw.EAR
	rec.Direction = headpose.Forward
	if raw.Direction != nil {
		rec.Direction = *raw.Direction
	}
	return rec, nil
}

// Options configures a replay run.
type Options struct {
	Config monitor.Config
	// Epoch is the wall time of t=0. Defaults to the Unix epoch.
	Epoch        time.Time
	OnTransition func(monitor.Transition)
	OnSample     func(Record, monitor.Snapshot)
	Logger       *slog.Logger
}

// Summary describes a completed replay.
type Summary struct {
	Samples     int                                `json:"samples"`
	Segments    int                                `json:"segments"` // runs in the recording
	Duration    time.Duration                      `json:"duration"`
	TimeIn      map[drowsiness.Level]time.Duration `json:"time_in"`
	Transitions int                                `json:"transitions"`
	MaxPerclos  float64                            `json:"max_perclos"`
	FinalLevel  drowsiness.Level                   `json:"final_level"`
	NoFace      int                                `json:"no_face"`
	// FirstCritical is the recorded time before the first Critical
	// sample, or -1.
	FirstCritical time.Duration `json:"first_critical"`
}

// Fraction returns the share of the recording spent in level.
func (s Summary) Fraction(level drowsiness.Level) float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.TimeIn[level]) / float64(s.Duration)
}

// Run replays r through a fresh Monitor. Time spent between two samples
// of the same segment is attributed to the level reached at the earlier
// one. Duration is the sum of the segment lengths.
func Run(ctx context.Context, r io.Reader, opts Options) (Summary, error) {
	cfg := opts.Config
	if cfg == (monitor.Config{}) {
		cfg = monitor.DefaultConfig()
	}
	logger := log.Or(opts.Logger).With("component", "replay")
	mon, err := monitor.New(cfg, monitor.WithLogger(logger))
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		TimeIn:        make(map[drowsiness.Level]time.Duration),
		FirstCritical: -1,
	}
	mon.OnTransition(func(tr monitor.Transition) {
		sum.Transitions++
		if opts.OnTransition != nil {
			opts.OnTransition(tr)
		}
	})

	epoch := opts.Epoch
	if epoch.IsZero() {
		epoch = time.Unix(0, 0).UTC()
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLine)

	var (
		lineNo    int
		session   string
		segStart  time.Duration
		prevAt    time.Duration
		elapsed   time.Duration // length of completed segments
		prevLevel drowsiness.Level
	)
	for sc.Scan() {
		lineNo++
		if lineNo%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, err := ParseRecord([]byte(line))
		if err != nil {
			return sum, &LineError{Line: lineNo, Err: err}
		}

		at := time.Duration(rec.T * float64(time.Second))
		switch {
		case sum.Samples == 0:
			segStart, prevAt = at, at
			sum.Segments = 1
		case at < prevAt || (rec.Session != "" && session != "" && rec.Session != session):
			logger.Debug("new segment", "line", lineNo, "session", rec.Session)
			elapsed += prevAt - segStart
			segStart, prevAt = at, at
			sum.Segments++
			mon.Reset()
		case at > prevAt:
			sum.TimeIn[prevLevel] += at - prevAt
			prevAt = at
		}
		if rec.Session != "" {
			session = rec.Session
		}

		snap := mon.Observe(monitor.Sample{
			At:        epoch.Add(at),
			EAR:       rec.EAR,
			Direction: rec.Direction,
			NoFace:    rec.NoFace,
		})
		if opts.OnSample != nil {
			opts.OnSample(rec, snap)
		}

		sum.Samples++
		if rec.NoFace {
			sum.NoFace++
		}
		if snap.Perclos > sum.MaxPerclos {
			sum.MaxPerclos = snap.Perclos
		}
		if snap.Level == drowsiness.Critical && sum.FirstCritical < 0 {
			sum.FirstCritical = elapsed + at - segStart
		}
		prevLevel = snap.Level
	}
	if err := sc.Err(); err != nil {
		return sum, &LineError{Line: lineNo + 1, Err: err}
	}
	if sum.Samples == 0 {
		return sum, ErrEmpty
	}

	sum.Duration = elapsed + prevAt - segStart
	sum.FinalLevel = prevLevel
	logger.Debug("replay finished",
		"samples", sum.Samples,
		"segments", sum.Segments,
		"transitions", sum.Transitions,
		"final", sum.FinalLevel.String())
	return sum, nil
}
