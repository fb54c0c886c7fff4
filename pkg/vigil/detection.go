package vigil

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-vigil/pkg/journal"
	"github.com/teslashibe/go-vigil/pkg/monitor"
	"github.com/teslashibe/go-vigil/pkg/pipeline"
	"github.com/teslashibe/go-vigil/pkg/web"
)

// detection starts and stops the runner and brackets each run with a
// journal session. A config change mid-run closes the current session
// and opens the one that replaced it.
type detection struct {
	runner  *pipeline.Runner
	monitor *monitor.Monitor
	journal *journal.Journal // optional
	logger  *slog.Logger

	mu      sync.Mutex
	session string // open journal session, empty while idle
}

func newDetection(mon *monitor.Monitor, logger *slog.Logger) *detection {
	d := &detection{monitor: mon, logger: logger}
	mon.OnReset(d.onReset)
	return d
}

// onStart is the runner's start hook.
func (d *detection) onStart(ctx context.Context, session string) {
	d.mu.Lock()
	d.session = session
	d.mu.Unlock()
	d.open(ctx, session, d.monitor.Config())
}

func (d *detection) onReset(ch monitor.SessionChange) {
	d.mu.Lock()
	if d.session == "" || d.session != ch.Previous {
		d.mu.Unlock()
		return
	}
	d.session = ch.Session
	d.mu.Unlock()

	now := time.Now()
	d.close(ch.Previous, now)
	d.open(context.Background(), ch.Session, ch.Config)
}

func (d *detection) Start(ctx context.Context) error {
	return d.runner.Start(ctx)
}

func (d *detection) Stop() (*pipeline.FrameResult, error) {
	last, err := d.runner.Stop()
	if err != nil {
		return last, err
	}
	d.mu.Lock()
	session := d.session
	d.session = ""
	d.mu.Unlock()
	if session != "" {
		d.close(session, time.Now())
	}
	return last, nil
}

func (d *detection) Running() bool {
	return d.runner.Running()
}

func (d *detection) open(ctx context.Context, session string, cfg monitor.Config) {
	if d.journal == nil {
		return
	}
	if err := d.journal.OpenSession(ctx, session, time.Now(), web.ConfigToDTO(cfg)); err != nil {
		d.logger.Warn("journal session not opened", "session", session, "error", err)
	}
}

func (d *detection) close(session string, at time.Time) {
	if d.journal == nil {
		return
	}
	if err := d.journal.CloseSession(context.Background(), session, at); err != nil {
		d.logger.Warn("journal session not closed", "session", session, "error", err)
	}
}
