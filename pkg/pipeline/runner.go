package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/clock"
)

// DefaultTargetFPS is the acquisition rate the runner paces to.
const DefaultTargetFPS = 20

// FrameSource produces JPEG frames.
type FrameSource interface {
	CaptureJPEG() ([]byte, error)
}

// FrameHook observes every processed frame, e.g. to stream it to a
// dashboard. It runs on the acquisition goroutine and must not block.
type FrameHook func(jpeg []byte, res FrameResult)

// StartHook runs inside Start once the new session exists and before the
// first frame is captured.
type StartHook func(ctx context.Context, session string)

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock sets the clock used for timestamps and pacing.
func WithClock(c clock.Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// WithTargetFPS sets the pacing rate. Zero disables pacing.
func WithTargetFPS(fps float64) RunnerOption {
	return func(r *Runner) { r.targetFPS = fps }
}

// WithFrameHook registers a hook called after every frame.
func WithFrameHook(h FrameHook) RunnerOption {
	return func(r *Runner) { r.hook = h }
}

// WithStartHook registers a hook called on every Start.
func WithStartHook(h StartHook) RunnerOption {
	return func(r *Runner) { r.onStart = h }
}

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// Runner runs the detection loop in the background.
type Runner struct {
	source    FrameSource
	proc      *Processor
	clock     clock.Clock
	targetFPS float64
	hook      FrameHook
	onStart   StartHook
	logger    *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	last     atomic.Pointer[FrameResult]
	frames   atomic.Uint64
	failures atomic.Uint64
}

// NewRunner creates an idle runner.
func NewRunner(src FrameSource, proc *Processor, opts ...RunnerOption) *Runner {
	r := &Runner{
		source:    src,
		proc:      proc,
		clock:     clock.Real{},
		targetFPS: DefaultTargetFPS,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = log.Or(r.logger).With("component", "runner")
	return r
}

// Start launches the loop. It returns ErrAlreadyRunning if the loop is
// active. The loop stops when ctx is cancelled or Stop is called.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrAlreadyRunning
	}

	session := r.proc.Monitor().Reset()
	r.last.Store(nil)
	if r.onStart != nil {
		r.onStart(ctx, session)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go r.loop(ctx, r.done)
	r.logger.Info("detection started", "target_fps", r.targetFPS, "session", session)
	return nil
}

// Stop halts the loop and returns the last frame result, which is nil if
// no frame was processed.
func (r *Runner) Stop() (*FrameResult, error) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return r.last.Load(), ErrNotRunning
	}
	cancel, done := r.cancel, r.done
	r.running = false
	r.mu.Unlock()

	cancel()
	<-done
	r.logger.Info("detection stopped", "frames", r.frames.Load(), "capture_failures", r.failures.Load())
	return r.last.Load(), nil
}

// Running reports whether the loop is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Last returns the most recent frame result, or nil.
func (r *Runner) Last() *FrameResult {
	return r.last.Load()
}

// Frames returns the number of frames processed since construction.
func (r *Runner) Frames() uint64 {
	return r.frames.Load()
}

func (r *Runner) interval() time.Duration {
	if r.targetFPS <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / r.targetFPS)
}

func (r *Runner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	interval := r.interval()

	for ctx.Err() == nil {
		start := r.clock.Now()

		frame, err := r.source.CaptureJPEG()
		if err != nil {
			if n := r.failures.Add(1); n == 1 || n%100 == 0 {
				r.logger.Warn("frame capture failed", "error", err, "failures", n)
			}
			if !r.wait(ctx, interval) {
				return
			}
			continue
		}

		res, err := r.proc.Process(ctx, frame, r.clock.Now())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Debug("frame processed without detection", "error", err)
		}
		r.last.Store(&res)
		r.frames.Add(1)
		if r.hook != nil {
			r.hook(frame, res)
		}

		if !r.wait(ctx, interval-r.clock.Since(start)) {
			return
		}
	}
}

// wait pauses for d and reports false if ctx ended first.
func (r *Runner) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-r.clock.After(d):
		return true
	}
}
