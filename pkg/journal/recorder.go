package journal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-vigil/pkg/monitor"
)

const recorderBuffer = 64

// Recorder writes monitor transitions to the journal off the observing
// goroutine. Transitions arriving while the queue is full are dropped.
type Recorder struct {
	journal *Journal
	queue   chan monitor.Transition
	done    chan struct{}
	dropped atomic.Uint64
}

// Attach subscribes to mon's transitions and writes them until ctx is
// done. Queued transitions are flushed before Done is closed.
func (j *Journal) Attach(ctx context.Context, mon *monitor.Monitor) *Recorder {
	r := &Recorder{
		journal: j,
		queue:   make(chan monitor.Transition, recorderBuffer),
		done:    make(chan struct{}),
	}
	mon.OnTransition(r.enqueue)
	go r.run(ctx)
	return r
}

func (r *Recorder) enqueue(tr monitor.Transition) {
	select {
	case <-r.done:
		return
	default:
	}
	select {
	case r.queue <- tr:
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			r.journal.logger.Warn("transition queue full, dropping", "dropped", n)
		}
	}
}

func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case tr := <-r.queue:
			r.write(ctx, tr)
		case <-ctx.Done():
			for {
				select {
				case tr := <-r.queue:
					r.write(context.Background(), tr)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(ctx context.Context, tr monitor.Transition) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.journal.RecordTransition(ctx, tr); err != nil {
		r.journal.logger.Error("record transition failed", "error", err, "session", tr.Session)
	}
}

// Done is closed once the recorder has stopped and flushed.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// Dropped returns how many transitions were lost to a full queue.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}
