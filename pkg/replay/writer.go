package replay

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/teslashibe/go-vigil/pkg/monitor"
)

// Writer records monitor snapshots as a JSONL recording that Run can
// replay. Times are Unix seconds tagged with the snapshot's session, so
// runs appended to one file replay as separate segments. Safe for
// concurrent use.
type Writer struct {
	mu    sync.Mutex
	enc   *json.Encoder
	count int
}

// NewWriter returns a Writer appending to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Write appends one record for snap. The raw EAR is recorded so replay
// applies the same smoothing as the live run.
func (w *Writer) Write(snap monitor.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec := Record{
		T:         float64(snap.At.UnixNano()) / float64(time.Second),
		EAR:       snap.EAR,
		Direction: snap.Direction,
		NoFace:    !snap.FaceFound,
		Session:   snap.Session,
	}
	if err := w.enc.Encode(rec); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}
