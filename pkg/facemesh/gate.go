package facemesh

import (
	"context"
	"io"
)

// PresenceFunc reports whether a frame contains a face.
type PresenceFunc func(jpeg []byte) (bool, error)

// Gated returns a Detector that only calls det when present finds a face.
// Frames without a face yield a not-found Result without a sidecar round
// trip. Presence errors fall through to det.
func Gated(det Detector, present PresenceFunc) Detector {
	return &gated{det: det, present: present}
}

type gated struct {
	det     Detector
	present PresenceFunc
}

func (g *gated) Detect(ctx context.Context, jpeg []byte) (*Result, error) {
	if len(jpeg) == 0 {
		return nil, ErrEmptyFrame
	}
	if ok, err := g.present(jpeg); err == nil && !ok {
		return &Result{Found: false}, nil
	}
	return g.det.Detect(ctx, jpeg)
}

// Close closes the wrapped detector when it holds resources.
func (g *gated) Close() error {
	if c, ok := g.det.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
