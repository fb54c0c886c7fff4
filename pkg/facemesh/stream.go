package facemesh

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-vigil/internal/log"
)

const (
	defaultHandshakeTimeout = 5 * time.Second
	defaultStreamTimeout    = 2 * time.Second
)

// StreamClient keeps one websocket open to the detector. Each Detect sends
// the frame as a binary message and waits for a JSON reply, so calls are
// serialised. A broken connection is redialled on the next call.
type StreamClient struct {
	url    string
	header http.Header
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewStreamClient creates a client for the detector websocket at url.
// No connection is made until the first Detect or Connect.
func NewStreamClient(url string, logger *slog.Logger) *StreamClient {
	return &StreamClient{
		url:    url,
		header: http.Header{},
		logger: log.Or(logger).With("component", "facemesh.stream"),
	}
}

// Connect dials the sidecar if not already connected.
func (s *StreamClient) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.connLocked(ctx)
	return err
}

func (s *StreamClient) connLocked(ctx context.Context) (*websocket.Conn, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.conn != nil {
		return s.conn, nil
	}
	dialer := websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("handshake failed: %v", err)}
		}
		return nil, fmt.Errorf("facemesh: dial: %w", err)
	}
	s.conn = conn
	s.logger.Info("connected", "url", s.url)
	return conn, nil
}

// Detect sends one frame and waits for the reply.
func (s *StreamClient) Detect(ctx context.Context, jpeg []byte) (*Result, error) {
	if len(jpeg) == 0 {
		return nil, ErrEmptyFrame
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.connLocked(ctx)
	if err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultStreamTimeout)
	}
	conn.SetWriteDeadline(deadline)
	conn.SetReadDeadline(deadline)

	if err := conn.WriteMessage(websocket.BinaryMessage, jpeg); err != nil {
		s.dropLocked()
		return nil, fmt.Errorf("facemesh: send frame: %w", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		s.dropLocked()
		return nil, fmt.Errorf("facemesh: read result: %w", err)
	}
	return decodeResult(data)
}

func (s *StreamClient) dropLocked() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
		s.logger.Warn("connection dropped", "url", s.url)
	}
}

// Close closes the connection. Further calls return ErrClosed.
func (s *StreamClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn == nil {
		return nil
	}
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := s.conn.Close()
	s.conn = nil
	return err
}
