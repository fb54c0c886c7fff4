package facemesh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/teslashibe/go-vigil/internal/httpc"
	"github.com/teslashibe/go-vigil/internal/log"
)

// HTTPClient sends each frame as a multipart upload.
type HTTPClient struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.client = c }
}

// WithTimeout sets a per-request timeout on a dedicated client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTPClient) { h.client = httpc.NewClient(d) }
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTPClient) { h.logger = l }
}

// NewHTTPClient creates a client for the detector endpoint at url.
func NewHTTPClient(url string, opts ...HTTPOption) *HTTPClient {
	h := &HTTPClient{url: url, client: httpc.Client}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = log.Or(h.logger).With("component", "facemesh.http")
	return h
}

// Detect uploads jpeg as the "image" form field.
func (h *HTTPClient) Detect(ctx context.Context, jpeg []byte) (*Result, error) {
	if len(jpeg) == 0 {
		return nil, ErrEmptyFrame
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("facemesh: build form: %w", err)
	}
	if _, err := part.Write(jpeg); err != nil {
		return nil, fmt.Errorf("facemesh: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("facemesh: build form: %w", err)
	}

	start := time.Now()
	resp, err := httpc.Post(ctx, h.client, h.url, mw.FormDataContentType(), body.Bytes())
	if err != nil {
		return nil, fmt.Errorf("facemesh: request: %w", err)
	}
	data, err := httpc.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("facemesh: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			apiErr.Message = eb.Error
		}
		return nil, apiErr
	}

	res, err := decodeResult(data)
	if err != nil {
		return nil, err
	}
	h.logger.Debug("detect", "found", res.Found, "landmarks", len(res.Landmarks), "latency", time.Since(start))
	return res, nil
}
