// Package ingest accepts attention samples from remote sensors over
// websocket. A sensor sends either per-frame samples (EAR plus head
// direction) or raw face-mesh results, and gets the resulting status back
// after each one.
package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/headpose"
)

// MessageType identifies a message.
type MessageType string

const (
	// Sensor to server
	TypeSample    MessageType = "sample"    // SampleData
	TypeLandmarks MessageType = "landmarks" // facemesh.Result

	// Server to sensor
	TypeStatus MessageType = "status" // StatusData
	TypeError  MessageType = "error"  // ErrorData

	// Both ways
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the envelope for every frame on the wire.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage wraps data in an envelope stamped with the current time.
func NewMessage(t MessageType, data any) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		var err error
		if raw, err = json.Marshal(data); err != nil {
			return nil, fmt.Errorf("ingest: marshal %s data: %w", t, err)
		}
	}
	return &Message{Type: t, Timestamp: time.Now().UnixMilli(), Data: raw}, nil
}

// ParseMessage decodes an envelope.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("ingest: parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("ingest: message without type")
	}
	return &msg, nil
}

// ParseData decodes the payload into v.
func (m *Message) ParseData(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("ingest: %s message without data", m.Type)
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes encodes the envelope.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// Time returns the message timestamp, or fallback when it has none.
func (m *Message) Time(fallback time.Time) time.Time {
	if m.Timestamp <= 0 {
		return fallback
	}
	return time.UnixMilli(m.Timestamp)
}

// SampleData is one pre-measured frame.
type SampleData struct {
	EAR       float64            `json:"ear"`
	Direction headpose.Direction `json:"direction"`
	NoFace    bool               `json:"no_face,omitempty"`
}

// StatusData is sent back after each sample.
type StatusData struct {
	Level     drowsiness.Level   `json:"level"`
	Perclos   float64            `json:"perclos"`
	Direction headpose.Direction `json:"direction"`
	Session   string             `json:"session"`
}

// ErrorData reports a rejected message.
type ErrorData struct {
	Message string `json:"message"`
}
