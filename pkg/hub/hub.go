// Package hub fans dashboard updates out to websocket subscribers.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-vigil/internal/log"
)

// Frame is one broadcast payload. Binary frames carry JPEG images; the
// rest are JSON sent as text.
type Frame struct {
	Binary bool
	Data   []byte
}

// Hub tracks subscribers and broadcasts messages to them. Slow
// subscribers whose queue fills are dropped rather than blocking others.
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*Client]struct{}
	broadcast  chan Frame
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	last    *Frame // replayed to new subscribers when replay is on
	replay  bool
	running atomic.Bool
	dropped atomic.Uint64
}

// New creates a hub. When replayLast is set, a new subscriber immediately
// receives the most recent broadcast, so status pages are never blank.
func New(name string, replayLast bool, logger *slog.Logger) *Hub {
	return &Hub{
		name:       name,
		logger:     log.Or(logger).With("component", "hub", "hub", name),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Frame, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		replay:     replayLast,
	}
}

// Run processes registrations and broadcasts until ctx is done, then
// disconnects every subscriber. A hub runs at most once.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			if h.replay && h.last != nil {
				c.send <- *h.last
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client connected", "clients", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", "clients", count)

		case msg := <-h.broadcast:
			h.mu.Lock()
			if h.replay {
				m := msg
				h.last = &m
			}
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
					h.logger.Warn("dropped slow client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues msg for every subscriber. It never blocks; when the
// queue is full the message is dropped.
func (h *Hub) Broadcast(msg Frame) {
	select {
	case h.broadcast <- msg:
	default:
		if n := h.dropped.Add(1); n == 1 || n%100 == 0 {
			h.logger.Warn("broadcast queue full, dropping message", "dropped", n)
		}
	}
}

// BroadcastJSON encodes v and broadcasts it as text.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(Frame{Data: data})
	return nil
}

// BroadcastBinary broadcasts data as a binary frame.
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(Frame{Binary: true, Data: data})
}

// ClientCount returns the number of subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
