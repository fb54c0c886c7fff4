package ingest

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/clock"
	"github.com/teslashibe/go-vigil/pkg/facemesh"
	"github.com/teslashibe/go-vigil/pkg/monitor"
	"github.com/teslashibe/go-vigil/pkg/pipeline"
)

// Observer takes measured samples; *monitor.Monitor implements it.
type Observer interface {
	Observe(s monitor.Sample) monitor.Snapshot
}

// Applier takes raw face-mesh results; *pipeline.Processor implements it.
type Applier interface {
	Apply(res *facemesh.Result, now time.Time) pipeline.FrameResult
}

// Source is a connected sensor.
type Source struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time

	mu       sync.Mutex
	lastSeen time.Time
	samples  uint64
}

// Send writes msg to the sensor.
func (s *Source) Send(msg *Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Source) touch(now time.Time, sample bool) {
	s.mu.Lock()
	s.lastSeen = now
	if sample {
		s.samples++
	}
	s.mu.Unlock()
}

// Hub tracks connected sensors and routes their messages.
type Hub struct {
	observer Observer
	applier  Applier
	clock    clock.Clock
	logger   *slog.Logger

	mu      sync.RWMutex
	sources map[string]*Source

	messagesReceived atomic.Uint64
	samplesAccepted  atomic.Uint64
	messagesRejected atomic.Uint64
}

// NewHub creates a hub feeding observer. applier may be nil, in which
// case landmark messages are rejected.
func NewHub(observer Observer, applier Applier, clk clock.Clock, logger *slog.Logger) *Hub {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Hub{
		observer: observer,
		applier:  applier,
		clock:    clk,
		logger:   log.Or(logger).With("component", "ingest"),
		sources:  make(map[string]*Source),
	}
}

// RegisterRoutes mounts the sensor websocket endpoints.
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/ingest", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/ingest", websocket.New(h.handleSource))
	app.Get("/ws/ingest/:id", websocket.New(h.handleSource))
}

func (h *Hub) handleSource(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}
	now := h.clock.Now()
	src := &Source{ID: id, Conn: c, Connected: now, lastSeen: now}

	h.mu.Lock()
	if old, ok := h.sources[id]; ok {
		old.Conn.Close()
	}
	h.sources[id] = src
	count := len(h.sources)
	h.mu.Unlock()
	h.logger.Info("source connected", "source", id, "sources", count)

	defer func() {
		h.mu.Lock()
		if h.sources[id] == src {
			delete(h.sources, id)
		}
		count := len(h.sources)
		h.mu.Unlock()
		h.logger.Info("source disconnected", "source", id, "sources", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			h.logger.Debug("source read ended", "source", id, "error", err)
			return
		}
		h.messagesReceived.Add(1)
		if reply := h.handleMessage(src, data); reply != nil {
			if err := src.Send(reply); err != nil {
				h.logger.Debug("reply failed", "source", id, "error", err)
				return
			}
		}
	}
}

// handleMessage processes one sensor message and returns the reply.
func (h *Hub) handleMessage(src *Source, data []byte) *Message {
	now := h.clock.Now()

	msg, err := ParseMessage(data)
	if err != nil {
		return h.reject(src, err)
	}

	switch msg.Type {
	case TypeSample:
		var sd SampleData
		if err := msg.ParseData(&sd); err != nil {
			return h.reject(src, fmt.Errorf("bad sample: %w", err))
		}
		snap := h.observer.Observe(monitor.Sample{
			At:        msg.Time(now),
			EAR:       sd.EAR,
			Direction: sd.Direction,
			NoFace:    sd.NoFace,
		})
		src.touch(now, true)
		h.samplesAccepted.Add(1)
		return statusMessage(snap)

	case TypeLandmarks:
		if h.applier == nil {
			return h.reject(src, fmt.Errorf("landmark messages are not accepted"))
		}
		var res facemesh.Result
		if err := msg.ParseData(&res); err != nil {
			return h.reject(src, fmt.Errorf("bad landmarks: %w", err))
		}
		fr := h.applier.Apply(&res, msg.Time(now))
		src.touch(now, true)
		h.samplesAccepted.Add(1)
		return statusMessage(fr.Snapshot)

	case TypePing:
		src.touch(now, false)
		pong, _ := NewMessage(TypePong, map[string]int64{"ping_ts": msg.Timestamp})
		return pong

	default:
		return h.reject(src, fmt.Errorf("unknown message type %q", msg.Type))
	}
}

func (h *Hub) reject(src *Source, err error) *Message {
	h.messagesRejected.Add(1)
	h.logger.Debug("message rejected", "source", src.ID, "error", err)
	reply, _ := NewMessage(TypeError, ErrorData{Message: err.Error()})
	return reply
}

func statusMessage(snap monitor.Snapshot) *Message {
	reply, _ := NewMessage(TypeStatus, StatusData{
		Level:     snap.Level,
		Perclos:   snap.Perclos,
		Direction: snap.Direction,
		Session:   snap.Session,
	})
	return reply
}

// SourceCount returns the number of connected sensors.
func (h *Hub) SourceCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sources)
}

// SourceInfo describes a connected sensor.
type SourceInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
	Samples   uint64    `json:"samples"`
}

// Sources returns info about every connected sensor.
func (h *Hub) Sources() []SourceInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]SourceInfo, 0, len(h.sources))
	for _, s := range h.sources {
		s.mu.Lock()
		infos = append(infos, SourceInfo{
			ID:        s.ID,
			Connected: s.Connected,
			LastSeen:  s.lastSeen,
			Samples:   s.samples,
		})
		s.mu.Unlock()
	}
	return infos
}

// Stats are hub counters.
type Stats struct {
	Sources          int    `json:"sources"`
	MessagesReceived uint64 `json:"messages_received"`
	SamplesAccepted  uint64 `json:"samples_accepted"`
	MessagesRejected uint64 `json:"messages_rejected"`
}

// GetStats returns hub counters.
func (h *Hub) GetStats() Stats {
	return Stats{
		Sources:          h.SourceCount(),
		MessagesReceived: h.messagesReceived.Load(),
		SamplesAccepted:  h.samplesAccepted.Load(),
		MessagesRejected: h.messagesRejected.Load(),
	}
}

// RegisterAPIRoutes mounts sensor listing endpoints under api.
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	sources := api.Group("/sources")

	sources.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sources": h.Sources(),
			"count":   h.SourceCount(),
		})
	})

	sources.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}
