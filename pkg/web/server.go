// Package web serves the attention dashboard: a JSON API for status,
// detection control, configuration and alert history, plus websocket
// streams of live status and annotated camera frames.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/hub"
	"github.com/teslashibe/go-vigil/pkg/ingest"
	"github.com/teslashibe/go-vigil/pkg/journal"
	"github.com/teslashibe/go-vigil/pkg/monitor"
	"github.com/teslashibe/go-vigil/pkg/pipeline"
)

//go:embed static
var staticFS embed.FS

// staticRoot serves the embedded dashboard page from the site root.
func staticRoot() (http.FileSystem, error) {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("web: static assets: %w", err)
	}
	return http.FS(sub), nil
}

// Detector starts and stops the local detection loop.
type Detector interface {
	Start(ctx context.Context) error
	Stop() (*pipeline.FrameResult, error)
	Running() bool
}

// History reads recorded alerts.
type History interface {
	RecentTransitions(ctx context.Context, limit int) ([]journal.Event, error)
	Sessions(ctx context.Context, limit int) ([]journal.Session, error)
}

// Calibrator re-centres head-pose classification.
type Calibrator interface {
	Calibrate()
}

// Deps are the server's collaborators. Only Monitor is required.
type Deps struct {
	Monitor    *monitor.Monitor
	Detector   Detector
	History    History
	Calibrator Calibrator
	Ingest     *ingest.Hub
	Logger     *slog.Logger
}

// Server is the dashboard HTTP server.
type Server struct {
	app  *fiber.App
	addr string
	deps Deps

	// Detection outlives the request that started it.
	baseCtx context.Context

	statusHub *hub.Hub
	cameraHub *hub.Hub
	logger    *slog.Logger
}

// NewServer builds the app and its routes.
func NewServer(addr string, deps Deps) *Server {
	logger := log.Or(deps.Logger).With("component", "web")
	s := &Server{
		addr:      addr,
		deps:      deps,
		baseCtx:   context.Background(),
		statusHub: hub.New("status", true, logger),
		cameraHub: hub.New("camera", false, logger),
		logger:    logger,
	}

	app := fiber.New(fiber.Config{
		AppName:               "vigil",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler:          s.errorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/start", s.handleStart)
	api.Post("/stop", s.handleStop)
	api.Post("/calibrate", s.handleCalibrate)
	api.Get("/config", s.handleGetConfig)
	api.Put("/config", s.handlePutConfig)
	api.Get("/config/presets", s.handlePresets)
	api.Get("/events", s.handleEvents)
	api.Get("/sessions", s.handleSessions)

	if deps.Ingest != nil {
		deps.Ingest.RegisterRoutes(app)
		deps.Ingest.RegisterAPIRoutes(api)
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleHubWS(s.statusHub)))
	app.Get("/ws/camera", websocket.New(s.handleHubWS(s.cameraHub)))

	if static, err := staticRoot(); err != nil {
		logger.Error("dashboard page unavailable", "error", err)
	} else {
		app.Use("/", filesystem.New(filesystem.Config{
			Root:  static,
			Index: "index.html",
		}))
	}

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the hubs and serves until the listener fails or Shutdown is
// called. ctx bounds the hubs and any detection started over the API.
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx
	go s.statusHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	s.logger.Info("dashboard listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown stops accepting connections and waits up to timeout for
// in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

// PublishSnapshot pushes a status update to dashboard subscribers.
func (s *Server) PublishSnapshot(snap monitor.Snapshot) {
	if err := s.statusHub.BroadcastJSON(snap); err != nil {
		s.logger.Warn("encode snapshot", "error", err)
	}
}

// PublishFrame pushes an annotated JPEG to camera subscribers.
func (s *Server) PublishFrame(jpeg []byte) {
	if s.cameraHub.ClientCount() == 0 {
		return
	}
	s.cameraHub.BroadcastBinary(jpeg)
}

// CameraSubscribers reports whether anyone is watching the camera stream,
// so callers can skip annotating frames nobody will see.
func (s *Server) CameraSubscribers() int {
	return s.cameraHub.ClientCount()
}

func (s *Server) handleHubWS(h *hub.Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		client := hub.NewClient(h, c)
		if client == nil {
			c.Close()
			return
		}
		client.Run()
	}
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= 500 {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
