package web

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/monitor"
	"github.com/teslashibe/go-vigil/pkg/pipeline"
)

// NotStarted is the level reported before any sample has been seen.
const NotStarted = "Not Started"

// StatusResponse is the /api/status body once samples have arrived.
type StatusResponse struct {
	monitor.Snapshot
	Running bool `json:"running"`
}

// idleStatus is the /api/status body before the first sample.
type idleStatus struct {
	Level     string  `json:"drowsiness_level"`
	Direction string  `json:"head_direction"`
	EAR       float64 `json:"ear"`
	Running   bool    `json:"running"`
	Session   string  `json:"session"`
}

func (s *Server) running() bool {
	return s.deps.Detector != nil && s.deps.Detector.Running()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "ok",
		"running":        s.running(),
		"status_clients": s.statusHub.ClientCount(),
		"camera_clients": s.cameraHub.ClientCount(),
	})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	snap, ok := s.deps.Monitor.Snapshot()
	if !ok {
		return c.JSON(idleStatus{
			Level:     NotStarted,
			Direction: "Unknown",
			Running:   s.running(),
			Session:   s.deps.Monitor.Session(),
		})
	}
	return c.JSON(StatusResponse{Snapshot: snap, Running: s.running()})
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	if s.deps.Detector == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "no camera configured")
	}
	if err := s.deps.Detector.Start(s.baseCtx); err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Detection started",
		"session": s.deps.Monitor.Session(),
	})
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	if s.deps.Detector == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "no camera configured")
	}
	last, err := s.deps.Detector.Stop()
	if err != nil {
		if errors.Is(err, pipeline.ErrNotRunning) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return err
	}
	resp := fiber.Map{"message": "Detection stopped"}
	if last != nil {
		resp["last_result"] = last
	}
	return c.JSON(resp)
}

func (s *Server) handleCalibrate(c *fiber.Ctx) error {
	if s.deps.Calibrator == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "head pose calibration unavailable")
	}
	s.deps.Calibrator.Calibrate()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Next detected head pose becomes the neutral position",
	})
}

func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	return c.JSON(ConfigToDTO(s.deps.Monitor.Config()))
}

func (s *Server) handlePutConfig(c *fiber.Ctx) error {
	cfg, err := ApplyPatch(s.deps.Monitor.Config(), c.Body())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.deps.Monitor.SetConfig(cfg); err != nil {
		var ce *monitor.ConfigError
		if errors.As(err, &ce) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":    "invalid config",
				"problems": ce.Problems,
			})
		}
		return err
	}
	s.logger.Info("config replaced over API", "session", s.deps.Monitor.Session())
	return c.JSON(ConfigToDTO(cfg))
}

func (s *Server) handlePresets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"presets": drowsiness.PresetNames()})
}

func queryLimit(c *fiber.Ctx) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "limit must be a non-negative integer")
	}
	return n, nil
}

func (s *Server) handleEvents(c *fiber.Ctx) error {
	if s.deps.History == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "journal disabled")
	}
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}
	events, err := s.deps.History.RecentTransitions(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"events": events, "count": len(events)})
}

func (s *Server) handleSessions(c *fiber.Ctx) error {
	if s.deps.History == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "journal disabled")
	}
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}
	sessions, err := s.deps.History.Sessions(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"sessions": sessions, "count": len(sessions)})
}
