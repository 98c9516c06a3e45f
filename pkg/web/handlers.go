package web

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/vl-adk/go-console/pkg/robot"
)

// handleStatus returns the console state snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.snapshot())
}

// handleTranscript returns the ordered transcript.
func (s *Server) handleTranscript(c *fiber.Ctx) error {
	return c.JSON(s.session.Entries())
}

// MessageRequest is the body for operator messages.
type MessageRequest struct {
	Text string `json:"text"`
}

// handleMessage submits an operator message, starting a new reply cycle.
func (s *Server) handleMessage(c *fiber.Ctx) error {
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "empty message"})
	}

	// The reply cycle outlives this request, so it gets its own context.
	s.session.Submit(context.Background(), req.Text)
	return c.JSON(fiber.Map{"submitted": true})
}

// handleSessionReset starts a fresh conversational session.
func (s *Server) handleSessionReset(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()
	if err := s.session.Reset(ctx); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"reset": true})
}

// handleCaptureToggle flips the mic armed preference.
func (s *Server) handleCaptureToggle(c *fiber.Ctx) error {
	if !s.session.CaptureSupported() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "capture unsupported"})
	}
	s.session.ToggleCapture()
	return c.JSON(fiber.Map{
		"armed":     s.session.Armed(),
		"listening": s.session.Listening(),
	})
}

// SpeechRequest is the body for the speech toggle.
type SpeechRequest struct {
	Enabled bool `json:"enabled"`
}

// handleSpeechToggle enables or disables speech playback.
func (s *Server) handleSpeechToggle(c *fiber.Ctx) error {
	var req SpeechRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	s.session.SetSpeechEnabled(req.Enabled)
	return c.JSON(fiber.Map{"speech_enabled": s.session.SpeechEnabled()})
}

// handleMotion dispatches a motion command to the robot backend.
func (s *Server) handleMotion(c *fiber.Ctx) error {
	command := c.Params("command")

	var m robot.Motion
	if v := c.Query("speed"); v != "" {
		speed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid speed"})
		}
		m.Speed = speed
	}
	if v := c.Query("duration"); v != "" {
		duration, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid duration"})
		}
		m.Duration = duration
	}

	ctx, cancel := requestContext()
	defer cancel()

	var (
		status *robot.Status
		err    error
	)
	switch command {
	case "forward":
		status, err = s.motion.Forward(ctx, m)
	case "backward":
		status, err = s.motion.Backward(ctx, m)
	case "left":
		status, err = s.motion.Left(ctx, m)
	case "right":
		status, err = s.motion.Right(ctx, m)
	case "stop":
		status, err = s.motion.Stop(ctx)
	default:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown command"})
	}
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(status)
}

// handleDetections proxies a detection query to the vision backend.
func (s *Server) handleDetections(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	var words []string
	if v := c.Query("words"); v != "" {
		words = strings.Split(v, ",")
	}

	result, err := s.vision.Detect(ctx, words)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(result)
}

// handleGetPrompts returns the active detection prompts.
func (s *Server) handleGetPrompts(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	prompts, err := s.vision.GetPrompts(ctx)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(prompts)
}

// PromptsRequest is the body for prompt updates.
type PromptsRequest struct {
	Prompts []string `json:"prompts"`
}

// handleSetPrompts replaces the active detection prompts.
func (s *Server) handleSetPrompts(c *fiber.Ctx) error {
	var req PromptsRequest
	if err := c.BodyParser(&req); err != nil || len(req.Prompts) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "prompts required"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	result, err := s.vision.SetPrompts(ctx, req.Prompts)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(result)
}

// handleAppendPrompts adds detection prompts to the active set.
func (s *Server) handleAppendPrompts(c *fiber.Ctx) error {
	var req PromptsRequest
	if err := c.BodyParser(&req); err != nil || len(req.Prompts) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "prompts required"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	result, err := s.vision.AppendPrompts(ctx, req.Prompts)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(result)
}

// handleVisionHealth reports the vision backend health.
func (s *Server) handleVisionHealth(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	health, err := s.vision.Health(ctx)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(health)
}
