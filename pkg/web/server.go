// Package web serves the operator console: REST endpoints for motion,
// prompts, and the conversational session, plus WebSocket relays for the
// camera feeds and live status.
package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/vl-adk/go-console/pkg/adk"
	"github.com/vl-adk/go-console/pkg/console"
	"github.com/vl-adk/go-console/pkg/hub"
	"github.com/vl-adk/go-console/pkg/robot"
	"github.com/vl-adk/go-console/pkg/video"
	"github.com/vl-adk/go-console/pkg/vision"
)

// statusInterval is how often the live status is pushed to clients.
const statusInterval = time.Second

// Status is the console state snapshot pushed to browser clients.
type Status struct {
	RobotFeedConnected     bool    `json:"robot_feed_connected"`
	AnnotatedFeedConnected bool    `json:"annotated_feed_connected"`
	Loading                bool    `json:"loading"`
	Speaking               bool    `json:"speaking"`
	SpeechEnabled          bool    `json:"speech_enabled"`
	CaptureSupported       bool    `json:"capture_supported"`
	CaptureArmed           bool    `json:"capture_armed"`
	CaptureListening       bool    `json:"capture_listening"`
	LeftMotor              float64 `json:"left_motor"`
	RightMotor             float64 `json:"right_motor"`
}

// Server is the operator console web server.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	session *console.Session
	motion  robot.Controller
	vision  *vision.Client

	rawFeed       *video.FeedClient
	annotatedFeed *video.FeedClient
	toolNotes     <-chan adk.ToolNote

	// Hubs for websocket broadcast
	statusHub     *hub.Hub
	cameraHub     *hub.Hub
	annotatedHub  *hub.Hub
	transcriptHub *hub.Hub
	toolsHub      *hub.Hub

	stop chan struct{}
}

// Config carries the server's collaborators.
type Config struct {
	Port          string
	Session       *console.Session
	Motion        robot.Controller
	Vision        *vision.Client
	RawFeed       *video.FeedClient
	AnnotatedFeed *video.FeedClient

	// ToolNotes carries tool activity notifications from the reasoning
	// client for live highlighting; nil disables the relay.
	ToolNotes <-chan adk.ToolNote
}

// NewServer creates the operator console server.
func NewServer(cfg Config) *Server {
	s := &Server{
		port:          cfg.Port,
		logger:        slog.Default().With("component", "web"),
		session:       cfg.Session,
		motion:        cfg.Motion,
		vision:        cfg.Vision,
		rawFeed:       cfg.RawFeed,
		annotatedFeed: cfg.AnnotatedFeed,
		toolNotes:     cfg.ToolNotes,
		statusHub:     hub.New("status"),
		cameraHub:     hub.New("camera"),
		annotatedHub:  hub.New("annotated"),
		transcriptHub: hub.New("transcript"),
		toolsHub:      hub.New("tools"),
		stop:          make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "VL-ADK Console",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/transcript", s.handleTranscript)
	api.Post("/message", s.handleMessage)
	api.Post("/session/reset", s.handleSessionReset)
	api.Post("/capture/toggle", s.handleCaptureToggle)
	api.Post("/speech", s.handleSpeechToggle)
	api.Post("/motion/:command", s.handleMotion)
	api.Get("/detections", s.handleDetections)
	api.Get("/prompts", s.handleGetPrompts)
	api.Post("/prompts", s.handleSetPrompts)
	api.Post("/prompts/append", s.handleAppendPrompts)
	api.Get("/vision/health", s.handleVisionHealth)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/status", websocket.New(s.hubHandler(s.statusHub)))
	app.Get("/ws/camera", websocket.New(s.hubHandler(s.cameraHub)))
	app.Get("/ws/annotated", websocket.New(s.hubHandler(s.annotatedHub)))
	app.Get("/ws/transcript", websocket.New(s.hubHandler(s.transcriptHub)))
	app.Get("/ws/tools", websocket.New(s.hubHandler(s.toolsHub)))

	s.app = app
	return s
}

// Start runs the hubs, the relay pumps, and the HTTP listener. Blocks.
func (s *Server) Start() error {
	go s.statusHub.Run()
	go s.cameraHub.Run()
	go s.annotatedHub.Run()
	go s.transcriptHub.Run()
	go s.toolsHub.Run()

	if s.rawFeed != nil {
		go s.relayFrames(s.rawFeed, s.cameraHub)
	}
	if s.annotatedFeed != nil {
		go s.relayFrames(s.annotatedFeed, s.annotatedHub)
	}
	if s.toolNotes != nil {
		go s.relayToolNotes()
	}
	go s.pushStatus()

	s.logger.Info("operator console listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// Shutdown gracefully stops the web server.
func (s *Server) Shutdown() error {
	close(s.stop)
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// relayFrames forwards feed frames to a hub as JSON.
func (s *Server) relayFrames(feed *video.FeedClient, h *hub.Hub) {
	for {
		select {
		case <-s.stop:
			return
		case frame := <-feed.Frames():
			if err := h.BroadcastJSON(frame); err != nil {
				s.logger.Warn("frame relay failed", "error", err)
			}
		}
	}
}

// ToolNoteMessage is the tool activity payload pushed to /ws/tools clients.
type ToolNoteMessage struct {
	Author string `json:"author"`
	Tool   string `json:"tool"`
	Kind   string `json:"kind"`
	Args   string `json:"args,omitempty"`
}

// toolNoteView maps a decoder notification to its wire shape.
func toolNoteView(note adk.ToolNote) ToolNoteMessage {
	kind := "call"
	if note.Kind == adk.NoteResult {
		kind = "result"
	}
	return ToolNoteMessage{
		Author: note.Author,
		Tool:   note.Tool,
		Kind:   kind,
		Args:   note.Args,
	}
}

// relayToolNotes forwards tool activity to /ws/tools clients.
func (s *Server) relayToolNotes() {
	for {
		select {
		case <-s.stop:
			return
		case note := <-s.toolNotes:
			if err := s.toolsHub.BroadcastJSON(toolNoteView(note)); err != nil {
				s.logger.Warn("tool note relay failed", "error", err)
			}
		}
	}
}

// pushStatus broadcasts the status snapshot on a fixed cadence.
func (s *Server) pushStatus() {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.statusHub.BroadcastJSON(s.snapshot())
			s.transcriptHub.BroadcastJSON(s.session.Entries())
		}
	}
}

// snapshot assembles the current status.
func (s *Server) snapshot() Status {
	status := Status{
		Loading:          s.session.Loading(),
		Speaking:         s.session.Speaking(),
		SpeechEnabled:    s.session.SpeechEnabled(),
		CaptureSupported: s.session.CaptureSupported(),
		CaptureArmed:     s.session.Armed(),
		CaptureListening: s.session.Listening(),
	}
	if s.rawFeed != nil {
		status.RobotFeedConnected = s.rawFeed.Connected()
		if frame := s.rawFeed.Latest(); frame != nil {
			status.LeftMotor = frame.LeftMotor
			status.RightMotor = frame.RightMotor
		}
	}
	if s.annotatedFeed != nil {
		status.AnnotatedFeedConnected = s.annotatedFeed.Connected()
	}
	return status
}

// hubHandler registers a websocket connection with a hub and pumps it.
func (s *Server) hubHandler(h *hub.Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		client := hub.NewClient(h, c)
		client.Run() // blocks until the connection closes
	}
}

// requestContext bounds handler calls to collaborators.
func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
