package adk

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vl-adk/go-console/internal/httpc"
)

const defaultAppName = "root_agent"

// Client talks to the reasoning service: session bootstrap plus streamed
// run requests. One client maps to one user; each run shares the session so
// the agent system keeps its conversational state server-side.
type Client struct {
	baseURL string
	appName string
	userID  string

	// mu guards sessionID: CreateSession runs on the caller's goroutine
	// while Run executes on reply-cycle goroutines.
	mu        sync.Mutex
	sessionID string

	client *http.Client
	logger *slog.Logger
	notes  chan ToolNote
}

// Option configures a Client.
type Option func(*Client)

// WithAppName overrides the agent application name.
func WithAppName(name string) Option {
	return func(c *Client) { c.appName = name }
}

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a reasoning service client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		appName: defaultAppName,
		userID:  "operator-" + uuid.NewString()[:8],
		// Streamed replies can run long; rely on context for cancellation.
		client: httpc.NewClient(0),
		logger: slog.Default(),
		notes:  make(chan ToolNote, 64),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "adk.client")
	return c
}

// ToolNotes returns the channel carrying fire-and-forget tool activity
// notifications for every decoded frame with tool content.
func (c *Client) ToolNotes() <-chan ToolNote { return c.notes }

// SessionID returns the active session identifier, empty before CreateSession.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// CreateSession establishes a server-side session for this client.
func (c *Client) CreateSession(ctx context.Context) error {
	id := uuid.NewString()
	url := fmt.Sprintf("%s/apps/%s/users/%s/sessions/%s", c.baseURL, c.appName, c.userID, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return fmt.Errorf("create session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
	c.logger.Info("session created", "session_id", id)
	return nil
}

// runRequest is the streamed run payload.
type runRequest struct {
	AppName    string     `json:"appName"`
	UserID     string     `json:"userId"`
	SessionID  string     `json:"sessionId"`
	NewMessage runMessage `json:"newMessage"`
	Streaming  bool       `json:"streaming"`
}

type runMessage struct {
	Role  string           `json:"role"`
	Parts []runMessagePart `json:"parts"`
}

type runMessagePart struct {
	Text string `json:"text"`
}

// Run submits a user message and returns the event stream for the reply
// cycle. The stream owns a fresh decoder, so dedup state starts clean for
// every request.
func (c *Client) Run(ctx context.Context, text string) (*Stream, error) {
	session := c.SessionID()
	if session == "" {
		return nil, ErrNoSession
	}

	payload := runRequest{
		AppName:   c.appName,
		UserID:    c.userID,
		SessionID: session,
		NewMessage: runMessage{
			Role:  "user",
			Parts: []runMessagePart{{Text: text}},
		},
		Streaming: true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal run payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run_sse", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("run request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(msg)}
	}

	c.logger.Debug("run stream opened",
		"session_id", session,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return &Stream{
		reader:  bufio.NewReader(resp.Body),
		body:    resp.Body,
		decoder: NewDecoder(c.logger, c.notes),
	}, nil
}

// Stream yields decoded events for one reply cycle.
// Callers must Close the stream when done.
type Stream struct {
	reader  *bufio.Reader
	body    io.ReadCloser
	decoder *Decoder

	// pending holds events decoded but not yet returned; a single chunk can
	// carry multiple frames.
	pending []*Event
	done    bool
}

// Recv returns the next event, or io.EOF when the stream completes.
// End-of-stream is signaled by transport closure.
func (s *Stream) Recv() (*Event, error) {
	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}
		if s.done {
			return nil, io.EOF
		}

		line, err := s.reader.ReadBytes('\n')
		if len(line) > 0 {
			s.pending = append(s.pending, s.decoder.Decode(line)...)
		}
		if err == io.EOF {
			s.pending = append(s.pending, s.decoder.Flush()...)
			s.done = true
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read stream: %w", err)
		}
	}
}

// Close stops the stream and releases the underlying connection.
func (s *Stream) Close() error {
	s.done = true
	return s.body.Close()
}
