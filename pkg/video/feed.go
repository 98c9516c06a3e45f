// Package video consumes the JetBot camera WebSocket feeds.
//
// Two backends publish frames: the robot's raw feed (JPEG plus motor
// telemetry) and the detection backend's annotated feed (JPEG plus
// detections). Both are JSON-over-WebSocket with latest-only semantics on
// the producer side; the client mirrors that by keeping only the newest
// frame. Frames stay JPEG bytes, no decoding happens here.
package video

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vl-adk/go-console/pkg/vision"
)

// DefaultReconnectDelay is the pause between reconnect attempts.
const DefaultReconnectDelay = 2 * time.Second

// Frame is one feed message. The raw feed fills the motor fields; the
// annotated feed fills the detection fields.
type Frame struct {
	// Image is the base64-encoded JPEG.
	Image string `json:"image"`

	// Motor telemetry, raw feed only.
	LeftMotor  float64 `json:"left_motor"`
	RightMotor float64 `json:"right_motor"`

	// Detections, annotated feed only.
	Annotations    []vision.Annotation `json:"annotations,omitempty"`
	DetectionCount int                 `json:"detection_count,omitempty"`
	CurrentPrompts []string            `json:"current_prompts,omitempty"`
	Timestamp      float64             `json:"timestamp,omitempty"`
}

// JPEG decodes the frame image to raw JPEG bytes.
func (f *Frame) JPEG() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(f.Image)
	if err != nil {
		return nil, fmt.Errorf("decode frame image: %w", err)
	}
	return data, nil
}

// FeedClient consumes one WebSocket feed with auto-reconnect.
type FeedClient struct {
	url    string
	name   string
	dialer *websocket.Dialer
	logger *slog.Logger

	reconnectDelay time.Duration

	mu        sync.Mutex
	latest    *Frame
	connected bool

	frames chan *Frame
}

// FeedOption configures a FeedClient.
type FeedOption func(*FeedClient)

// WithReconnectDelay overrides the pause between reconnect attempts.
func WithReconnectDelay(d time.Duration) FeedOption {
	return func(c *FeedClient) {
		c.reconnectDelay = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) FeedOption {
	return func(c *FeedClient) {
		c.logger = logger.With("component", "video."+c.name)
	}
}

// NewFeed creates a feed client for the given ws:// URL. Name labels the
// feed in logs (e.g. "raw", "annotated").
func NewFeed(url, name string, opts ...FeedOption) *FeedClient {
	c := &FeedClient{
		url:            url,
		name:           name,
		dialer:         websocket.DefaultDialer,
		logger:         slog.Default().With("component", "video."+name),
		reconnectDelay: DefaultReconnectDelay,
		frames:         make(chan *Frame, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes the feed until ctx is cancelled, reconnecting on failure.
func (c *FeedClient) Run(ctx context.Context) error {
	for {
		if err := c.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("feed connection lost, reconnecting",
				"url", c.url,
				"delay", c.reconnectDelay,
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

// consume holds one connection open and publishes its frames.
func (c *FeedClient) consume(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.Close()

	c.setConnected(true)
	defer c.setConnected(false)
	c.logger.Info("feed connected", "url", c.url)

	// Unblock the read loop on cancellation.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		c.publish(&frame)
	}
}

// publish records the newest frame and offers it to the channel,
// displacing an unconsumed older one.
func (c *FeedClient) publish(frame *Frame) {
	c.mu.Lock()
	c.latest = frame
	c.mu.Unlock()

	select {
	case c.frames <- frame:
	default:
		select {
		case <-c.frames:
		default:
		}
		select {
		case c.frames <- frame:
		default:
		}
	}
}

// Frames returns the latest-only frame channel.
func (c *FeedClient) Frames() <-chan *Frame {
	return c.frames
}

// Latest returns the most recent frame, nil before the first one.
func (c *FeedClient) Latest() *Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// Connected reports whether the feed currently has a live connection.
func (c *FeedClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *FeedClient) setConnected(connected bool) {
	c.mu.Lock()
	c.connected = connected
	c.mu.Unlock()
}
