// Package vision provides a client for the YOLO-E open-vocabulary detection
// backend: detection queries, prompt management, and health checks.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/vl-adk/go-console/internal/httpc"
)

// Annotation is one detection on the latest camera frame. RotationDeg is
// the turn needed to center the detection: positive is clockwise (right),
// negative counter-clockwise (left).
type Annotation struct {
	Class       string    `json:"class"`
	Confidence  float64   `json:"confidence"`
	BBox        []float64 `json:"bbox"`
	Center      []float64 `json:"center"`
	Area        float64   `json:"area"`
	PromptIndex int       `json:"prompt_index"`
	RotationDeg float64   `json:"rotation_deg"`
}

// DetectionResult is the backend's answer to a detection query. A non-empty
// Error means the backend could not run detection (no frame, stale frame).
type DetectionResult struct {
	Annotations    []Annotation `json:"annotations"`
	Count          int          `json:"count"`
	Timestamp      float64      `json:"timestamp"`
	ImageShape     []int        `json:"image_shape"`
	CurrentPrompts []string     `json:"current_prompts"`
	Error          string       `json:"error,omitempty"`
	AgeSeconds     float64      `json:"age_seconds,omitempty"`
}

// PromptResult acknowledges a prompt update.
type PromptResult struct {
	Success        bool     `json:"success"`
	CurrentPrompts []string `json:"current_prompts"`
	Message        string   `json:"message"`
}

// Prompts is the currently active prompt set.
type Prompts struct {
	CurrentPrompts []string `json:"current_prompts"`
	ModelLoaded    bool     `json:"model_loaded"`
	Device         string   `json:"device"`
}

// Health is the backend health report.
type Health struct {
	Status             string   `json:"status"`
	ModelLoaded        bool     `json:"model_loaded"`
	ModelType          string   `json:"model_type"`
	CurrentPrompts     []string `json:"current_prompts"`
	Device             string   `json:"device"`
	LatestFrameAge     *float64 `json:"latest_frame_age"`
	WebSocketConnected bool     `json:"websocket_connected"`
}

// Client talks to the YOLO-E backend.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a vision client for the given base URL
// (e.g. http://localhost:8001).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  httpc.NewClient(httpc.DefaultTimeout),
		logger:  slog.Default().With("component", "vision"),
	}
}

// Detect runs detection on the latest frame, optionally narrowed to the
// given target words.
func (c *Client) Detect(ctx context.Context, words []string) (*DetectionResult, error) {
	endpoint := c.baseURL + "/yolo/"
	if len(words) > 0 {
		q := url.Values{}
		for _, w := range words {
			q.Add("words", w)
		}
		endpoint += "?" + q.Encode()
	}

	var result DetectionResult
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SetPrompts replaces the active open-vocabulary prompt set.
func (c *Client) SetPrompts(ctx context.Context, prompts []string) (*PromptResult, error) {
	var result PromptResult
	if err := c.postJSON(ctx, c.baseURL+"/prompts/", prompts, &result); err != nil {
		return nil, err
	}
	c.logger.Debug("prompts set", "success", result.Success, "prompts", result.CurrentPrompts)
	return &result, nil
}

// AppendPrompts adds prompts to the active set.
func (c *Client) AppendPrompts(ctx context.Context, prompts []string) (*PromptResult, error) {
	var result PromptResult
	if err := c.postJSON(ctx, c.baseURL+"/append-prompts/", prompts, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPrompts returns the currently active prompts.
func (c *Client) GetPrompts(ctx context.Context) (*Prompts, error) {
	var result Prompts
	if err := c.getJSON(ctx, c.baseURL+"/prompts/", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health checks backend health and frame freshness.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var result Health
	if err := c.getJSON(ctx, c.baseURL+"/health/", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("vision request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("vision request %s: status %d: %s", req.URL.Path, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode vision response: %w", err)
	}
	return nil
}
