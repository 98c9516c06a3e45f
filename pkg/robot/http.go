package robot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vl-adk/go-console/internal/httpc"
)

// commandTimeout keeps motion commands snappy; a stuck backend must not
// wedge the operator console.
const commandTimeout = 5 * time.Second

// HTTPController implements Controller against the JetBot motion API.
type HTTPController struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPController creates a motion client for the given base URL
// (e.g. http://jetbot.local:8889).
func NewHTTPController(baseURL string) *HTTPController {
	return &HTTPController{
		baseURL: baseURL,
		client:  httpc.NewClient(commandTimeout),
		logger:  slog.Default().With("component", "robot"),
	}
}

// Forward drives both motors forward.
func (r *HTTPController) Forward(ctx context.Context, m Motion) (*Status, error) {
	return r.command(ctx, "/forward/", &m)
}

// Backward drives both motors in reverse.
func (r *HTTPController) Backward(ctx context.Context, m Motion) (*Status, error) {
	return r.command(ctx, "/backward/", &m)
}

// Left rotates in place counter-clockwise.
func (r *HTTPController) Left(ctx context.Context, m Motion) (*Status, error) {
	return r.command(ctx, "/left/", &m)
}

// Right rotates in place clockwise.
func (r *HTTPController) Right(ctx context.Context, m Motion) (*Status, error) {
	return r.command(ctx, "/right/", &m)
}

// Stop halts both motors immediately.
func (r *HTTPController) Stop(ctx context.Context) (*Status, error) {
	return r.command(ctx, "/stop/", nil)
}

// command POSTs a motion endpoint with speed/duration query parameters.
func (r *HTTPController) command(ctx context.Context, path string, m *Motion) (*Status, error) {
	endpoint := r.baseURL + path
	if m != nil {
		speed := m.Speed
		if speed == 0 {
			speed = DefaultSpeed
		}
		q := url.Values{}
		q.Set("speed", strconv.FormatFloat(speed, 'f', -1, 64))
		if m.Duration > 0 {
			q.Set("duration", strconv.FormatFloat(m.Duration, 'f', -1, 64))
		}
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("motion command %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("motion command %s: status %d: %s", path, resp.StatusCode, body)
	}

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode motion response: %w", err)
	}

	r.logger.Debug("motion command acknowledged", "path", path, "status", status.Status)
	return &status, nil
}
