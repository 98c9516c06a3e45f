package robot_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vl-adk/go-console/pkg/robot"
)

func motionServer(t *testing.T, wantPath string, wantQuery map[string]string, status string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != wantPath {
			t.Errorf("expected path %s, got %s", wantPath, r.URL.Path)
		}
		q := r.URL.Query()
		for key, want := range wantQuery {
			if got := q.Get(key); got != want {
				t.Errorf("query %s: expected %q, got %q", key, want, got)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"status": status})
	}))
}

func TestForward(t *testing.T) {
	server := motionServer(t, "/forward/", map[string]string{"speed": "0.7", "duration": "2"}, "moving forward")
	defer server.Close()

	ctrl := robot.NewHTTPController(server.URL)
	status, err := ctrl.Forward(context.Background(), robot.Motion{Speed: 0.7, Duration: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Status != "moving forward" {
		t.Errorf("unexpected status: %q", status.Status)
	}
}

func TestDefaultSpeed(t *testing.T) {
	server := motionServer(t, "/backward/", map[string]string{"speed": "0.5"}, "moving backward")
	defer server.Close()

	ctrl := robot.NewHTTPController(server.URL)
	if _, err := ctrl.Backward(context.Background(), robot.Motion{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDurationOmittedWhenZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("duration") {
			t.Error("zero duration must not be sent")
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "turning left"})
	}))
	defer server.Close()

	ctrl := robot.NewHTTPController(server.URL)
	if _, err := ctrl.Left(context.Background(), robot.Motion{Speed: 0.3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStopHasNoQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stop/" {
			t.Errorf("expected /stop/, got %s", r.URL.Path)
		}
		if r.URL.RawQuery != "" {
			t.Errorf("stop must carry no query, got %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "stopped"})
	}))
	defer server.Close()

	ctrl := robot.NewHTTPController(server.URL)
	status, err := ctrl.Stop(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Status != "stopped" {
		t.Errorf("unexpected status: %q", status.Status)
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "motors offline", http.StatusInternalServerError)
	}))
	defer server.Close()

	ctrl := robot.NewHTTPController(server.URL)
	if _, err := ctrl.Right(context.Background(), robot.Motion{}); err == nil {
		t.Fatal("expected error on 500 response")
	}
}
