package vision_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vl-adk/go-console/pkg/vision"
)

func TestDetect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/yolo/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		words := r.URL.Query()["words"]
		if len(words) != 2 || words[0] != "person" || words[1] != "bottle" {
			t.Errorf("unexpected words: %v", words)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"annotations": []map[string]any{{
				"class":        "person",
				"confidence":   0.91,
				"bbox":         []float64{10, 20, 110, 220},
				"center":       []float64{60, 120},
				"rotation_deg": -12.5,
			}},
			"count":           1,
			"image_shape":     []int{480, 640, 3},
			"current_prompts": []string{"person", "bottle"},
		})
	}))
	defer server.Close()

	client := vision.NewClient(server.URL)
	result, err := client.Detect(context.Background(), []string{"person", "bottle"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Count != 1 || len(result.Annotations) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	ann := result.Annotations[0]
	if ann.Class != "person" || ann.RotationDeg != -12.5 {
		t.Errorf("unexpected annotation: %+v", ann)
	}
}

func TestDetectBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error":       "Image data is stale",
			"annotations": []any{},
			"count":       0,
			"age_seconds": 7.2,
		})
	}))
	defer server.Close()

	client := vision.NewClient(server.URL)
	result, err := client.Detect(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != "Image data is stale" {
		t.Errorf("expected backend error surfaced, got %+v", result)
	}
}

func TestSetPrompts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prompts/" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var prompts []string
		if err := json.NewDecoder(r.Body).Decode(&prompts); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success":         true,
			"current_prompts": prompts,
			"message":         "ok",
		})
	}))
	defer server.Close()

	client := vision.NewClient(server.URL)
	result, err := client.SetPrompts(context.Background(), []string{"red ball"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || len(result.CurrentPrompts) != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestAppendPrompts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/append-prompts/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success":         true,
			"current_prompts": []string{"person", "red ball"},
		})
	}))
	defer server.Close()

	client := vision.NewClient(server.URL)
	result, err := client.AppendPrompts(context.Background(), []string{"red ball"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.CurrentPrompts) != 2 {
		t.Errorf("unexpected prompts: %v", result.CurrentPrompts)
	}
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":              "healthy",
			"model_loaded":        true,
			"model_type":          "YOLO-E",
			"websocket_connected": true,
		})
	}))
	defer server.Close()

	client := vision.NewClient(server.URL)
	health, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if health.Status != "healthy" || !health.ModelLoaded {
		t.Errorf("unexpected health: %+v", health)
	}
}

func TestHTTPErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client := vision.NewClient(server.URL)
	if _, err := client.GetPrompts(context.Background()); err == nil {
		t.Fatal("expected error on 502 response")
	}
}
