package tts_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vl-adk/go-console/pkg/tts"
)

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	t.Run("Synthesize returns audio", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, tts.Request{Text: "Hello world"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Audio) == 0 {
			t.Error("expected audio data")
		}
		if result.CharCount != 11 {
			t.Errorf("expected 11 chars, got %d", result.CharCount)
		}
		if result.Format.SampleRate != 24000 {
			t.Errorf("expected 24000 sample rate, got %d", result.Format.SampleRate)
		}
	})

	t.Run("Health returns nil", func(t *testing.T) {
		if err := mock.Health(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Calls record text and voice", func(t *testing.T) {
		mock.Reset()
		_, _ = mock.Synthesize(ctx, tts.Request{Text: "On my way", Voice: "Puck"})
		last := mock.LastCall()
		if last == nil {
			t.Fatal("expected a recorded call")
		}
		if last.Text != "On my way" || last.Voice != "Puck" {
			t.Errorf("unexpected call record: %+v", last)
		}
		if mock.CallCount("Synthesize") != 1 {
			t.Errorf("expected 1 Synthesize call, got %d", mock.CallCount("Synthesize"))
		}
	})

	t.Run("Reset clears calls", func(t *testing.T) {
		mock.Reset()
		if len(mock.Calls()) != 0 {
			t.Error("expected calls to be cleared")
		}
	})
}

func TestMockWithSynthesizeError(t *testing.T) {
	testErr := errors.New("test error")
	mock := tts.WithSynthesizeError(testErr)
	ctx := context.Background()

	t.Run("Synthesize returns error", func(t *testing.T) {
		_, err := mock.Synthesize(ctx, tts.Request{Text: "Hello"})
		if err == nil {
			t.Error("expected error")
		}
		if !errors.Is(err, testErr) {
			t.Errorf("expected test error, got %v", err)
		}
	})

	t.Run("Health returns error", func(t *testing.T) {
		if err := mock.Health(ctx); err == nil {
			t.Error("expected error")
		}
	})
}

func TestMockWithLatency(t *testing.T) {
	mock := tts.NewMock()
	mock = tts.WithLatency(mock, 50*time.Millisecond)
	ctx := context.Background()

	t.Run("Synthesize has latency", func(t *testing.T) {
		start := time.Now()
		_, err := mock.Synthesize(ctx, tts.Request{Text: "Hello"})
		elapsed := time.Since(start)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed < 50*time.Millisecond {
			t.Errorf("expected at least 50ms latency, got %v", elapsed)
		}
	})

	t.Run("Context cancellation works", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := mock.Synthesize(ctx, tts.Request{Text: "Hello"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestVoiceFor(t *testing.T) {
	tests := []struct {
		author string
		want   string
	}{
		{"pilot", "Puck"},
		{"director", "Kore"},
		{"observer", "Leda"},
		{"mission_controller", "Fenrir"},
		{"", tts.DefaultVoice},
		{"someone_new", tts.DefaultVoice},
	}

	for _, tt := range tests {
		if got := tts.VoiceFor(tt.author); got != tt.want {
			t.Errorf("VoiceFor(%q) = %q, want %q", tt.author, got, tt.want)
		}
	}
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("requires at least one provider", func(t *testing.T) {
		_, err := tts.NewChain()
		if !errors.Is(err, tts.ErrProviderUnavailable) {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})

	t.Run("first success wins", func(t *testing.T) {
		primary := tts.NewMock()
		fallback := tts.NewMock()
		chain, err := tts.NewChain(primary, fallback)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := chain.Synthesize(ctx, tts.Request{Text: "hi"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fallback.CallCount("Synthesize") != 0 {
			t.Error("fallback should not be called when primary succeeds")
		}
	})

	t.Run("falls through to next provider", func(t *testing.T) {
		failing := tts.WithSynthesizeError(errors.New("down"))
		fallback := tts.NewMock()
		chain, _ := tts.NewChain(failing, fallback)

		result, err := chain.Synthesize(ctx, tts.Request{Text: "hi"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Audio) == 0 {
			t.Error("expected audio from fallback")
		}
	})

	t.Run("aggregates all failures", func(t *testing.T) {
		errA := errors.New("a down")
		errB := errors.New("b down")
		chain, _ := tts.NewChain(tts.WithSynthesizeError(errA), tts.WithSynthesizeError(errB))

		_, err := chain.Synthesize(ctx, tts.Request{Text: "hi"})
		var chainErr *tts.ChainError
		if !errors.As(err, &chainErr) {
			t.Fatalf("expected ChainError, got %v", err)
		}
		if len(chainErr.Errors) != 2 {
			t.Errorf("expected 2 errors, got %d", len(chainErr.Errors))
		}
		if !errors.Is(err, errB) {
			t.Error("Unwrap should expose the last error")
		}
	})
}

func TestGeminiSynthesize(t *testing.T) {
	pcm := make([]byte, 48000) // one second at 24kHz PCM16

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
			GenerationConfig struct {
				ResponseModalities []string `json:"responseModalities"`
				SpeechConfig       struct {
					VoiceConfig struct {
						PrebuiltVoiceConfig struct {
							VoiceName string `json:"voiceName"`
						} `json:"prebuiltVoiceConfig"`
					} `json:"voiceConfig"`
				} `json:"speechConfig"`
			} `json:"generationConfig"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if got := req.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName; got != "Puck" {
			t.Errorf("expected voice Puck, got %q", got)
		}

		resp := map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{
						"inlineData": map[string]any{
							"mimeType": "audio/L16;codec=pcm;rate=24000",
							"data":     base64.StdEncoding.EncodeToString(pcm),
						},
					}},
				},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := tts.NewGemini(
		tts.WithAPIKey("test-key"),
		tts.WithBaseURL(server.URL),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer provider.Close()

	result, err := provider.Synthesize(context.Background(), tts.Request{Text: "Moving forward", Voice: "Puck"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Audio) != len(pcm) {
		t.Errorf("expected %d audio bytes, got %d", len(pcm), len(result.Audio))
	}
	if result.Format.Encoding != tts.EncodingPCM24 {
		t.Errorf("expected PCM24 encoding, got %s", result.Format.Encoding)
	}
	if result.Duration != time.Second {
		t.Errorf("expected 1s duration, got %v", result.Duration)
	}
}

func TestGeminiErrors(t *testing.T) {
	t.Run("requires API key", func(t *testing.T) {
		_, err := tts.NewGemini()
		if !errors.Is(err, tts.ErrNoAPIKey) {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("rejects empty text", func(t *testing.T) {
		provider, _ := tts.NewGemini(tts.WithAPIKey("k"))
		_, err := provider.Synthesize(context.Background(), tts.Request{})
		if !errors.Is(err, tts.ErrEmptyText) {
			t.Errorf("expected ErrEmptyText, got %v", err)
		}
	})

	t.Run("maps quota exhaustion", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"code":429,"message":"quota exhausted","status":"RESOURCE_EXHAUSTED","details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"21s"}]}}`))
		}))
		defer server.Close()

		provider, _ := tts.NewGemini(
			tts.WithAPIKey("k"),
			tts.WithBaseURL(server.URL),
			tts.WithRetry(0, 0),
		)
		_, err := provider.Synthesize(context.Background(), tts.Request{Text: "hi"})
		if !errors.Is(err, tts.ErrQuotaExceeded) {
			t.Fatalf("expected quota error, got %v", err)
		}
		var quotaErr *tts.QuotaError
		if !errors.As(err, &quotaErr) {
			t.Fatalf("expected QuotaError, got %T", err)
		}
		if quotaErr.RetryAfter != 21*time.Second {
			t.Errorf("expected 21s retry hint, got %v", quotaErr.RetryAfter)
		}
		if !tts.IsDisablingError(err) {
			t.Error("quota error should count toward disabling playback")
		}
	})

	t.Run("maps server errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`))
		}))
		defer server.Close()

		provider, _ := tts.NewGemini(
			tts.WithAPIKey("k"),
			tts.WithBaseURL(server.URL),
			tts.WithRetry(0, 0),
		)
		_, err := provider.Synthesize(context.Background(), tts.Request{Text: "hi"})
		var apiErr *tts.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if !apiErr.IsServerError() {
			t.Error("expected server error classification")
		}
		if !tts.IsDisablingError(err) {
			t.Error("server error should count toward disabling playback")
		}
	})

	t.Run("retries server errors", func(t *testing.T) {
		var attempts int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			if attempts == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			resp := map[string]any{
				"candidates": []map[string]any{{
					"content": map[string]any{
						"parts": []map[string]any{{
							"inlineData": map[string]any{"data": base64.StdEncoding.EncodeToString([]byte{0, 0})},
						}},
					},
				}},
			}
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		provider, _ := tts.NewGemini(
			tts.WithAPIKey("k"),
			tts.WithBaseURL(server.URL),
			tts.WithRetry(2, time.Millisecond),
		)
		if _, err := provider.Synthesize(context.Background(), tts.Request{Text: "hi"}); err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if attempts != 2 {
			t.Errorf("expected 2 attempts, got %d", attempts)
		}
	})
}

func TestIsDisablingError(t *testing.T) {
	if tts.IsDisablingError(errors.New("plain")) {
		t.Error("plain errors should not disable playback")
	}
	if tts.IsDisablingError(nil) {
		t.Error("nil should not disable playback")
	}
	if !tts.IsDisablingError(&tts.APIError{StatusCode: 429}) {
		t.Error("rate limits should disable playback")
	}
	if tts.IsDisablingError(&tts.APIError{StatusCode: 400}) {
		t.Error("client errors should not disable playback")
	}
}
