package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"
)

const providerGoogle = "google-cloud"

// cloudVoicePrefix maps the shared voice names onto the Chirp 3 HD
// voice family, which uses the same names as the Gemini TTS API.
const cloudVoicePrefix = "en-US-Chirp3-HD-"

// GoogleCloud implements Provider for the Google Cloud Text-to-Speech API.
// It authenticates with application default credentials rather than an API
// key, making it the natural fallback when the Gemini key hits its quota.
// Output is MP3 at the service default sample rate.
type GoogleCloud struct {
	config  *Config
	service *texttospeech.Service
	logger  *slog.Logger
}

// NewGoogleCloud creates a Cloud TTS provider using application default
// credentials. No API key is required.
func NewGoogleCloud(ctx context.Context, opts ...Option) (*GoogleCloud, error) {
	cfg := DefaultConfig()
	// Credentials come from the environment, so skip APIKey validation.
	cfg.Apply(opts...)

	ts, err := google.DefaultTokenSource(ctx, texttospeech.CloudPlatformScope)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("default credentials: %w", err))
	}

	svcOpts := []option.ClientOption{option.WithTokenSource(ts)}
	if cfg.BaseURL != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(cfg.BaseURL))
	}

	service, err := texttospeech.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("create service: %w", err))
	}

	return &GoogleCloud{
		config:  cfg,
		service: service,
		logger:  cfg.Logger.With("component", "tts.google"),
	}, nil
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (g *GoogleCloud) Synthesize(ctx context.Context, req Request) (*AudioResult, error) {
	if req.Text == "" {
		return nil, WrapError(providerGoogle, ErrEmptyText)
	}

	voice := req.Voice
	if voice == "" {
		voice = g.config.DefaultVoice
	}

	start := time.Now()

	call := g.service.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: req.Text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: "en-US",
			Name:         cloudVoicePrefix + voice,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding: "MP3",
		},
	})

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, g.mapError(err)
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("decode audio: %w", err))
	}

	latency := time.Since(start).Milliseconds()
	g.logger.Debug("synthesized audio",
		"chars", len(req.Text),
		"bytes", len(audio),
		"voice", voice,
		"latency_ms", latency,
	)

	return &AudioResult{
		Audio: audio,
		Format: AudioFormat{
			Encoding:   EncodingMP3,
			SampleRate: SampleRateFromEncoding(EncodingMP3),
			Channels:   1,
		},
		CharCount: len(req.Text),
		LatencyMs: latency,
	}, nil
}

// Health verifies credentials by listing available voices.
func (g *GoogleCloud) Health(ctx context.Context) error {
	_, err := g.service.Voices.List().LanguageCode("en-US").Context(ctx).Do()
	if err != nil {
		return g.mapError(err)
	}
	return nil
}

// Close releases resources. The generated service holds none.
func (g *GoogleCloud) Close() error {
	return nil
}

// mapError converts googleapi errors into the package taxonomy.
func (g *GoogleCloud) mapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 {
			return &QuotaError{
				Provider: providerGoogle,
				Message:  apiErr.Message,
			}
		}
		return &APIError{
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
			Provider:   providerGoogle,
		}
	}
	return WrapError(providerGoogle, err)
}

// Verify GoogleCloud implements Provider at compile time.
var _ Provider = (*GoogleCloud)(nil)
