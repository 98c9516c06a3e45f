// Package tts provides a unified interface for text-to-speech providers.
//
// The package supports the Gemini generative TTS API (API key) and Google
// Cloud Text-to-Speech (application default credentials). All providers
// implement the Provider interface, enabling seamless switching without
// changing caller code.
//
// Example usage:
//
//	provider, _ := tts.NewGemini(
//	    tts.WithAPIKey(os.Getenv("GOOGLE_API_KEY")),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, tts.Request{
//	    Text:  "Obstacle ahead, rerouting.",
//	    Voice: tts.VoiceFor("pilot"),
//	})
//	// result.Audio contains PCM audio bytes
package tts

import (
	"context"
	"time"
)

// Request is one synthesis request: the text to render and the voice to
// render it with.
type Request struct {
	// Text is the plain text to synthesize.
	Text string

	// Voice is the synthesis voice name. Empty selects the provider default.
	Voice string
}

// Provider defines the TTS provider interface.
// All implementations must satisfy this interface for seamless provider switching.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	Synthesize(ctx context.Context, req Request) (*AudioResult, error)

	// Health checks provider connectivity and credential validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the raw audio data in the specified format.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the estimated audio playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the request round-trip time in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies the audio codec (e.g., pcm_24000, mp3_44100).
	Encoding Encoding

	// SampleRate in Hz (e.g., 24000, 44100).
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitDepth for PCM formats (e.g., 16 for PCM16).
	BitDepth int
}

// Encoding represents audio encoding types.
type Encoding string

const (
	// EncodingPCM24 is 24kHz mono PCM16, the Gemini TTS output format.
	EncodingPCM24 Encoding = "pcm_24000"

	// EncodingMP3 is MP3 at 44.1kHz, the Cloud TTS default.
	EncodingMP3 Encoding = "mp3_44100"
)

// SampleRateFromEncoding extracts the sample rate from an encoding type.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM24:
		return 24000
	case EncodingMP3:
		return 44100
	default:
		return 24000
	}
}

// estimatePCMDuration estimates playback time for PCM16 mono audio.
func estimatePCMDuration(byteLen, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := byteLen / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
