// Package audio plays synthesized speech on the operator workstation by
// piping raw audio into an external playback command.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"

	"github.com/vl-adk/go-console/pkg/tts"
)

// Player pipes audio buffers to a local playback command. Playback is
// serialized: one buffer plays at a time.
type Player struct {
	mu     sync.Mutex
	logger *slog.Logger

	// lookPath is swappable for tests.
	lookPath func(string) (string, error)
}

// Option configures a Player.
type Option func(*Player)

// WithLogger sets the player's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Player) { p.logger = logger }
}

// NewPlayer creates a local audio player.
func NewPlayer(opts ...Option) *Player {
	p := &Player{
		logger:   slog.Default().With("component", "audio"),
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play renders one audio buffer and blocks until playback finishes or
// the context is cancelled.
func (p *Player) Play(ctx context.Context, audio []byte, format tts.AudioFormat) error {
	if len(audio) == 0 {
		return nil
	}

	name, args, err := p.playbackCommand(format)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(audio)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("playback via %s: %w", name, err)
	}
	return nil
}

// playbackCommand picks the first available player for the format.
func (p *Player) playbackCommand(format tts.AudioFormat) (string, []string, error) {
	rate := format.SampleRate
	if rate == 0 {
		rate = tts.SampleRateFromEncoding(format.Encoding)
	}
	channels := format.Channels
	if channels == 0 {
		channels = 1
	}

	if format.Encoding == tts.EncodingMP3 {
		candidates := [][]string{
			{"mpg123", "-q", "-"},
			{"ffplay", "-autoexit", "-nodisp", "-loglevel", "quiet", "-i", "-"},
		}
		return p.firstAvailable(candidates)
	}

	// PCM16 little-endian from Gemini.
	candidates := [][]string{
		{"aplay", "-q", "-f", "S16_LE", "-r", strconv.Itoa(rate), "-c", strconv.Itoa(channels), "-"},
		{"ffplay", "-autoexit", "-nodisp", "-loglevel", "quiet",
			"-f", "s16le", "-ar", strconv.Itoa(rate), "-ac", strconv.Itoa(channels), "-i", "-"},
		{"gst-launch-1.0", "-q", "fdsrc", "fd=0", "!",
			"rawaudioparse", "format=pcm", "pcm-format=s16le",
			"sample-rate=" + strconv.Itoa(rate), "num-channels=" + strconv.Itoa(channels), "!",
			"audioconvert", "!", "audioresample", "!", "autoaudiosink"},
	}
	return p.firstAvailable(candidates)
}

func (p *Player) firstAvailable(candidates [][]string) (string, []string, error) {
	for _, c := range candidates {
		if path, err := p.lookPath(c[0]); err == nil {
			return path, c[1:], nil
		}
	}
	return "", nil, fmt.Errorf("no audio playback command available")
}
