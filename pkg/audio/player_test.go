package audio

import (
	"errors"
	"strings"
	"testing"

	"github.com/vl-adk/go-console/pkg/tts"
)

func stubLookPath(available ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, a := range available {
			if a == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
}

func TestPlaybackCommandPCM(t *testing.T) {
	p := NewPlayer()
	p.lookPath = stubLookPath("aplay")

	name, args, err := p.playbackCommand(tts.AudioFormat{
		Encoding: tts.EncodingPCM24, SampleRate: 24000, Channels: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(name, "aplay") {
		t.Errorf("expected aplay, got %s", name)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-r 24000") || !strings.Contains(joined, "-c 1") {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestPlaybackCommandFallsBack(t *testing.T) {
	p := NewPlayer()
	p.lookPath = stubLookPath("ffplay")

	name, _, err := p.playbackCommand(tts.AudioFormat{Encoding: tts.EncodingPCM24})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(name, "ffplay") {
		t.Errorf("expected ffplay fallback, got %s", name)
	}
}

func TestPlaybackCommandMP3(t *testing.T) {
	p := NewPlayer()
	p.lookPath = stubLookPath("mpg123", "aplay")

	name, _, err := p.playbackCommand(tts.AudioFormat{Encoding: tts.EncodingMP3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(name, "mpg123") {
		t.Errorf("expected mpg123 for mp3, got %s", name)
	}
}

func TestPlaybackCommandNoneAvailable(t *testing.T) {
	p := NewPlayer()
	p.lookPath = stubLookPath()

	if _, _, err := p.playbackCommand(tts.AudioFormat{Encoding: tts.EncodingPCM24}); err == nil {
		t.Error("expected error with no players installed")
	}
}

func TestPlayEmptyBufferIsNoOp(t *testing.T) {
	p := NewPlayer()
	p.lookPath = stubLookPath()

	// Must not even resolve a command for an empty buffer.
	if err := p.Play(t.Context(), nil, tts.AudioFormat{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
