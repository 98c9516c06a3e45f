// Command console runs the headless operator console server: it bridges
// the reasoning service, the robot motion API, the vision backend, and
// both camera feeds behind a single web API with live websocket pushes.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vl-adk/go-console/internal/config"
	"github.com/vl-adk/go-console/internal/log"
	"github.com/vl-adk/go-console/pkg/adk"
	"github.com/vl-adk/go-console/pkg/audio"
	"github.com/vl-adk/go-console/pkg/console"
	"github.com/vl-adk/go-console/pkg/robot"
	"github.com/vl-adk/go-console/pkg/speech"
	"github.com/vl-adk/go-console/pkg/tts"
	"github.com/vl-adk/go-console/pkg/video"
	"github.com/vl-adk/go-console/pkg/vision"
	"github.com/vl-adk/go-console/pkg/web"
)

func main() {
	config.LoadDotenv()
	log.Init(config.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, speechOK := buildSpeech(ctx)
	defer provider.Close()

	player := audio.NewPlayer()
	queue := speech.New(provider, speech.WithSink(
		func(ctx context.Context, item speech.Item, res *tts.AudioResult) error {
			return player.Play(ctx, res.Audio, res.Format)
		},
	))
	if !speechOK {
		queue.SetEnabled(false)
	}

	client := adk.NewClient(config.AgentURL())
	// The headless server has no local microphone pipeline; voice capture
	// stays reported as unsupported.
	session := console.NewWithClient(client, queue, nil)
	defer session.Close()

	if err := session.Start(ctx); err != nil {
		log.Warn("reasoning session unavailable at startup", "error", err)
	}

	rawFeed := video.NewFeed(config.RobotFeedURL(), "robot")
	annotatedFeed := video.NewFeed(config.VisionFeedURL(), "annotated")
	go rawFeed.Run(ctx)
	go annotatedFeed.Run(ctx)

	server := web.NewServer(web.Config{
		Port:          config.ConsolePort(),
		Session:       session,
		Motion:        robot.NewHTTPController(config.RobotAPIURL()),
		Vision:        vision.NewClient(config.VisionAPIURL()),
		RawFeed:       rawFeed,
		AnnotatedFeed: annotatedFeed,
		ToolNotes:     client.ToolNotes(),
	})

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			log.Warn("shutdown", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		log.Error("console server exited", "error", err)
		os.Exit(1)
	}
}

// buildSpeech assembles the synthesis chain from available credentials:
// Gemini TTS on API key, Cloud TTS on application default credentials.
// With neither, playback starts disabled over a silent provider.
func buildSpeech(ctx context.Context) (tts.Provider, bool) {
	var providers []tts.Provider

	if key := config.GoogleAPIKey(); key != "" {
		gemini, err := tts.NewGemini(tts.WithAPIKey(key))
		if err != nil {
			log.Warn("gemini tts unavailable", "error", err)
		} else {
			providers = append(providers, gemini)
		}
	}

	if cloud, err := tts.NewGoogleCloud(ctx); err != nil {
		log.Debug("cloud tts unavailable", "error", err)
	} else {
		providers = append(providers, cloud)
	}

	chain, err := tts.NewChain(providers...)
	if err != nil {
		log.Warn("no speech providers configured, playback disabled")
		return tts.NewMock(), false
	}
	return chain, true
}
