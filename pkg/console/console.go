// Package console orchestrates one conversational session with the
// reasoning service.
//
// It wires the event stream into the transcript accumulator, hands
// finalized reply segments to the speech playback queue, and feeds the
// combined "system active" signal (reply streaming or audio in flight) to
// the capture arbiter. Operator submissions, typed or captured, start a new
// reply cycle.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/vl-adk/go-console/pkg/adk"
	"github.com/vl-adk/go-console/pkg/capture"
	"github.com/vl-adk/go-console/pkg/speech"
	"github.com/vl-adk/go-console/pkg/transcript"
)

// Stream yields decoded events until io.EOF.
type Stream interface {
	Recv() (*adk.Event, error)
	Close() error
}

// Runner is the slice of the reasoning-service client the session needs.
type Runner interface {
	CreateSession(ctx context.Context) error
	Run(ctx context.Context, text string) (Stream, error)
}

// adkRunner adapts *adk.Client to the Runner interface.
type adkRunner struct {
	client *adk.Client
}

func (r adkRunner) CreateSession(ctx context.Context) error {
	return r.client.CreateSession(ctx)
}

func (r adkRunner) Run(ctx context.Context, text string) (Stream, error) {
	stream, err := r.client.Run(ctx, text)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// Session is the conversational session orchestrator. All methods are safe
// for concurrent use.
type Session struct {
	runner  Runner
	queue   *speech.Queue
	arbiter *capture.Arbiter
	acc     *transcript.Accumulator
	logger  *slog.Logger

	captureOpts []capture.Option

	mu       sync.Mutex
	loading  bool
	speaking bool
	cycle    uint64
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger.With("component", "console")
	}
}

// WithCaptureOptions forwards options to the capture arbiter.
func WithCaptureOptions(opts ...capture.Option) Option {
	return func(s *Session) {
		s.captureOpts = append(s.captureOpts, opts...)
	}
}

// New creates a session over the given runner, playback queue, and capture
// device. The queue must not have been started; the session wires its
// activity callbacks and starts it.
func New(runner Runner, queue *speech.Queue, device capture.Device, opts ...Option) *Session {
	s := &Session{
		runner: runner,
		queue:  queue,
		logger: slog.Default().With("component", "console"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.acc = transcript.NewAccumulator(func(text, author string) {
		queue.Enqueue(speech.Item{Text: text, Author: author})
	})

	s.arbiter = capture.New(device, func(text string) {
		// Captured utterances enter the same path as typed ones.
		go s.Submit(context.Background(), text)
	}, s.captureOpts...)

	queue.SetSpeakingObserver(s.onSpeakingChanged)
	queue.Start()
	return s
}

// NewWithClient creates a session over an *adk.Client.
func NewWithClient(client *adk.Client, queue *speech.Queue, device capture.Device, opts ...Option) *Session {
	return New(adkRunner{client: client}, queue, device, opts...)
}

// Start creates the upstream reasoning session.
func (s *Session) Start(ctx context.Context) error {
	if err := s.runner.CreateSession(ctx); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Submit sends an operator message and starts a new reply cycle. A reply
// still streaming from the previous cycle is abandoned: its late frames are
// ignored once they arrive.
func (s *Session) Submit(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	s.cycle++
	cycle := s.cycle
	s.loading = true
	s.mu.Unlock()

	s.acc.AddUser(text)
	s.updateActivity()

	go s.runCycle(ctx, cycle, text)
}

// runCycle streams one reply into the transcript.
func (s *Session) runCycle(ctx context.Context, cycle uint64, text string) {
	defer s.finishCycle(cycle)

	stream, err := s.runner.Run(ctx, text)
	if err != nil {
		s.reportTransportError(cycle, err)
		return
	}
	defer stream.Close()

	for {
		ev, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if s.currentCycle(cycle) {
					s.acc.FinishStream()
				}
				return
			}
			s.reportTransportError(cycle, err)
			return
		}
		if !s.currentCycle(cycle) {
			// A newer submission abandoned this reply.
			return
		}
		s.acc.Consume(ev)
	}
}

// reportTransportError lands a single synthetic transcript entry and treats
// the reply as finalized.
func (s *Session) reportTransportError(cycle uint64, err error) {
	s.logger.Warn("reply stream failed", "error", err)
	if !s.currentCycle(cycle) {
		return
	}
	s.acc.FinishStream()
	s.acc.AddNotice(fmt.Sprintf("Error: %v", err))
}

// finishCycle clears the loading flag if this cycle is still current.
func (s *Session) finishCycle(cycle uint64) {
	s.mu.Lock()
	if s.cycle == cycle {
		s.loading = false
	}
	s.mu.Unlock()
	s.updateActivity()
}

func (s *Session) currentCycle(cycle uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle == cycle
}

// onSpeakingChanged tracks the playback in-flight flag.
func (s *Session) onSpeakingChanged(speaking bool) {
	s.mu.Lock()
	s.speaking = speaking
	s.mu.Unlock()
	s.updateActivity()
}

// updateActivity pushes the combined activity signal into the arbiter.
// System active means a reply is streaming or audio is in flight.
func (s *Session) updateActivity() {
	s.mu.Lock()
	active := s.loading || s.speaking
	s.mu.Unlock()
	s.arbiter.SetSystemActive(active)
}

// Reset starts a fresh conversational session: new upstream session, empty
// transcript, disarmed capture, flushed playback queue. The speech enabled
// toggle survives.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.cycle++
	s.loading = false
	s.mu.Unlock()

	s.arbiter.Reset()
	s.queue.Flush()
	s.acc.Reset()
	s.updateActivity()

	if err := s.runner.CreateSession(ctx); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Entries returns a snapshot of the transcript.
func (s *Session) Entries() []transcript.Entry {
	return s.acc.Entries()
}

// Len reports the number of transcript entries.
func (s *Session) Len() int {
	return s.acc.Len()
}

// Loading reports whether a reply is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Speaking reports whether audio is in flight.
func (s *Session) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// ToggleCapture flips the mic armed preference.
func (s *Session) ToggleCapture() {
	s.arbiter.Toggle()
}

// Armed reports the mic armed preference.
func (s *Session) Armed() bool {
	return s.arbiter.Armed()
}

// Listening reports whether the capture device is live.
func (s *Session) Listening() bool {
	return s.arbiter.Listening()
}

// CaptureSupported reports the capture capability flag.
func (s *Session) CaptureSupported() bool {
	return s.arbiter.Supported()
}

// CapturePartial returns the live captured transcript.
func (s *Session) CapturePartial() string {
	return s.arbiter.Partial()
}

// UpdateCaptureTranscript feeds the device's live transcript to the arbiter.
func (s *Session) UpdateCaptureTranscript(text string) {
	s.arbiter.UpdateTranscript(text)
}

// SetSpeechEnabled toggles speech playback.
func (s *Session) SetSpeechEnabled(enabled bool) {
	s.queue.SetEnabled(enabled)
}

// SpeechEnabled reports whether speech playback is enabled.
func (s *Session) SpeechEnabled() bool {
	return s.queue.Enabled()
}

// Close releases the session's resources.
func (s *Session) Close() {
	s.queue.Close()
}
