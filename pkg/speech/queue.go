// Package speech serializes synthesized speech playback.
//
// The queue accepts one item per finalized reply segment and drains them
// with a single worker: never more than one item plays at a time, always in
// enqueue order. Item failures are swallowed so the conversation keeps
// moving; a sustained run of quota or server errors disables playback
// globally rather than hammering the rendering service.
package speech

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/vl-adk/go-console/internal/clock"
	"github.com/vl-adk/go-console/pkg/tts"
)

// DefaultPlaybackTimeout bounds how long one item may take to synthesize
// and play before the worker moves on. Guards against a lost completion
// signal stalling the queue.
const DefaultPlaybackTimeout = 10 * time.Second

// DefaultFailureThreshold is the number of consecutive quota/server
// failures after which playback is disabled globally.
const DefaultFailureThreshold = 3

// ErrPlaybackTimeout is returned internally when an item exceeds the
// playback timeout.
var ErrPlaybackTimeout = errors.New("speech: playback timed out")

// bracketed author tags are stripped before deciding whether an item has
// anything worth speaking.
var authorTagPattern = regexp.MustCompile(`\[[^\]]*\]`)

// Item is one queued unit of synthesized speech.
type Item struct {
	// Text is the reply segment to speak.
	Text string

	// Author selects the voice profile.
	Author string
}

// Sink receives the synthesized audio for an item. A nil sink discards
// audio, which still exercises synthesis and ordering.
type Sink func(ctx context.Context, item Item, audio *tts.AudioResult) error

// Queue is the speech playback queue. Construct with New and call Start
// before enqueueing. All methods are safe for concurrent use.
type Queue struct {
	provider tts.Provider
	sink     Sink
	clock    clock.Clock
	logger   *slog.Logger

	timeout   time.Duration
	threshold int

	// suspend is signaled synchronously before each item starts playing.
	suspend func()

	// speakingChanged reports in-flight transitions for the activity signal.
	speakingChanged func(bool)

	mu       sync.Mutex
	cond     *sync.Cond
	pending  []Item
	enabled  bool
	speaking bool
	closed   bool
	failures int

	cancel context.CancelFunc
	done   chan struct{}
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithSink sets the audio sink called after each successful synthesis.
func WithSink(sink Sink) QueueOption {
	return func(q *Queue) {
		q.sink = sink
	}
}

// WithSuspendSignal sets the callback invoked synchronously before each
// item's playback starts, so capture can be suspended in time.
func WithSuspendSignal(fn func()) QueueOption {
	return func(q *Queue) {
		q.suspend = fn
	}
}

// WithSpeakingFunc sets the callback invoked on in-flight transitions.
func WithSpeakingFunc(fn func(speaking bool)) QueueOption {
	return func(q *Queue) {
		q.speakingChanged = fn
	}
}

// WithClock overrides the clock, for tests.
func WithClock(c clock.Clock) QueueOption {
	return func(q *Queue) {
		q.clock = c
	}
}

// WithPlaybackTimeout overrides the per-item playback timeout.
func WithPlaybackTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		q.timeout = d
	}
}

// WithFailureThreshold overrides the consecutive-failure disable threshold.
func WithFailureThreshold(n int) QueueOption {
	return func(q *Queue) {
		q.threshold = n
	}
}

// WithQueueLogger sets the structured logger.
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = logger.With("component", "speech")
	}
}

// SetSpeakingObserver sets the in-flight transition callback after
// construction. Must be called before Start.
func (q *Queue) SetSpeakingObserver(fn func(speaking bool)) {
	q.speakingChanged = fn
}

// New creates a playback queue backed by the given TTS provider.
func New(provider tts.Provider, opts ...QueueOption) *Queue {
	q := &Queue{
		provider:  provider,
		clock:     clock.System(),
		logger:    slog.Default().With("component", "speech"),
		timeout:   DefaultPlaybackTimeout,
		threshold: DefaultFailureThreshold,
		enabled:   true,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start launches the background worker. The worker runs until Close.
func (q *Queue) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	go q.worker(ctx)
}

// Close stops the worker. Pending items are discarded; an in-flight item is
// cancelled.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.pending = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	if q.cancel != nil {
		q.cancel()
	}
	<-q.done
}

// Enqueue appends an item to the pending list. The call is a no-op when
// playback is disabled, and the item is dropped when its text is empty
// after stripping bracketed author tags.
func (q *Queue) Enqueue(item Item) {
	if cleanText(item.Text) == "" {
		q.logger.Debug("dropping empty item", "author", item.Author)
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.enabled || q.closed {
		return
	}
	q.pending = append(q.pending, item)
	q.cond.Signal()
}

// SetEnabled toggles playback. Disabling flushes the pending list
// immediately; an item already mid-playback finishes or times out normally.
func (q *Queue) SetEnabled(enabled bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if enabled == q.enabled {
		return
	}
	q.enabled = enabled
	if !enabled {
		flushed := len(q.pending)
		q.pending = nil
		if flushed > 0 {
			q.logger.Info("playback disabled, flushed pending items", "flushed", flushed)
		}
	} else {
		q.failures = 0
	}
}

// Flush drops all pending items without touching the enabled state or an
// item already in flight. Used on session reset.
func (q *Queue) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
}

// Enabled reports whether playback is globally enabled.
func (q *Queue) Enabled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enabled
}

// Speaking reports whether an item is in flight.
func (q *Queue) Speaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.speaking
}

// Pending returns the number of queued items not yet started.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// worker drains the pending list one item at a time.
func (q *Queue) worker(ctx context.Context) {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		item := q.pending[0]
		q.pending = q.pending[1:]
		q.speaking = true
		q.mu.Unlock()

		q.notifySpeaking(true)
		if q.suspend != nil {
			q.suspend()
		}

		err := q.playOne(ctx, item)
		q.recordOutcome(item, err)

		q.mu.Lock()
		q.speaking = false
		q.mu.Unlock()
		q.notifySpeaking(false)
	}
}

// playOne synthesizes and plays a single item, bounded by the playback
// timeout so a lost completion signal cannot stall the queue.
func (q *Queue) playOne(ctx context.Context, item Item) error {
	itemCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- q.render(itemCtx, item)
	}()

	select {
	case err := <-result:
		return err
	case <-q.clock.After(q.timeout):
		cancel()
		return ErrPlaybackTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) render(ctx context.Context, item Item) error {
	audio, err := q.provider.Synthesize(ctx, tts.Request{
		Text:  cleanText(item.Text),
		Voice: tts.VoiceFor(item.Author),
	})
	if err != nil {
		return err
	}
	if q.sink != nil {
		return q.sink(ctx, item, audio)
	}
	return nil
}

// recordOutcome swallows item-level failures and tracks the consecutive
// quota/server failure streak that disables playback globally.
func (q *Queue) recordOutcome(item Item, err error) {
	if err == nil {
		q.mu.Lock()
		q.failures = 0
		q.mu.Unlock()
		return
	}

	q.logger.Warn("playback item failed",
		"author", item.Author,
		"chars", len(item.Text),
		"error", err,
	)

	if !tts.IsDisablingError(err) {
		return
	}

	q.mu.Lock()
	q.failures++
	disable := q.failures >= q.threshold && q.enabled
	if disable {
		q.enabled = false
		q.pending = nil
	}
	q.mu.Unlock()

	if disable {
		q.logger.Error("sustained synthesis failures, disabling playback",
			"consecutive_failures", q.threshold,
		)
	}
}

func (q *Queue) notifySpeaking(speaking bool) {
	if q.speakingChanged != nil {
		q.speakingChanged(speaking)
	}
}

// cleanText strips bracketed author tags and surrounding whitespace.
func cleanText(text string) string {
	return strings.TrimSpace(authorTagPattern.ReplaceAllString(text, ""))
}
