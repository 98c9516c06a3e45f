// Package transcript maintains the ordered, author-aware message history of a
// conversational session.
//
// The accumulator consumes decoded agent events in arrival order. Partial
// events grow the open streaming entry in place; a final event, an author
// switch, or end-of-stream freezes the entry and hands its accumulated text
// to the playback sink exactly once, tagged with the author that produced it.
package transcript

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vl-adk/go-console/pkg/adk"
)

// Role identifies who produced a transcript entry.
type Role string

const (
	// RoleUser marks operator-submitted messages.
	RoleUser Role = "user"

	// RoleAgent marks messages from the reasoning service, including the
	// synthetic tool and error lines.
	RoleAgent Role = "agent"
)

// Entry is one transcript line. Entries are append-only except the most
// recent agent entry, which grows in place while its reply is streaming.
type Entry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// PlaybackFunc receives each finalized reply segment for speech synthesis.
// It is called with the accumulated text (without the author tag) and the
// author identity, exactly once per author segment.
type PlaybackFunc func(text, author string)

// Accumulator builds the transcript from a stream of agent events.
//
// The zero value is not usable; construct with NewAccumulator. All methods
// are safe for concurrent use.
type Accumulator struct {
	mu sync.Mutex

	entries       []Entry
	streaming     bool
	currentAuthor string
	buffer        strings.Builder

	// openIndex locates the open streaming entry. Synthetic tool lines can
	// land after it mid-stream, so position alone does not identify it.
	openIndex int

	playback PlaybackFunc
	logger   *slog.Logger
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Accumulator) {
		a.logger = logger.With("component", "transcript")
	}
}

// NewAccumulator creates an accumulator that hands finalized reply segments
// to playback. A nil playback func disables the handoff.
func NewAccumulator(playback PlaybackFunc, opts ...Option) *Accumulator {
	a := &Accumulator{
		playback:  playback,
		openIndex: -1,
		logger:    slog.Default().With("component", "transcript"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Consume applies one decoded event to the transcript.
//
// Tool invocations and results become synthetic lines that are never handed
// to playback. Partial text grows the open streaming entry, finalizing the
// previous author's segment first on an author switch. A final event closes
// the open entry, or, when nothing streamed for this reply, lands as a
// complete entry enqueued for playback directly.
func (a *Accumulator) Consume(ev *adk.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, call := range ev.ToolCalls() {
		a.appendLocked(RoleAgent, fmt.Sprintf("Called %s", call.Name))
	}
	for _, res := range ev.ToolResults() {
		a.appendLocked(RoleAgent, fmt.Sprintf("Received %s", res.Name))
	}

	text := ev.Text()

	if ev.Partial {
		if text == "" {
			return
		}
		if a.streaming && a.currentAuthor != ev.Author {
			a.finalizeLocked()
		}
		if !a.streaming {
			a.streaming = true
			a.currentAuthor = ev.Author
			a.buffer.Reset()
			a.openIndex = len(a.entries)
			a.entries = append(a.entries, Entry{Role: RoleAgent})
		}
		a.buffer.WriteString(text)
		a.entries[a.openIndex].Content = renderTagged(a.currentAuthor, a.buffer.String())
		return
	}

	// Final event: terminal signal for the open reply. Its own text is only
	// used when nothing streamed at all.
	if a.streaming {
		a.finalizeLocked()
		return
	}
	if text != "" {
		a.appendLocked(RoleAgent, renderTagged(ev.Author, text))
		a.enqueueLocked(text, ev.Author)
	}
}

// FinishStream force-finalizes the open streaming entry at end-of-stream,
// guaranteeing the reply is enqueued for playback even when the final frame
// never arrived.
func (a *Accumulator) FinishStream() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.streaming {
		a.finalizeLocked()
	}
}

// AddUser appends an operator message. Any entry still streaming from the
// abandoned previous reply is frozen without being enqueued for playback.
func (a *Accumulator) AddUser(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.abandonLocked()
	a.appendLocked(RoleUser, text)
}

// AddNotice appends a synthetic agent-side line, such as a transport error
// report. Notices are never handed to playback.
func (a *Accumulator) AddNotice(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.abandonLocked()
	a.appendLocked(RoleAgent, text)
}

// Reset clears the whole transcript, including any open streaming state.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = nil
	a.streaming = false
	a.currentAuthor = ""
	a.openIndex = -1
	a.buffer.Reset()
}

// Entries returns a snapshot of the transcript.
func (a *Accumulator) Entries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len returns the number of transcript entries.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Streaming reports whether a reply entry is currently open.
func (a *Accumulator) Streaming() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.streaming
}

// finalizeLocked freezes the open entry and enqueues its buffer for playback.
func (a *Accumulator) finalizeLocked() {
	text := a.buffer.String()
	a.enqueueLocked(text, a.currentAuthor)
	a.streaming = false
	a.currentAuthor = ""
	a.openIndex = -1
	a.buffer.Reset()
}

// abandonLocked freezes the open entry without a playback handoff. Used when
// the operator interrupts a mid-stream reply.
func (a *Accumulator) abandonLocked() {
	if !a.streaming {
		return
	}
	a.logger.Debug("abandoning open reply", "author", a.currentAuthor, "chars", a.buffer.Len())
	a.streaming = false
	a.currentAuthor = ""
	a.openIndex = -1
	a.buffer.Reset()
}

func (a *Accumulator) appendLocked(role Role, content string) {
	a.entries = append(a.entries, Entry{Role: role, Content: content})
}

func (a *Accumulator) enqueueLocked(text, author string) {
	if a.playback == nil {
		return
	}
	a.playback(text, author)
}

// renderTagged prefixes reply text with its author tag for display.
func renderTagged(author, text string) string {
	return "[" + author + "] " + text
}
