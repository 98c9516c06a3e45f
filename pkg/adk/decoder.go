package adk

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// DedupCapacity bounds the per-cycle set of seen frame keys. Oldest keys are
// evicted first, so very long replies stay within a fixed memory footprint.
const DedupCapacity = 100

// ToolNoteKind distinguishes tool invocation from tool result notifications.
type ToolNoteKind int

const (
	// NoteCall marks a tool invocation.
	NoteCall ToolNoteKind = iota
	// NoteResult marks a tool result.
	NoteResult
)

// ToolNote is a fire-and-forget notification emitted for every frame that
// carries tool activity. Consumers use it for highlighting only; dropping a
// note never affects frame processing.
type ToolNote struct {
	Author string
	Tool   string
	Kind   ToolNoteKind
	Args   string
}

// Decoder turns raw streamed chunks into typed, deduplicated Events.
//
// The upstream transport is permitted to redeliver frames; the decoder
// guarantees exactly-once delivery to its consumer by keying each frame on
// its content-identifying fields. Malformed payloads are logged and skipped,
// never aborting the stream.
type Decoder struct {
	logger *slog.Logger

	// seen maps dedup keys to membership; order tracks insertion for
	// bounded FIFO eviction.
	seen  map[string]struct{}
	order []string

	// partial holds an incomplete trailing line between chunks.
	partial strings.Builder

	notes chan<- ToolNote
}

// NewDecoder creates a decoder. notes may be nil when tool activity
// notifications are not wanted.
func NewDecoder(logger *slog.Logger, notes chan<- ToolNote) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{
		logger: logger.With("component", "adk.decoder"),
		seen:   make(map[string]struct{}, DedupCapacity),
		notes:  notes,
	}
}

// Reset clears the dedup set and any buffered partial line. Call it at the
// start of every new user-submitted request cycle.
func (d *Decoder) Reset() {
	d.seen = make(map[string]struct{}, DedupCapacity)
	d.order = d.order[:0]
	d.partial.Reset()
}

// Decode splits a raw chunk into frames and returns the events it yields,
// in arrival order. Duplicate frames are discarded silently; malformed
// frames are dropped with a warning.
func (d *Decoder) Decode(chunk []byte) []*Event {
	d.partial.Write(chunk)
	buffered := d.partial.String()
	d.partial.Reset()

	var events []*Event
	for {
		idx := strings.IndexByte(buffered, '\n')
		if idx < 0 {
			// Keep the incomplete tail for the next chunk.
			d.partial.WriteString(buffered)
			break
		}
		line := buffered[:idx]
		buffered = buffered[idx+1:]

		if ev := d.decodeLine(line); ev != nil {
			events = append(events, ev)
		}
	}
	return events
}

// Flush decodes any buffered trailing line. Call it at end-of-stream, where
// the final frame may not be newline-terminated.
func (d *Decoder) Flush() []*Event {
	line := d.partial.String()
	d.partial.Reset()
	if strings.TrimSpace(line) == "" {
		return nil
	}
	if ev := d.decodeLine(line); ev != nil {
		return []*Event{ev}
	}
	return nil
}

// decodeLine strips stream framing, parses, validates and deduplicates one
// frame. Returns nil when the line yields no event.
func (d *Decoder) decodeLine(line string) *Event {
	payload := strings.TrimSpace(line)
	if payload == "" {
		return nil
	}
	payload = strings.TrimPrefix(payload, "data:")
	payload = strings.TrimSpace(payload)
	if payload == "" || payload == "[DONE]" {
		return nil
	}

	ev, err := parseFrame(payload, d.logger)
	if err != nil {
		d.logger.Warn("dropping malformed frame", "error", err)
		return nil
	}

	key := dedupKey(ev)
	if _, dup := d.seen[key]; dup {
		return nil
	}
	d.remember(key)

	d.notify(ev)
	return ev
}

// remember inserts a dedup key, evicting the oldest past capacity.
func (d *Decoder) remember(key string) {
	if len(d.order) >= DedupCapacity {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	d.seen[key] = struct{}{}
	d.order = append(d.order, key)
}

// notify emits tool notes for the event without ever blocking.
func (d *Decoder) notify(ev *Event) {
	if d.notes == nil {
		return
	}
	for _, call := range ev.ToolCalls() {
		note := ToolNote{Author: ev.Author, Tool: call.Name, Kind: NoteCall, Args: marshalArgs(call.Args)}
		select {
		case d.notes <- note:
		default:
		}
	}
	for _, result := range ev.ToolResults() {
		note := ToolNote{Author: ev.Author, Tool: result.Name, Kind: NoteResult}
		select {
		case d.notes <- note:
		default:
		}
	}
}

// parseFrame decodes a single JSON payload into an Event, routing unknown
// part shapes to the decode-error path.
func parseFrame(payload string, logger *slog.Logger) (*Event, error) {
	var wire wireEvent
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}
	if wire.Author == "" {
		return nil, fmt.Errorf("frame missing author")
	}

	ev := &Event{
		ID:        wire.ID,
		Author:    wire.Author,
		Partial:   wire.Partial,
		Timestamp: wire.Timestamp,
	}
	for i := range wire.Content.Parts {
		part, ok := wire.Content.Parts[i].toPart()
		if !ok {
			logger.Warn("skipping unknown part shape", "author", wire.Author, "index", i)
			continue
		}
		ev.Parts = append(ev.Parts, part)
	}
	return ev, nil
}

// dedupKey derives a stable key from the content-identifying fields.
func dedupKey(ev *Event) string {
	h := sha256.New()
	h.Write([]byte(ev.Author))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(ev.Partial)))
	h.Write([]byte{0})
	h.Write([]byte(ev.ID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(ev.Timestamp, 'g', -1, 64)))
	h.Write([]byte{0})
	h.Write([]byte(ev.Text()))
	for _, call := range ev.ToolCalls() {
		h.Write([]byte{0})
		h.Write([]byte(call.Name))
	}
	for _, result := range ev.ToolResults() {
		h.Write([]byte{0})
		h.Write([]byte(result.Name))
	}
	return hex.EncodeToString(h.Sum(nil))
}
