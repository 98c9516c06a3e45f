// Package adk provides a client for the multi-agent reasoning service.
//
// The service streams newline-delimited JSON frames over an SSE-style
// response body. Each frame carries one event: an author, a partial flag,
// and a list of content parts (text fragments, tool invocations, tool
// results). The package decodes raw frames into typed Events, deduplicates
// redelivered frames, and surfaces tool activity on a side channel.
package adk

import (
	"encoding/json"
	"strings"
)

// Event is one decoded unit of the reply stream.
// Partial events carry incremental tokens of an in-progress reply;
// non-partial events mark a finalized reply segment.
type Event struct {
	// ID is the server-supplied event identifier, if any.
	ID string

	// Author identifies which agent produced this event.
	Author string

	// Partial reports whether this event is an incremental fragment.
	Partial bool

	// Timestamp is the server-supplied emission time in epoch seconds,
	// zero when absent. It distinguishes legitimately repeated fragments
	// from redelivered frames.
	Timestamp float64

	// Parts holds the validated content parts in emission order.
	Parts []Part
}

// PartKind tags the variant held by a Part.
type PartKind int

const (
	// PartText is a text fragment.
	PartText PartKind = iota
	// PartToolCall is a tool invocation emitted by the agent.
	PartToolCall
	// PartToolResult is the response to an earlier tool invocation.
	PartToolResult
)

// Part is a tagged union over the content shapes the service emits.
// Exactly one of Text, Call, Result is populated, per Kind.
type Part struct {
	Kind   PartKind
	Text   string
	Call   *ToolCall
	Result *ToolResult
}

// ToolCall describes a tool invocation.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult describes a tool invocation response.
type ToolResult struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}

// Text returns the concatenated text fragments of the event.
func (e *Event) Text() string {
	var b strings.Builder
	for _, p := range e.Parts {
		if p.Kind == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// ToolCalls returns the tool invocations carried by the event.
func (e *Event) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, p := range e.Parts {
		if p.Kind == PartToolCall && p.Call != nil {
			calls = append(calls, *p.Call)
		}
	}
	return calls
}

// ToolResults returns the tool responses carried by the event.
func (e *Event) ToolResults() []ToolResult {
	var results []ToolResult
	for _, p := range e.Parts {
		if p.Kind == PartToolResult && p.Result != nil {
			results = append(results, *p.Result)
		}
	}
	return results
}

// HasContent reports whether the event carries any text or tool parts.
func (e *Event) HasContent() bool {
	return len(e.Parts) > 0
}

// wireEvent is the raw frame shape on the stream.
type wireEvent struct {
	ID        string  `json:"id,omitempty"`
	Author    string  `json:"author"`
	Partial   bool    `json:"partial"`
	Timestamp float64 `json:"timestamp,omitempty"`
	Content   struct {
		Parts []wirePart `json:"parts"`
	} `json:"content"`
}

// wirePart mirrors the duck-typed part payloads; exactly one field should be
// set, anything else is routed to the decode-error path.
type wirePart struct {
	Text             *string     `json:"text,omitempty"`
	FunctionCall     *ToolCall   `json:"functionCall,omitempty"`
	FunctionResponse *ToolResult `json:"functionResponse,omitempty"`
}

func (w *wirePart) toPart() (Part, bool) {
	switch {
	case w.Text != nil:
		return Part{Kind: PartText, Text: *w.Text}, true
	case w.FunctionCall != nil:
		return Part{Kind: PartToolCall, Call: w.FunctionCall}, true
	case w.FunctionResponse != nil:
		return Part{Kind: PartToolResult, Result: w.FunctionResponse}, true
	default:
		return Part{}, false
	}
}

// marshalArgs renders tool arguments compactly for notifications and logs.
func marshalArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
