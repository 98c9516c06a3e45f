// Package hub fans console updates out to browser clients over
// websockets. Each broadcast surface (status, camera, annotated,
// transcript) gets its own hub.
package hub

// MessageType selects the websocket frame type for a broadcast.
type MessageType int

const (
	// JSONMessage is a JSON-encoded payload sent as a text frame.
	JSONMessage MessageType = iota
	// BinaryMessage is raw bytes, used for JPEG frame pushes.
	BinaryMessage
)

// Message is one payload queued for every connected client.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON bytes.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps raw bytes.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}
