// Package hub provides a thread-safe websocket fan-out hub for a single
// topic, using the channel-based register/unregister/broadcast pattern.
//
// Every frame a client sends is forwarded to every other client on the
// same hub. The sender never receives its own frame back.
package hub

// MessageType indicates the websocket frame format.
type MessageType int

const (
	// TextMessage is a UTF-8 text frame (JSON control and state messages).
	TextMessage MessageType = iota
	// BinaryMessage is an opaque binary frame.
	BinaryMessage
)

// Message is a frame to be fanned out to the hub's clients.
type Message struct {
	Type MessageType
	Data []byte

	// from is the client that published the frame, nil for frames
	// injected through Broadcast.
	from *Client
}

// NewTextMessage creates a text message from pre-encoded bytes.
func NewTextMessage(data []byte) Message {
	return Message{Type: TextMessage, Data: data}
}

// NewBinaryMessage creates a binary message.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}
