// Package wire defines the on-the-wire message shape and the Serialization
// interface pods use to turn application values into bytes and back.
package wire

// BinaryMessage describes an addressed message between pods: an opaque body
// plus an optional correlation ID for the reply path. internal/transport
// does not use it; its RPCs carry their own request and stream-chunk
// structs (internal/transport/messages.go).
type BinaryMessage struct {
	EntityType string
	EntityID   string
	Body       []byte
	// ReplyID is empty for fire-and-forget sends (topics, and entity
	// sends that expect no reply).
	ReplyID string
}

// Chunk is one frame of a streamed reply body. Final is set on the frame
// that ends the stream; Err carries a terminal failure, if any, and implies
// Final.
type Chunk struct {
	Body  []byte
	Final bool
	Err   string
}
