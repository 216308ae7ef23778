// Package reply implements the Reply Channel / Send Channel abstractions:
// the single-vs-stream duality entities use to answer a message, and the
// producer-side handles used to deliver one into an entity's mailbox.
package reply

import "context"

// Kind distinguishes the two Channel variants.
type Kind int

const (
	Single Kind = iota
	Stream
)

func (k Kind) String() string {
	if k == Stream {
		return "stream"
	}
	return "single"
}

// Envelope is what an entity's mailbox actually holds: a decoded payload
// plus, for request/response sends, the Channel the entity's behavior
// replies through. Reply is nil for fire-and-forget deliveries.
type Envelope struct {
	Body  []byte
	Reply Channel
}

// Channel is the producer-facing side of a reply: the behavior function
// calls these to answer a message. It is the value stored in the Reply
// Registry under a reply ID.
//
// Once a terminal operation (End or Fail, or ReplySingle on a Single
// channel) completes the channel, every subsequent call is a no-op — the
// registry removes the entry on first completion and nothing should block
// a behavior that double-replies by mistake.
type Channel interface {
	Kind() Kind

	// ReplySingle answers with one value. On a Stream channel this sends
	// one chunk and ends the stream.
	ReplySingle(body []byte) error

	// ReplyStream sends one chunk. On a Single channel the first call
	// completes the channel with that chunk's body; later calls are
	// no-ops.
	ReplyStream(body []byte) error

	// End completes the channel with no error. On a Single channel that
	// never received a value, this produces (nil, nil) — "no value",
	// distinct from a stream that produced zero items.
	End() error

	// Fail completes the channel with err. Idempotent.
	Fail(err error) error

	// Await blocks until the channel reaches a terminal state or ctx is
	// done.
	Await(ctx context.Context) error
}
