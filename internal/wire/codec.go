package wire

// Codec turns application-level values into wire bytes and back for
// application payloads. internal/assignstream decodes its NATS snapshots
// with encoding/json directly rather than through a Codec.
//
// Decode must not retain body after it returns, since callers may reuse the
// backing array.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(body []byte, v any) error
}

// JSON is the default Codec, backed by encoding/json. No pack example wires
// a schema/binary serialization library (protobuf, msgpack) for generic
// application payloads, so this matches the pack's own practice rather than
// introducing a library nothing else here uses — see DESIGN.md.
type JSON struct{}

var _ Codec = JSON{}
