package transport

// These are the wire messages exchanged between pods. A real deployment
// would define them in a .proto file and run protoc; this module instead
// registers a JSON grpc.Codec (codec.go) and hand-writes the service
// descriptor (service.go), so plain Go structs serve as the wire types —
// see DESIGN.md for why protobuf codegen was not an option here.

type podAddressMsg struct {
	Host string
	Port int32
}

// sendRequest is the unary/streaming request for delivering one message to
// an entity on the target pod.
type sendRequest struct {
	EntityType string
	EntityID   string
	Body       []byte
	ReplyID    string
}

// sendResponse is the unary reply to sendRequest.
type sendResponse struct {
	Body      []byte
	Error     string
	ErrorKind string
}

// streamChunk is one frame of a server-streaming reply to sendRequest.
type streamChunk struct {
	Body  []byte
	Final bool
	Error string
}

// assignRequest notifies the callee that it now owns the listed shards.
type assignRequest struct {
	Shards []int32
	Pod    podAddressMsg
}

// unassignRequest notifies the callee that it no longer owns the listed
// shards.
type unassignRequest struct {
	Shards []int32
}

// ack is the empty unary response for Assign/Unassign.
type ack struct{}
