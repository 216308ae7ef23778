package sharding

import "fmt"

// EntityNotManagedByThisPodError is returned by a pod asked to deliver to an
// entity it does not currently own. Callers retry against a fresh
// assignment lookup.
type EntityNotManagedByThisPodError struct {
	EntityType string
	EntityID   string
	Shard      ShardID
}

func (e *EntityNotManagedByThisPodError) Error() string {
	return fmt.Sprintf("entity %s/%s (shard %d) is not managed by this pod", e.EntityType, e.EntityID, e.Shard)
}

// PodUnavailableError is returned when a remote pod could not be reached at
// the transport layer (connection refused, deadline exceeded dialing, etc).
type PodUnavailableError struct {
	Pod PodAddress
	Err error
}

func (e *PodUnavailableError) Error() string {
	return fmt.Sprintf("pod %s unavailable: %v", e.Pod, e.Err)
}

func (e *PodUnavailableError) Unwrap() error { return e.Err }

// SendTimeoutError is returned when a send did not complete within its
// caller-supplied deadline.
type SendTimeoutError struct {
	EntityType string
	EntityID   string
}

func (e *SendTimeoutError) Error() string {
	return fmt.Sprintf("send to %s/%s timed out", e.EntityType, e.EntityID)
}

// StreamCancelledError is returned to a stream reply consumer when the
// underlying transport stream was cancelled by the peer.
type StreamCancelledError struct {
	Reason string
}

func (e *StreamCancelledError) Error() string {
	return fmt.Sprintf("stream cancelled: %s", e.Reason)
}

// TransportError wraps a transport failure that does not map to one of the
// named kinds above (e.g. an unexpected gRPC status code).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrNoStreamItems denotes a streamed response that produced zero items, as
// distinct from a send that produced no value at all. No function in this
// module returns it; Broadcaster results mark "no value" with
// Result.HasValue instead. See DESIGN.md "Open Question resolutions".
var ErrNoStreamItems = fmt.Errorf("stream produced no items")
