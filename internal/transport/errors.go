package transport

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dreamware/shardrt/internal/sharding"
)

// errorKind names which sharding error a status/response maps to, carried
// on the wire in sendResponse.ErrorKind so the client can reconstruct the
// typed error without string-matching the message.
const (
	kindEntityNotManaged = "entity_not_managed"
	kindStreamCancelled  = "stream_cancelled"
)

// classifyOutgoing turns an error returned by a local handler into a gRPC
// status plus an errorKind for the unary response envelope.
func classifyOutgoing(err error) (codes.Code, string) {
	var notManaged *sharding.EntityNotManagedByThisPodError
	if errors.As(err, &notManaged) {
		return codes.ResourceExhausted, kindEntityNotManaged
	}
	var cancelled *sharding.StreamCancelledError
	if errors.As(err, &cancelled) {
		return codes.Canceled, kindStreamCancelled
	}
	return codes.Unknown, ""
}

// classifyIncoming translates a failed unary/streaming call (client side)
// into the sharding error kind a Sharding Router retry loop understands.
// isStream distinguishes codes.Canceled's two meanings: for a unary call it
// means PodUnavailable (the dial/call itself was cancelled); for a stream
// it means the peer ended the stream, i.e. StreamCancelled.
func classifyIncoming(pod sharding.PodAddress, errorKind string, err error, isStream bool) error {
	if err == nil {
		return nil
	}

	if errorKind == kindEntityNotManaged {
		return &sharding.EntityNotManagedByThisPodError{}
	}
	if errorKind == kindStreamCancelled {
		return &sharding.StreamCancelledError{Reason: err.Error()}
	}

	st, ok := status.FromError(err)
	if !ok {
		return &sharding.TransportError{Op: "call", Err: err}
	}

	switch st.Code() {
	case codes.ResourceExhausted:
		return &sharding.EntityNotManagedByThisPodError{}
	case codes.Unavailable, codes.DeadlineExceeded:
		return &sharding.PodUnavailableError{Pod: pod, Err: err}
	case codes.Canceled:
		if isStream {
			return &sharding.StreamCancelledError{Reason: st.Message()}
		}
		return &sharding.PodUnavailableError{Pod: pod, Err: err}
	default:
		return &sharding.TransportError{Op: "call", Err: err}
	}
}

// statusFromContext maps a context cancellation/deadline into the same
// codes the gRPC runtime would have produced, for local (same-process)
// dispatch paths that bypass the wire.
func statusFromContext(ctx context.Context) error {
	switch ctx.Err() {
	case context.Canceled:
		return status.Error(codes.Canceled, "context canceled")
	case context.DeadlineExceeded:
		return status.Error(codes.DeadlineExceeded, "context deadline exceeded")
	default:
		return nil
	}
}
