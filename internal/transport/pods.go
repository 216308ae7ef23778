// Package transport implements the Pods external interface: the gRPC wire
// transport pods use to reach each other, translating gRPC status codes
// into the sharding error kinds the Sharding Router's retry taxonomy
// expects.
package transport

import (
	"context"

	"github.com/dreamware/shardrt/internal/reply"
	"github.com/dreamware/shardrt/internal/sharding"
)

// StreamItem mirrors reply.StreamItem for the transport-level streaming
// consumer, keeping this package free of a dependency on *how* reply
// channels are implemented beyond the shape of one chunk.
type StreamItem = reply.StreamItem

// Pods is the narrow client-facing capability the Sharding Router depends
// on to reach a remote pod, backed here by gRPC (grpc_client.go).
type Pods interface {
	// Send delivers body to entityType/entityID on pod and waits for a
	// single reply, or (nil, nil) if the target replied with no value.
	Send(ctx context.Context, pod sharding.PodAddress, entityType, entityID string, body []byte) ([]byte, error)

	// SendStream delivers body and returns a channel of StreamItem the
	// caller ranges over until Done.
	SendStream(ctx context.Context, pod sharding.PodAddress, entityType, entityID string, body []byte) (<-chan StreamItem, error)

	// Assign notifies pod that it now owns shards.
	Assign(ctx context.Context, pod sharding.PodAddress, shards []sharding.ShardID, self sharding.PodAddress) error

	// Unassign notifies pod that it no longer owns shards.
	Unassign(ctx context.Context, pod sharding.PodAddress, shards []sharding.ShardID) error

	// Close releases any resources (connection pool, etc) held by the
	// implementation.
	Close() error
}
