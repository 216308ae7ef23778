// Package shardmanager implements the ShardManagerClient external
// interface: registration, deregistration, the assignment snapshot RPC, and
// unhealthy-pod reporting. The Shard Manager's own placement decisions are
// out of scope here — this package only talks to it.
package shardmanager

import (
	"context"

	"github.com/dreamware/shardrt/internal/sharding"
)

// Client is the ShardManagerClient external interface.
type Client interface {
	// Register announces this pod to the Shard Manager.
	Register(ctx context.Context, pod sharding.PodAddress) error
	// Unregister withdraws this pod, normally called during graceful
	// shutdown.
	Unregister(ctx context.Context, pod sharding.PodAddress) error
	// GetAssignments fetches the current full shard-to-pod snapshot.
	GetAssignments(ctx context.Context) (map[sharding.ShardID]sharding.PodAddress, error)
	// NotifyUnhealthyPod reports that pod appears unreachable.
	NotifyUnhealthyPod(ctx context.Context, pod sharding.PodAddress) error
}
