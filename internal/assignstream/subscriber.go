// Package assignstream implements the Storage.assignmentsStream external
// interface: a lazy, restartable sequence of full assignment snapshots a
// pod subscribes to after its initial bootstrap RPC.
package assignstream

import (
	"context"

	"github.com/dreamware/shardrt/internal/sharding"
)

// Snapshot is one full shard-to-pod mapping delivered over the stream.
// Shards absent from the map are unassigned.
type Snapshot map[sharding.ShardID]sharding.PodAddress

// Subscriber is the Storage.assignmentsStream collaborator.
type Subscriber interface {
	// Subscribe starts delivering Snapshots for podID on the returned
	// channel. The channel closes when ctx is done or the subscription
	// is otherwise terminated; callers should treat a closed channel as
	// "restart the whole bootstrap+subscribe pipeline".
	Subscribe(ctx context.Context, podID string) (<-chan Snapshot, error)
	Close() error
}
