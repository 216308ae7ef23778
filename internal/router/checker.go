package router

import (
	"sync/atomic"

	"github.com/dreamware/shardrt/internal/assignment"
	"github.com/dreamware/shardrt/internal/sharding"
)

// shardChecker is the entity.LocalShardChecker for an Entity-variant
// RecipientType: an entity is local only while this pod's Assignment Table
// says it owns the entity's shard.
type shardChecker struct {
	rt           sharding.RecipientType
	numShards    int
	table        *assignment.Table
	shuttingDown *atomic.Bool
}

func (c *shardChecker) ShardID(entityID string) sharding.ShardID {
	return c.rt.ShardOf(entityID, c.numShards)
}

func (c *shardChecker) IsEntityOnLocalShards(entityID string) bool {
	return c.table.IsLocal(c.ShardID(entityID))
}

func (c *shardChecker) IsShuttingDown() bool {
	return c.shuttingDown.Load()
}

// alwaysLocalChecker backs a Topic-variant RecipientType: every pod keeps
// its own instance of a topic subscriber regardless of shard ownership, so
// a topic send is always "local" once it reaches a pod (the Broadcaster is
// what decides which pods receive it).
type alwaysLocalChecker struct {
	rt           sharding.RecipientType
	numShards    int
	shuttingDown *atomic.Bool
}

func (c *alwaysLocalChecker) ShardID(entityID string) sharding.ShardID {
	return c.rt.ShardOf(entityID, c.numShards)
}

func (c *alwaysLocalChecker) IsEntityOnLocalShards(string) bool {
	return true
}

func (c *alwaysLocalChecker) IsShuttingDown() bool {
	return c.shuttingDown.Load()
}
