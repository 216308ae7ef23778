package singleton

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/shardrt/internal/assignment"
	"github.com/dreamware/shardrt/internal/sharding"
)

func TestControllerStartsSingletonWhenShardOwned(t *testing.T) {
	self := sharding.PodAddress{Host: "self", Port: 1}
	tbl := assignment.NewTable(self)
	ctrl := NewController(tbl, nil, nil)

	var running atomic.Bool
	ctrl.Register("leader", func(ctx context.Context) {
		running.Store(true)
		<-ctx.Done()
		running.Store(false)
	})

	assert.False(t, ctrl.IsRunning("leader"), "singleton should not run before the sentinel shard is owned")

	tbl.Assign([]sharding.ShardID{sharding.SingletonShardID})
	ctrl.Reconcile()

	require.Eventually(t, running.Load, time.Second, 5*time.Millisecond)
}

func TestControllerStopsSingletonWhenShardLost(t *testing.T) {
	self := sharding.PodAddress{Host: "self", Port: 1}
	tbl := assignment.NewTable(self)
	tbl.Assign([]sharding.ShardID{sharding.SingletonShardID})
	ctrl := NewController(tbl, nil, nil)

	var running atomic.Bool
	ctrl.Register("leader", func(ctx context.Context) {
		running.Store(true)
		<-ctx.Done()
		running.Store(false)
	})
	require.Eventually(t, running.Load, time.Second, 5*time.Millisecond)

	tbl.Unassign([]sharding.ShardID{sharding.SingletonShardID})
	ctrl.Reconcile()

	require.Eventually(t, func() bool { return !running.Load() }, time.Second, 5*time.Millisecond)
}

func TestControllerCoalescesConcurrentReconcileTriggers(t *testing.T) {
	self := sharding.PodAddress{Host: "self", Port: 1}
	tbl := assignment.NewTable(self)
	tbl.Assign([]sharding.ShardID{sharding.SingletonShardID})
	ctrl := NewController(tbl, nil, nil)

	var starts atomic.Int32
	ctrl.Register("leader", func(ctx context.Context) {
		starts.Add(1)
		<-ctx.Done()
	})

	for i := 0; i < 20; i++ {
		ctrl.Reconcile()
	}

	require.Eventually(t, func() bool { return starts.Load() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, starts.Load(), "singleton should start exactly once despite 20 concurrent Reconcile calls")
}

func TestControllerStopAllCancelsRunningSingletons(t *testing.T) {
	self := sharding.PodAddress{Host: "self", Port: 1}
	tbl := assignment.NewTable(self)
	tbl.Assign([]sharding.ShardID{sharding.SingletonShardID})
	ctrl := NewController(tbl, nil, nil)

	var running atomic.Bool
	ctrl.Register("leader", func(ctx context.Context) {
		running.Store(true)
		<-ctx.Done()
		running.Store(false)
	})
	require.Eventually(t, running.Load, time.Second, 5*time.Millisecond)

	ctrl.StopAll()
	require.Eventually(t, func() bool { return !running.Load() }, time.Second, 5*time.Millisecond)
}
