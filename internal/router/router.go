// Package router implements the Sharding Router: local-vs-remote dispatch
// by consulting the Assignment Table, the retry taxonomy for transient
// routing errors, debounced unhealthy-pod reporting, and the per-type
// Messenger and Broadcaster built on top of it.
package router

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/shardrt/internal/assignment"
	"github.com/dreamware/shardrt/internal/entity"
	"github.com/dreamware/shardrt/internal/metrics"
	"github.com/dreamware/shardrt/internal/reply"
	"github.com/dreamware/shardrt/internal/shardmanager"
	"github.com/dreamware/shardrt/internal/sharding"
	"github.com/dreamware/shardrt/internal/transport"
)

// Router is the Sharding Router for one pod.
type Router struct {
	self     sharding.PodAddress
	cfg      sharding.Config
	table    *assignment.Table
	pods     transport.Pods
	shardMgr shardmanager.Client
	sink     metrics.Sink
	logger   *zap.Logger

	shuttingDown atomic.Bool

	registry *reply.Registry

	mu       sync.RWMutex
	managers map[string]*entity.Manager
	types    map[string]sharding.RecipientType

	// lastUnhealthyNanos is a single CAS-updated debounce timestamp: one
	// clock shared across every pod, not a per-pod map, so two different
	// unhealthy pods within the same interval produce only one report
	// between them.
	lastUnhealthyNanos atomic.Int64
}

// New builds a Router. shardMgr may be nil, in which case unhealthy-pod
// reports are skipped (useful for tests and for standalone routers that
// don't yet have a Shard Manager client wired in). sink and logger may be
// nil.
func New(self sharding.PodAddress, cfg sharding.Config, table *assignment.Table, pods transport.Pods, shardMgr shardmanager.Client, sink metrics.Sink, logger *zap.Logger) *Router {
	if sink == nil {
		sink = metrics.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		self:     self,
		cfg:      cfg,
		table:    table,
		pods:     pods,
		shardMgr: shardMgr,
		sink:     sink,
		logger:   logger,
		registry: reply.NewRegistry(),
		managers: make(map[string]*entity.Manager),
		types:    make(map[string]sharding.RecipientType),
	}
}

// RegisterType creates and starts the Entity Manager backing rt, using the
// shard-ownership checker appropriate to rt.Variant, and returns it so the
// caller can feed it the same Manager the router will later dispatch into.
func (r *Router) RegisterType(rt sharding.RecipientType, behavior entity.Behavior) *entity.Manager {
	var checker entity.LocalShardChecker
	if rt.Variant == sharding.Topic {
		checker = &alwaysLocalChecker{rt: rt, numShards: r.cfg.NumShards, shuttingDown: &r.shuttingDown}
	} else {
		checker = &shardChecker{rt: rt, numShards: r.cfg.NumShards, table: r.table, shuttingDown: &r.shuttingDown}
	}

	mgr := entity.NewManager(rt, behavior, checker, r.cfg, r.sink, r.logger)
	mgr.Start()

	r.mu.Lock()
	r.managers[rt.Name] = mgr
	r.types[rt.Name] = rt
	r.mu.Unlock()
	return mgr
}

func (r *Router) managerFor(typeName string) (*entity.Manager, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mgr, ok := r.managers[typeName]
	return mgr, ok
}

// Messenger returns the per-type point-to-point sender for rt.
func (r *Router) Messenger(rt sharding.RecipientType) *Messenger {
	return &Messenger{router: r, rt: rt}
}

// Broadcaster returns the one-to-all-pods sender for rt.
func (r *Router) Broadcaster(rt sharding.RecipientType) *Broadcaster {
	return &Broadcaster{router: r, rt: rt}
}

// BeginShutdown marks the router as shutting down: every Entity Manager
// registered through it starts refusing new activations.
func (r *Router) BeginShutdown() {
	r.shuttingDown.Store(true)
}

// StopAllTypes stops every registered Entity Manager, each bounded by the
// configured entity termination timeout.
func (r *Router) StopAllTypes(ctx context.Context) error {
	r.mu.RLock()
	mgrs := make([]*entity.Manager, 0, len(r.managers))
	for _, mgr := range r.managers {
		mgrs = append(mgrs, mgr)
	}
	r.mu.RUnlock()

	var firstErr error
	for _, mgr := range mgrs {
		if err := mgr.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// distinctPods returns every distinct pod address currently owning at
// least one shard, used by the Broadcaster to fan out one-to-all-pods.
func (r *Router) distinctPods() []sharding.PodAddress {
	all := r.table.AllAssignments()
	seen := make(map[sharding.PodAddress]struct{}, len(all))
	out := make([]sharding.PodAddress, 0, len(all))
	for _, pod := range all {
		if _, ok := seen[pod]; ok {
			continue
		}
		seen[pod] = struct{}{}
		out = append(out, pod)
	}
	return out
}

// reportUnhealthy notifies the Shard Manager that pod looks unreachable,
// debounced by the single CAS-updated timestamp described above.
func (r *Router) reportUnhealthy(pod sharding.PodAddress) {
	now := time.Now().UnixNano()
	for {
		last := r.lastUnhealthyNanos.Load()
		if now-last < int64(r.cfg.UnhealthyPodReportInterval) {
			return
		}
		if r.lastUnhealthyNanos.CompareAndSwap(last, now) {
			break
		}
	}

	if r.shardMgr == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SendTimeout)
	defer cancel()
	if err := r.shardMgr.NotifyUnhealthyPod(ctx, pod); err != nil {
		r.logger.Warn("failed to report unhealthy pod", zap.String("pod", pod.String()), zap.Error(err))
		return
	}
	r.sink.IncUnhealthyPodReport()
}

var _ transport.Handler = (*Router)(nil)

// HandleSend services an incoming Pods.Send RPC by dispatching straight
// into the local Entity Manager for entityType: the sending pod already
// resolved this pod as the shard owner, so no further routing happens here.
func (r *Router) HandleSend(ctx context.Context, entityType, entityID string, body []byte) ([]byte, error) {
	mgr, ok := r.managerFor(entityType)
	if !ok {
		return nil, &sharding.EntityNotManagedByThisPodError{EntityType: entityType, EntityID: entityID}
	}
	ch := reply.NewSingle()
	if err := mgr.Send(ctx, entityID, body, ch); err != nil {
		return nil, err
	}
	return ch.Output(ctx)
}

// HandleSendStream services an incoming Pods.SendStream RPC the same way,
// for a streaming reply.
func (r *Router) HandleSendStream(ctx context.Context, entityType, entityID string, body []byte) (<-chan transport.StreamItem, error) {
	mgr, ok := r.managerFor(entityType)
	if !ok {
		return nil, &sharding.EntityNotManagedByThisPodError{EntityType: entityType, EntityID: entityID}
	}
	ch := reply.NewStream()
	if err := mgr.Send(ctx, entityID, body, ch); err != nil {
		return nil, err
	}
	return ch.Output(), nil
}

// HandleAssign installs shards as locally owned and terminates nothing (a
// newly assigned shard has no existing local entities to worry about).
func (r *Router) HandleAssign(_ context.Context, shards []sharding.ShardID, _ sharding.PodAddress) error {
	r.table.Assign(shards)
	return nil
}

// HandleUnassign drops local ownership of shards and terminates every
// entity, across every registered type, that was hashing to one of them,
// waiting for each to finish before returning so the caller's ack reflects
// a fully drained pod.
func (r *Router) HandleUnassign(ctx context.Context, shards []sharding.ShardID) error {
	r.table.Unassign(shards)

	set := make(map[sharding.ShardID]struct{}, len(shards))
	for _, s := range shards {
		set[s] = struct{}{}
	}

	r.mu.RLock()
	mgrs := make([]*entity.Manager, 0, len(r.managers))
	for _, mgr := range r.managers {
		mgrs = append(mgrs, mgr)
	}
	r.mu.RUnlock()

	for _, mgr := range mgrs {
		if err := mgr.TerminateEntitiesOnShards(ctx, set); err != nil {
			return err
		}
	}
	return nil
}
