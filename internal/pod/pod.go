// Package pod wires every other package in this module into one running
// process: the Pod type owns the Assignment Table, Sharding Router,
// Singleton Controller, and the external collaborators (Shard Manager
// client, assignment stream subscriber, pod-to-pod transport), and exposes
// the lifecycle cmd/pod drives.
package pod

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/shardrt/internal/assignment"
	"github.com/dreamware/shardrt/internal/assignstream"
	"github.com/dreamware/shardrt/internal/config"
	"github.com/dreamware/shardrt/internal/entity"
	"github.com/dreamware/shardrt/internal/metrics"
	"github.com/dreamware/shardrt/internal/router"
	"github.com/dreamware/shardrt/internal/shardmanager"
	"github.com/dreamware/shardrt/internal/sharding"
	"github.com/dreamware/shardrt/internal/singleton"
	"github.com/dreamware/shardrt/internal/transport"
)

// Pod is one running member of the cluster: one Assignment Table, one
// Sharding Router, one Singleton Controller, and whatever recipient types
// and singletons the caller registers before Start.
type Pod struct {
	cfg    config.Config
	self   sharding.PodAddress
	logger *zap.Logger
	sink   metrics.Sink

	table      *assignment.Table
	router     *router.Router
	singletons *singleton.Controller

	shardMgr  shardmanager.Client
	assignSub assignstream.Subscriber
	pods      transport.Pods
	refresher *assignment.Refresher

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
}

// New builds a Pod from cfg, dialing the Shard Manager and NATS assignment
// stream and opening the pooled pod-to-pod transport. It does not start
// anything; call Start once every recipient type and singleton has been
// registered.
func New(cfg config.Config, sink metrics.Sink, logger *zap.Logger) (*Pod, error) {
	self := sharding.PodAddress{Host: cfg.Pod.Host, Port: cfg.Pod.Port}

	shardMgr, err := shardmanager.Dial(cfg.ShardManager.Address)
	if err != nil {
		return nil, fmt.Errorf("dial shard manager: %w", err)
	}

	assignSub, err := assignstream.DialNATS(cfg.Assignments.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("dial assignment stream: %w", err)
	}

	pods, err := transport.NewGRPCPods(cfg.Pod.ConnPoolSize)
	if err != nil {
		return nil, fmt.Errorf("build pod transport: %w", err)
	}

	return assemble(cfg, self, shardMgr, assignSub, pods, sink, logger), nil
}

// assemble wires the collaborators into a Pod; split out from New so tests
// can inject fakes in place of the gRPC/NATS-backed dials above.
func assemble(cfg config.Config, self sharding.PodAddress, shardMgr shardmanager.Client, assignSub assignstream.Subscriber, pods transport.Pods, sink metrics.Sink, logger *zap.Logger) *Pod {
	if sink == nil {
		sink = metrics.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	table := assignment.NewTable(self)
	scfg := cfg.Sharding.ToSharding()

	rt := router.New(self, scfg, table, pods, shardMgr, sink, logger)
	ctrl := singleton.NewController(table, sink, logger)
	table.OnChange(func() {
		sink.SetShardCount(table.LocalShardCount())
		ctrl.Reconcile()
	})

	podID := self.String()
	refresher := assignment.NewRefresher(table, shardMgr, assignSub, podID, scfg, sink, logger)

	return &Pod{
		cfg:        cfg,
		self:       self,
		logger:     logger,
		sink:       sink,
		table:      table,
		router:     rt,
		singletons: ctrl,
		shardMgr:   shardMgr,
		assignSub:  assignSub,
		pods:       pods,
		refresher:  refresher,
	}
}

// RegisterEntityType registers behavior for rt and returns its Entity
// Manager. Must be called before Start.
func (p *Pod) RegisterEntityType(rt sharding.RecipientType, behavior entity.Behavior) *entity.Manager {
	return p.router.RegisterType(rt, behavior)
}

// RegisterSingleton registers a named singleton task. Safe to call before or
// after Start; if called after, the Singleton Controller immediately
// reconciles against current shard ownership.
func (p *Pod) RegisterSingleton(name string, task singleton.Task) {
	p.singletons.Register(name, task)
}

// Messenger returns the point-to-point sender for rt, for use after Start.
func (p *Pod) Messenger(rt sharding.RecipientType) *router.Messenger {
	return p.router.Messenger(rt)
}

// Broadcaster returns the one-to-all-pods sender for rt, for use after
// Start.
func (p *Pod) Broadcaster(rt sharding.RecipientType) *router.Broadcaster {
	return p.router.Broadcaster(rt)
}

// Handler returns this pod's transport.Handler, for mounting onto a gRPC
// server with transport.Register.
func (p *Pod) Handler() transport.Handler {
	return p.router
}

// Start registers this pod with the Shard Manager and begins the assignment
// refresh pipeline, blocking until the bootstrap snapshot has been applied
// or ctx is done.
func (p *Pod) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	if err := p.registerWithRetry(ctx); err != nil {
		cancel()
		return fmt.Errorf("register with shard manager: %w", err)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.refresher.Run(runCtx)
	}()

	select {
	case <-p.refresher.Ready():
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}

	p.started = true
	p.logger.Info("pod started", zap.String("pod", p.self.String()))
	return nil
}

func (p *Pod) registerWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < 10; attempt++ {
		if err := p.shardMgr.Register(ctx, p.self); err != nil {
			lastErr = err
			p.logger.Warn("register with shard manager failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
			select {
			case <-time.After(400 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		return nil
	}
	return lastErr
}

// Shutdown drains this pod: it stops accepting new entity activations,
// unregisters from the Shard Manager, terminates every entity (bounded by
// EntityTerminationTimeout), stops every running singleton, and closes the
// pod-to-pod transport and assignment stream connections.
func (p *Pod) Shutdown(ctx context.Context) error {
	if !p.started {
		return nil
	}

	p.router.BeginShutdown()

	unregisterCtx, unregisterCancel := context.WithTimeout(ctx, p.cfg.Sharding.ToSharding().SendTimeout)
	if err := p.shardMgr.Unregister(unregisterCtx, p.self); err != nil {
		p.logger.Warn("unregister from shard manager failed", zap.Error(err))
	}
	unregisterCancel()

	p.singletons.StopAll()

	var firstErr error
	if err := p.router.StopAllTypes(ctx); err != nil {
		firstErr = err
	}

	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	if err := p.assignSub.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := p.pods.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if closer, ok := p.shardMgr.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	p.logger.Info("pod stopped", zap.String("pod", p.self.String()))
	return firstErr
}

// Self returns this pod's own address.
func (p *Pod) Self() sharding.PodAddress {
	return p.self
}
