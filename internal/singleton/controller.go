// Package singleton implements the Singleton Controller: the mechanism
// that runs exactly one instance of each registered long-lived task,
// wherever the sentinel shard currently lives.
package singleton

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dreamware/shardrt/internal/assignment"
	"github.com/dreamware/shardrt/internal/metrics"
	"github.com/dreamware/shardrt/internal/sharding"
)

// Task is a long-running singleton body. It must return promptly once ctx
// is cancelled.
type Task func(ctx context.Context)

type record struct {
	task    Task
	cancel  context.CancelFunc
	running bool
}

// Controller owns every registered singleton for one pod and starts or
// stops each according to whether this pod currently holds
// sharding.SingletonShardID.
type Controller struct {
	table  *assignment.Table
	sink   metrics.Sink
	logger *zap.Logger

	mu          sync.Mutex
	records     map[string]*record
	reconciling bool
	pending     bool
}

// NewController builds a Controller watching table for ownership of the
// sentinel shard. sink and logger may be nil.
func NewController(table *assignment.Table, sink metrics.Sink, logger *zap.Logger) *Controller {
	if sink == nil {
		sink = metrics.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		table:   table,
		sink:    sink,
		logger:  logger,
		records: make(map[string]*record),
	}
}

// Register adds a named singleton task and immediately triggers a
// reconciliation pass. Registering twice under the same name replaces the
// task; if the previous one was running, it is stopped first.
func (c *Controller) Register(name string, task Task) {
	c.mu.Lock()
	if old, ok := c.records[name]; ok && old.running && old.cancel != nil {
		old.cancel()
	}
	c.records[name] = &record{task: task}
	c.mu.Unlock()
	c.Reconcile()
}

// Reconcile triggers a reconciliation pass. Concurrent triggers coalesce
// into a single extra pass rather than queueing one per call.
func (c *Controller) Reconcile() {
	c.mu.Lock()
	if c.reconciling {
		c.pending = true
		c.mu.Unlock()
		return
	}
	c.reconciling = true
	c.mu.Unlock()

	go c.runLoop()
}

func (c *Controller) runLoop() {
	for {
		c.reconcileOnce()
		c.mu.Lock()
		if !c.pending {
			c.reconciling = false
			c.mu.Unlock()
			return
		}
		c.pending = false
		c.mu.Unlock()
	}
}

func (c *Controller) reconcileOnce() {
	owns := c.table.IsLocal(sharding.SingletonShardID)

	c.mu.Lock()
	names := make([]string, 0, len(c.records))
	for name := range c.records {
		names = append(names, name)
	}
	c.mu.Unlock()

	for _, name := range names {
		c.mu.Lock()
		rec, ok := c.records[name]
		if !ok {
			c.mu.Unlock()
			continue
		}
		running := rec.running
		c.mu.Unlock()

		switch {
		case owns && !running:
			c.start(name, rec)
		case !owns && running:
			c.stop(rec)
		}
	}
}

func (c *Controller) start(name string, rec *record) {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	rec.cancel = cancel
	rec.running = true
	task := rec.task
	c.mu.Unlock()

	c.sink.SetSingletonRunning(name, true)
	c.logger.Info("singleton starting", zap.String("name", name))

	go func() {
		task(ctx)
		c.mu.Lock()
		rec.running = false
		rec.cancel = nil
		c.mu.Unlock()
		c.sink.SetSingletonRunning(name, false)
		c.logger.Info("singleton stopped", zap.String("name", name))
	}()
}

func (c *Controller) stop(rec *record) {
	c.mu.Lock()
	cancel := rec.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// StopAll cancels every running singleton, for use during graceful
// shutdown. It does not wait for the tasks to actually return; callers
// that need that should give each task's own cleanup a bounded deadline.
func (c *Controller) StopAll() {
	c.mu.Lock()
	recs := make([]*record, 0, len(c.records))
	for _, rec := range c.records {
		recs = append(recs, rec)
	}
	c.mu.Unlock()

	for _, rec := range recs {
		c.stop(rec)
	}
}

// IsRunning reports whether the named singleton is currently running on
// this pod.
func (c *Controller) IsRunning(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[name]
	return ok && rec.running
}
