// Package entity implements the Entity Manager: the per-recipient-type
// table of locally running entities, their mailboxes, and the idle
// expiration loop that retires them.
package entity

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/shardrt/internal/metrics"
	"github.com/dreamware/shardrt/internal/reply"
	"github.com/dreamware/shardrt/internal/sharding"
)

// LocalShardChecker is the narrow capability the Sharding Router exposes to
// an Entity Manager so the two packages do not need to reference each
// other's concrete types (see SPEC_FULL.md §9 "Design Notes" on
// cyclic-reference avoidance).
type LocalShardChecker interface {
	// IsEntityOnLocalShards reports whether entityID currently hashes to
	// a shard this pod owns.
	IsEntityOnLocalShards(entityID string) bool
	// IsShuttingDown reports whether the pod has begun a graceful
	// shutdown and should refuse new entity activations.
	IsShuttingDown() bool
	// ShardID resolves the shard entityID hashes to, for
	// TerminateEntitiesOnShards filtering.
	ShardID(entityID string) sharding.ShardID
}

// Behavior is the function supplied by the caller that owns one running
// entity for its lifetime. It must return once its mailbox is closed or its
// context is cancelled.
type Behavior func(ctx context.Context, entityID string, mailbox *Mailbox)

// Manager is the Entity Manager for one RecipientType.
type Manager struct {
	recipientType sharding.RecipientType
	behavior       Behavior
	checker        LocalShardChecker
	cfg            sharding.Config
	sink           metrics.Sink
	logger         *zap.Logger

	mu    sync.Mutex
	slots map[string]*slot

	idleCancel context.CancelFunc
	idleWG     sync.WaitGroup
}

// NewManager constructs an Entity Manager. logger may be nil, in which case
// a no-op logger is used.
func NewManager(rt sharding.RecipientType, behavior Behavior, checker LocalShardChecker, cfg sharding.Config, sink metrics.Sink, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = metrics.Noop{}
	}
	return &Manager{
		recipientType: rt,
		behavior:      behavior,
		checker:       checker,
		cfg:           cfg,
		sink:          sink,
		logger:        logger.With(zap.String("entity_type", rt.Name)),
		slots:         make(map[string]*slot),
	}
}

// Start launches the idle expiration loop. Safe to call once per Manager.
func (m *Manager) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.idleCancel = cancel
	m.idleWG.Add(1)
	go m.runIdleLoop(ctx)
}

// Send delivers body to entityID's mailbox, creating the entity if it is
// not yet active. replyCh, if non-nil, is handed to the behavior through
// the envelope so it can answer. Returns
// *sharding.EntityNotManagedByThisPodError if entityID does not hash to a
// shard this pod owns, or if the entity is mid-termination (the caller
// should retry against a fresh assignment lookup in both cases). A slot
// lookup can race a just-finished entity's teardown and find a mailbox
// that closed out from under it; that case is retried internally with
// backoff rather than surfaced to the caller.
func (m *Manager) Send(ctx context.Context, entityID string, body []byte, replyCh reply.Channel) error {
	for {
		err := m.trySend(entityID, body, replyCh)
		if !errors.Is(err, errMailboxClosed) {
			return err
		}
		timer := time.NewTimer(m.cfg.SendRetryInterval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

func (m *Manager) trySend(entityID string, body []byte, replyCh reply.Channel) error {
	m.mu.Lock()
	if m.checker.IsShuttingDown() {
		m.mu.Unlock()
		return &sharding.EntityNotManagedByThisPodError{EntityType: m.recipientType.Name, EntityID: entityID}
	}

	s, exists := m.slots[entityID]
	spawn := false
	if exists && s.state == slotTerminating {
		m.mu.Unlock()
		return &sharding.EntityNotManagedByThisPodError{EntityType: m.recipientType.Name, EntityID: entityID, Shard: m.checker.ShardID(entityID)}
	}
	if !exists {
		if !m.checker.IsEntityOnLocalShards(entityID) {
			m.mu.Unlock()
			return &sharding.EntityNotManagedByThisPodError{EntityType: m.recipientType.Name, EntityID: entityID, Shard: m.checker.ShardID(entityID)}
		}
		s = newSlot()
		m.slots[entityID] = s
		spawn = true
	}
	s.lastReceived = time.Now()
	m.mu.Unlock()

	if err := s.mailbox.Enqueue(reply.Envelope{Body: body, Reply: replyCh}); err != nil {
		return err
	}

	if spawn {
		go m.runEntity(entityID, s)
		m.reportCount()
	}
	return nil
}

func (m *Manager) runEntity(entityID string, s *slot) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-s.termSignal:
			cancel()
		case <-ctx.Done():
		}
	}()

	m.behavior(ctx, entityID, s.mailbox)
	s.mailbox.Close()

	m.mu.Lock()
	delete(m.slots, entityID)
	m.mu.Unlock()

	close(s.done)
	m.reportCount()
}

// TerminateEntity asks entityID to shut down gracefully. No-op if the
// entity is not active or is already terminating.
func (m *Manager) TerminateEntity(entityID string) {
	m.mu.Lock()
	s, ok := m.slots[entityID]
	if !ok || s.state == slotTerminating {
		m.mu.Unlock()
		return
	}
	s.state = slotTerminating
	close(s.termSignal)
	m.mu.Unlock()
}

// TerminateEntitiesOnShards terminates every active entity whose shard is
// in shards and waits for each to finish, up to cfg.EntityTerminationTimeout
// overall; entities still running past the timeout are abandoned. Called
// when the Shard Manager unassigns a shard from this pod.
func (m *Manager) TerminateEntitiesOnShards(ctx context.Context, shards map[sharding.ShardID]struct{}) error {
	m.mu.Lock()
	ids := make([]string, 0)
	dones := make([]chan struct{}, 0)
	for id, s := range m.slots {
		if _, hit := shards[m.checker.ShardID(id)]; hit {
			ids = append(ids, id)
			dones = append(dones, s.done)
		}
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.TerminateEntity(id)
	}

	return m.awaitDone(ctx, dones)
}

// TerminateAllEntities terminates every active entity and waits for each to
// finish, up to cfg.EntityTerminationTimeout overall.
func (m *Manager) TerminateAllEntities(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.slots))
	dones := make([]chan struct{}, 0, len(m.slots))
	for id, s := range m.slots {
		ids = append(ids, id)
		dones = append(dones, s.done)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.TerminateEntity(id)
	}

	return m.awaitDone(ctx, dones)
}

// awaitDone blocks until every channel in dones is closed, up to
// cfg.EntityTerminationTimeout overall, or ctx is done.
func (m *Manager) awaitDone(ctx context.Context, dones []chan struct{}) error {
	deadline := time.Now().Add(m.cfg.EntityTerminationTimeout)
	for _, done := range dones {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return context.DeadlineExceeded
		}
		timer := time.NewTimer(remaining)
		select {
		case <-done:
			timer.Stop()
		case <-timer.C:
			return context.DeadlineExceeded
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return nil
}

// Stop halts the idle loop and terminates every remaining entity.
func (m *Manager) Stop(ctx context.Context) error {
	if m.idleCancel != nil {
		m.idleCancel()
	}
	m.idleWG.Wait()
	return m.TerminateAllEntities(ctx)
}

// runIdleLoop periodically scans for entities past EntityMaxIdleTime. It is
// a single long-lived loop rather than a self-rescheduling timer, so there
// is exactly one goroutine per Manager regardless of entity count.
func (m *Manager) runIdleLoop(ctx context.Context) {
	defer m.idleWG.Done()

	interval := m.cfg.EntityMaxIdleTime / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.expireIdle()
		}
	}
}

func (m *Manager) expireIdle() {
	cutoff := time.Now().Add(-m.cfg.EntityMaxIdleTime)
	m.mu.Lock()
	ids := make([]string, 0)
	for id, s := range m.slots {
		if s.state == slotActive && s.lastReceived.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.logger.Debug("expiring idle entity", zap.String("entity_id", id))
		m.TerminateEntity(id)
	}
}

func (m *Manager) reportCount() {
	m.mu.Lock()
	n := len(m.slots)
	m.mu.Unlock()
	m.sink.SetEntityCount(m.recipientType.Name, n)
}
