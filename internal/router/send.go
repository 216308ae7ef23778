package router

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/shardrt/internal/entity"
	"github.com/dreamware/shardrt/internal/reply"
	"github.com/dreamware/shardrt/internal/sharding"
)

// send is the Router's core point-to-point dispatch: resolve the target
// pod, deliver locally or remotely, and retry the transient error kinds
// (EntityNotManagedByThisPod, PodUnavailable) until ctx's deadline — the
// caller-configured SendTimeout — expires. discard skips decoding and
// returning the reply body.
func (r *Router) send(ctx context.Context, rt sharding.RecipientType, entityID string, body []byte, discard bool) ([]byte, error) {
	if r.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.SendTimeout)
		defer cancel()
	}

	out, err := r.sendRetrying(ctx, rt, entityID, body, discard)
	switch {
	case err == nil:
		r.sink.IncSendOutcome("ok")
		return out, nil
	case ctx.Err() != nil:
		r.sink.IncSendOutcome("timeout")
		return nil, &sharding.SendTimeoutError{EntityType: rt.Name, EntityID: entityID}
	default:
		r.sink.IncSendOutcome("failed")
		return nil, err
	}
}

func (r *Router) sendRetrying(ctx context.Context, rt sharding.RecipientType, entityID string, body []byte, discard bool) ([]byte, error) {
	for {
		out, err := r.attemptSend(ctx, rt, entityID, body, discard)
		if err == nil {
			return out, nil
		}

		switch e := err.(type) {
		case *sharding.EntityNotManagedByThisPodError:
			if werr := r.sleepRetry(ctx); werr != nil {
				return nil, werr
			}
		case *sharding.PodUnavailableError:
			r.reportUnhealthy(e.Pod)
			if werr := r.sleepRetry(ctx); werr != nil {
				return nil, werr
			}
		default:
			return nil, err
		}
	}
}

func (r *Router) sleepRetry(ctx context.Context) error {
	timer := time.NewTimer(r.cfg.SendRetryInterval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Router) attemptSend(ctx context.Context, rt sharding.RecipientType, entityID string, body []byte, discard bool) ([]byte, error) {
	shard := rt.ShardOf(entityID, r.cfg.NumShards)
	pod, ok := r.table.PodFor(shard)
	if !ok {
		return nil, &sharding.EntityNotManagedByThisPodError{EntityType: rt.Name, EntityID: entityID, Shard: shard}
	}

	if pod == r.self {
		return r.sendLocal(ctx, rt, entityID, body, discard)
	}
	return r.sendRemote(ctx, pod, rt, entityID, body, discard)
}

func (r *Router) sendLocal(ctx context.Context, rt sharding.RecipientType, entityID string, body []byte, discard bool) ([]byte, error) {
	mgr, ok := r.managerFor(rt.Name)
	if !ok {
		return nil, &sharding.EntityNotManagedByThisPodError{EntityType: rt.Name, EntityID: entityID}
	}

	if discard {
		if err := mgr.Send(ctx, entityID, body, nil); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return r.sendViaManager(ctx, mgr, entityID, body)
}

// sendViaManager delivers body to entityID through mgr, registering the
// reply channel under a fresh reply ID before enqueueing it; the registry
// entry is removed by the channel's own completion hook once the behavior
// answers.
func (r *Router) sendViaManager(ctx context.Context, mgr *entity.Manager, entityID string, body []byte) ([]byte, error) {
	replyID := uuid.NewString()
	single := reply.NewSingle()
	wrapped := r.registry.Register(replyID, single)
	if err := mgr.Send(ctx, entityID, body, wrapped); err != nil {
		r.registry.Remove(replyID)
		return nil, err
	}
	return single.Output(ctx)
}

func (r *Router) sendRemote(ctx context.Context, pod sharding.PodAddress, rt sharding.RecipientType, entityID string, body []byte, discard bool) ([]byte, error) {
	out, err := r.pods.Send(ctx, pod, rt.Name, entityID, body)
	if err != nil {
		return nil, err
	}
	if discard {
		return nil, nil
	}
	return out, nil
}

// sendStream is the streaming counterpart of send: it retries the dispatch
// itself (not individual chunks) against the same transient error kinds.
func (r *Router) sendStream(ctx context.Context, rt sharding.RecipientType, entityID string, body []byte) (<-chan reply.StreamItem, error) {
	for {
		out, err := r.attemptSendStream(ctx, rt, entityID, body)
		if err == nil {
			return out, nil
		}

		switch e := err.(type) {
		case *sharding.EntityNotManagedByThisPodError:
			if werr := r.sleepRetry(ctx); werr != nil {
				return nil, &sharding.SendTimeoutError{EntityType: rt.Name, EntityID: entityID}
			}
		case *sharding.PodUnavailableError:
			r.reportUnhealthy(e.Pod)
			if werr := r.sleepRetry(ctx); werr != nil {
				return nil, &sharding.SendTimeoutError{EntityType: rt.Name, EntityID: entityID}
			}
		default:
			return nil, err
		}
	}
}

func (r *Router) attemptSendStream(ctx context.Context, rt sharding.RecipientType, entityID string, body []byte) (<-chan reply.StreamItem, error) {
	shard := rt.ShardOf(entityID, r.cfg.NumShards)
	pod, ok := r.table.PodFor(shard)
	if !ok {
		return nil, &sharding.EntityNotManagedByThisPodError{EntityType: rt.Name, EntityID: entityID, Shard: shard}
	}

	if pod == r.self {
		mgr, ok := r.managerFor(rt.Name)
		if !ok {
			return nil, &sharding.EntityNotManagedByThisPodError{EntityType: rt.Name, EntityID: entityID}
		}
		replyID := uuid.NewString()
		stream := reply.NewStream()
		wrapped := r.registry.Register(replyID, stream)
		if err := mgr.Send(ctx, entityID, body, wrapped); err != nil {
			r.registry.Remove(replyID)
			return nil, err
		}
		return stream.Output(), nil
	}

	return r.pods.SendStream(ctx, pod, rt.Name, entityID, body)
}
