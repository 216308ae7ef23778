package router

import (
	"context"
	"sync"

	"github.com/dreamware/shardrt/internal/sharding"
)

// Result is one pod's outcome from a Broadcast call.
type Result struct {
	Body []byte
	// HasValue distinguishes "replied with a value" from "fire-and-forget
	// produced no value", keeping that distinction explicit rather than
	// collapsing it into nil.
	HasValue bool
	Err      error
}

// Broadcaster is the one-to-all-pods sender, scoped to one RecipientType.
// It fans a send out to every pod that
// currently owns at least one shard, regardless of whether that pod owns
// the shard entityID would hash to — each pod is expected to keep its own
// local instance under entityID (the Topic variant's contract).
type Broadcaster struct {
	router *Router
	rt     sharding.RecipientType
}

// Broadcast fans body out to every known pod in parallel and collects a
// Result per pod. A pod that times out or fails is reported in its own
// Result rather than failing the whole call.
func (b *Broadcaster) Broadcast(ctx context.Context, entityID string, body []byte) map[sharding.PodAddress]Result {
	pods := b.router.distinctPods()
	results := make(map[sharding.PodAddress]Result, len(pods))
	if len(pods) == 0 {
		return results
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, pod := range pods {
		wg.Add(1)
		go func(pod sharding.PodAddress) {
			defer wg.Done()
			out, err := b.sendToPod(ctx, pod, entityID, body)
			res := Result{Err: err}
			if err == nil {
				res.Body = out
				res.HasValue = out != nil
			}
			mu.Lock()
			results[pod] = res
			mu.Unlock()
		}(pod)
	}
	wg.Wait()
	return results
}

// BroadcastDiscard fans body out to every known pod, ignoring the outcome
// of each. Returns immediately when there are no pods.
func (b *Broadcaster) BroadcastDiscard(ctx context.Context, entityID string, body []byte) {
	pods := b.router.distinctPods()
	var wg sync.WaitGroup
	for _, pod := range pods {
		wg.Add(1)
		go func(pod sharding.PodAddress) {
			defer wg.Done()
			_, _ = b.sendToPod(ctx, pod, entityID, body)
		}(pod)
	}
	wg.Wait()
}

// sendToPod is the internal primitive behind Broadcast and BroadcastDiscard:
// deliver directly to a named pod, bypassing the
// Assignment Table's shard-ownership lookup because the caller already
// knows which pod to reach.
func (b *Broadcaster) sendToPod(ctx context.Context, pod sharding.PodAddress, entityID string, body []byte) ([]byte, error) {
	if pod == b.router.self {
		mgr, ok := b.router.managerFor(b.rt.Name)
		if !ok {
			return nil, &sharding.EntityNotManagedByThisPodError{EntityType: b.rt.Name, EntityID: entityID}
		}
		return b.router.sendViaManager(ctx, mgr, entityID, body)
	}
	return b.router.pods.Send(ctx, pod, b.rt.Name, entityID, body)
}
