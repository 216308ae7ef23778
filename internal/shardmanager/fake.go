package shardmanager

import (
	"context"
	"sync"

	"github.com/dreamware/shardrt/internal/sharding"
)

// Fake is an in-memory Client used by tests and by internal/assignment's
// own test suite, grounded on torua's in-memory ShardRegistry pattern
// (defensive-copy reads under a single mutex).
type Fake struct {
	mu          sync.Mutex
	registered  map[sharding.PodAddress]bool
	assignments map[sharding.ShardID]sharding.PodAddress
	unhealthy   []sharding.PodAddress
}

var _ Client = (*Fake)(nil)

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{
		registered:  make(map[sharding.PodAddress]bool),
		assignments: make(map[sharding.ShardID]sharding.PodAddress),
	}
}

func (f *Fake) Register(_ context.Context, pod sharding.PodAddress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered[pod] = true
	return nil
}

func (f *Fake) Unregister(_ context.Context, pod sharding.PodAddress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.registered, pod)
	return nil
}

func (f *Fake) GetAssignments(_ context.Context) (map[sharding.ShardID]sharding.PodAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[sharding.ShardID]sharding.PodAddress, len(f.assignments))
	for k, v := range f.assignments {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) NotifyUnhealthyPod(_ context.Context, pod sharding.PodAddress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unhealthy = append(f.unhealthy, pod)
	return nil
}

// SetAssignment lets a test pre-seed the snapshot GetAssignments returns.
func (f *Fake) SetAssignment(shard sharding.ShardID, pod sharding.PodAddress) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignments[shard] = pod
}

// IsRegistered reports whether pod is currently registered.
func (f *Fake) IsRegistered(pod sharding.PodAddress) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registered[pod]
}

// UnhealthyReports returns every pod reported via NotifyUnhealthyPod, in
// call order.
func (f *Fake) UnhealthyReports() []sharding.PodAddress {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sharding.PodAddress, len(f.unhealthy))
	copy(out, f.unhealthy)
	return out
}
