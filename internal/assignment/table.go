// Package assignment implements the Assignment Table and the Assignment
// Refresher that keeps it current: the shard-to-pod map every other
// component consults to know what this pod owns and where to send
// everything else.
package assignment

import (
	"sync"

	"github.com/dreamware/shardrt/internal/sharding"
)

type entry struct {
	pod sharding.PodAddress
	// local marks a shard this pod owns, written via Assign or by a
	// snapshot naming this pod; the assignment-stream merge never
	// overwrites these.
	local bool
}

// Table is the Assignment Table: ShardID -> PodAddress, at most one pod per
// shard, a shard may be absent entirely.
type Table struct {
	mu       sync.RWMutex
	self     sharding.PodAddress
	entries  map[sharding.ShardID]entry
	onChange func()
}

// NewTable returns an empty Table for the pod at self.
func NewTable(self sharding.PodAddress) *Table {
	return &Table{self: self, entries: make(map[sharding.ShardID]entry)}
}

// OnChange registers a callback invoked after every mutation (Assign,
// Unassign, or a merged remote snapshot). Used by internal/pod to trigger
// the Singleton Controller's reconciler without this package depending on
// that one.
func (t *Table) OnChange(f func()) {
	t.mu.Lock()
	t.onChange = f
	t.mu.Unlock()
}

func (t *Table) notify() {
	t.mu.RLock()
	f := t.onChange
	t.mu.RUnlock()
	if f != nil {
		f()
	}
}

// Assign records that this pod now authoritatively owns shards. Called when
// the Shard Manager pushes an assignment directly to this pod.
func (t *Table) Assign(shards []sharding.ShardID) {
	t.mu.Lock()
	for _, s := range shards {
		t.entries[s] = entry{pod: t.self, local: true}
	}
	t.mu.Unlock()
	t.notify()
}

// Unassign drops this pod's local ownership of shards. Entries owned by
// another pod are left in place.
func (t *Table) Unassign(shards []sharding.ShardID) {
	t.mu.Lock()
	for _, s := range shards {
		if e, ok := t.entries[s]; ok && e.local {
			delete(t.entries, s)
		}
	}
	t.mu.Unlock()
	t.notify()
}

// MergeRemote installs a full remote snapshot, preserving every local entry
// untouched (the authority rule: local entries are never overwritten by the
// asynchronous change stream) and replacing every non-local entry with
// what the snapshot says, dropping non-local shards the snapshot omits.
// A snapshot entry naming this pod is installed as a local entry.
func (t *Table) MergeRemote(snapshot map[sharding.ShardID]sharding.PodAddress) {
	t.mu.Lock()
	next := make(map[sharding.ShardID]entry, len(snapshot)+len(t.entries))
	for shard, e := range t.entries {
		if e.local {
			next[shard] = e
		}
	}
	for shard, pod := range snapshot {
		if existing, ok := next[shard]; ok && existing.local {
			continue
		}
		next[shard] = entry{pod: pod, local: pod == t.self}
	}
	t.entries = next
	t.mu.Unlock()
	t.notify()
}

// PodFor returns the pod owning shard, if any.
func (t *Table) PodFor(shard sharding.ShardID) (sharding.PodAddress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[shard]
	if !ok {
		return sharding.PodAddress{}, false
	}
	return e.pod, true
}

// IsLocal reports whether this pod authoritatively owns shard.
func (t *Table) IsLocal(shard sharding.ShardID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[shard]
	return ok && e.local
}

// LocalShards returns every shard this pod currently owns.
func (t *Table) LocalShards() []sharding.ShardID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]sharding.ShardID, 0, len(t.entries))
	for s, e := range t.entries {
		if e.local {
			out = append(out, s)
		}
	}
	return out
}

// LocalShardCount returns len(LocalShards()) without allocating a slice.
func (t *Table) LocalShardCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, e := range t.entries {
		if e.local {
			n++
		}
	}
	return n
}

// AllAssignments returns a defensive copy of the full shard-to-pod map.
func (t *Table) AllAssignments() map[sharding.ShardID]sharding.PodAddress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[sharding.ShardID]sharding.PodAddress, len(t.entries))
	for s, e := range t.entries {
		out[s] = e.pod
	}
	return out
}
