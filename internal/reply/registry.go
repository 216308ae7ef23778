package reply

import (
	"context"
	"sync"
)

// Registry is the Reply Registry: replyID -> Channel, populated when the
// Sharding Router dispatches a request carrying a reply ID, with the entry
// removed once the channel reaches a terminal state. A replyID maps to at
// most one channel; there is no explicit TTL, only the completion hook.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Channel
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Channel)}
}

// Register installs ch under id and returns a wrapped Channel that removes
// itself from the registry the first time it completes. Callers must hand
// the returned Channel (not ch) to whatever enqueues the message, so the
// completion hook actually fires.
func (r *Registry) Register(id string, ch Channel) Channel {
	wrapped := withCompletionHook(ch, func() { r.Remove(id) })
	r.mu.Lock()
	r.entries[id] = wrapped
	r.mu.Unlock()
	return wrapped
}

// Lookup returns the channel registered under id, for the polymorphic-reply
// pathway: a handler that only received a replyID reconstructs the typed
// sink by looking it up here.
func (r *Registry) Lookup(id string) (Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.entries[id]
	return ch, ok
}

// Remove deletes id's entry, if present. Idempotent.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Len reports the number of pending entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// hookedChannel decorates a Channel so its first terminal operation runs a
// callback, used to drive the registry's own-cleanup invariant.
type hookedChannel struct {
	inner  Channel
	once   sync.Once
	onDone func()
}

func withCompletionHook(ch Channel, onDone func()) Channel {
	return &hookedChannel{inner: ch, onDone: onDone}
}

var _ Channel = (*hookedChannel)(nil)

func (h *hookedChannel) Kind() Kind { return h.inner.Kind() }

func (h *hookedChannel) ReplySingle(body []byte) error {
	err := h.inner.ReplySingle(body)
	h.fire()
	return err
}

func (h *hookedChannel) ReplyStream(body []byte) error {
	err := h.inner.ReplyStream(body)
	if h.inner.Kind() == Single {
		h.fire()
	}
	return err
}

func (h *hookedChannel) End() error {
	err := h.inner.End()
	h.fire()
	return err
}

func (h *hookedChannel) Fail(err error) error {
	ferr := h.inner.Fail(err)
	h.fire()
	return ferr
}

func (h *hookedChannel) Await(ctx context.Context) error {
	return h.inner.Await(ctx)
}

func (h *hookedChannel) fire() {
	h.once.Do(h.onDone)
}
