package entity

import (
	"container/list"
	"context"
	"errors"
	"sync"

	"github.com/dreamware/shardrt/internal/reply"
)

var errMailboxClosed = errors.New("mailbox closed")

// Mailbox is an unbounded FIFO queue of reply.Envelope values. Enqueue never
// blocks the caller, which keeps a slow or stuck entity from back-pressuring
// the sender. A bounded buffered channel would impose exactly the
// backpressure point this is meant to avoid, so the queue is a plain linked
// list behind a mutex.
type Mailbox struct {
	mu     sync.Mutex
	queue  *list.List
	notify chan struct{}
	closed bool
}

// NewMailbox returns an empty, open mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{queue: list.New(), notify: make(chan struct{}, 1)}
}

// Enqueue appends e. Returns errMailboxClosed if the mailbox has already
// been closed (the owning entity has fully terminated).
func (m *Mailbox) Enqueue(e reply.Envelope) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errMailboxClosed
	}
	m.queue.PushBack(e)
	m.mu.Unlock()
	m.wake()
	return nil
}

// Dequeue blocks until an envelope is available, the mailbox is closed, or
// ctx is done. The second return is false exactly when no envelope was
// returned.
func (m *Mailbox) Dequeue(ctx context.Context) (reply.Envelope, bool) {
	for {
		m.mu.Lock()
		if front := m.queue.Front(); front != nil {
			m.queue.Remove(front)
			m.mu.Unlock()
			return front.Value.(reply.Envelope), true
		}
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return reply.Envelope{}, false
		}
		select {
		case <-m.notify:
		case <-ctx.Done():
			return reply.Envelope{}, false
		}
	}
}

// Close marks the mailbox closed. Already-queued envelopes remain
// retrievable via Dequeue until drained; Enqueue after Close fails.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wake()
}

// Len reports the number of envelopes currently queued.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

func (m *Mailbox) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}
