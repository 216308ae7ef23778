package assignstream

import "context"

// Fake is an in-memory Subscriber a test drives directly by calling Push.
type Fake struct {
	ch chan Snapshot
}

// NewFake returns a Fake with a small buffered channel.
func NewFake() *Fake {
	return &Fake{ch: make(chan Snapshot, 8)}
}

var _ Subscriber = (*Fake)(nil)

func (f *Fake) Subscribe(ctx context.Context, podID string) (<-chan Snapshot, error) {
	return f.ch, nil
}

// Push delivers snap to the subscriber.
func (f *Fake) Push(snap Snapshot) {
	f.ch <- snap
}

func (f *Fake) Close() error {
	close(f.ch)
	return nil
}
