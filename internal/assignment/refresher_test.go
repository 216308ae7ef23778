package assignment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dreamware/shardrt/internal/assignstream"
	"github.com/dreamware/shardrt/internal/shardmanager"
	"github.com/dreamware/shardrt/internal/sharding"
)

func testConfig() sharding.Config {
	cfg := sharding.DefaultConfig()
	cfg.RefreshAssignmentsRetryInterval = 20 * time.Millisecond
	return cfg
}

func TestRefresherBootstrapMergesSnapshotAndBecomesReady(t *testing.T) {
	self := sharding.PodAddress{Host: "self", Port: 1}
	other := sharding.PodAddress{Host: "other", Port: 2}
	tbl := NewTable(self)

	client := shardmanager.NewFake()
	client.SetAssignment(5, other)
	stream := assignstream.NewFake()

	r := NewRefresher(tbl, client, stream, "pod-1", testConfig(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	select {
	case <-r.Ready():
	case <-time.After(time.Second):
		t.Fatalf("refresher never became ready")
	}

	if got, ok := tbl.PodFor(5); !ok || got != other {
		t.Fatalf("PodFor(5) = %v, %v, want %v, true", got, ok, other)
	}
}

func TestRefresherAppliesSubsequentStreamSnapshots(t *testing.T) {
	self := sharding.PodAddress{Host: "self", Port: 1}
	pushed := sharding.PodAddress{Host: "pushed", Port: 3}
	tbl := NewTable(self)

	client := shardmanager.NewFake()
	stream := assignstream.NewFake()

	r := NewRefresher(tbl, client, stream, "pod-1", testConfig(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	<-r.Ready()
	stream.Push(assignstream.Snapshot{7: pushed})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if got, ok := tbl.PodFor(7); ok && got == pushed {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("pushed snapshot for shard 7 was never merged")
}

// failingClient returns an error the first N calls, then delegates to a
// Fake, exercising the bootstrap-retry path.
type failingClient struct {
	mu       sync.Mutex
	fails    int
	delegate *shardmanager.Fake
}

func (c *failingClient) Register(ctx context.Context, pod sharding.PodAddress) error {
	return c.delegate.Register(ctx, pod)
}

func (c *failingClient) Unregister(ctx context.Context, pod sharding.PodAddress) error {
	return c.delegate.Unregister(ctx, pod)
}

func (c *failingClient) GetAssignments(ctx context.Context) (map[sharding.ShardID]sharding.PodAddress, error) {
	c.mu.Lock()
	if c.fails > 0 {
		c.fails--
		c.mu.Unlock()
		return nil, errors.New("shard manager unreachable")
	}
	c.mu.Unlock()
	return c.delegate.GetAssignments(ctx)
}

func (c *failingClient) NotifyUnhealthyPod(ctx context.Context, pod sharding.PodAddress) error {
	return c.delegate.NotifyUnhealthyPod(ctx, pod)
}

func TestRefresherRetriesBootstrapOnFailure(t *testing.T) {
	self := sharding.PodAddress{Host: "self", Port: 1}
	other := sharding.PodAddress{Host: "other", Port: 2}
	tbl := NewTable(self)

	delegate := shardmanager.NewFake()
	delegate.SetAssignment(9, other)
	client := &failingClient{fails: 2, delegate: delegate}
	stream := assignstream.NewFake()

	r := NewRefresher(tbl, client, stream, "pod-1", testConfig(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	select {
	case <-r.Ready():
	case <-time.After(2 * time.Second):
		t.Fatalf("refresher never recovered from bootstrap failures")
	}

	if got, ok := tbl.PodFor(9); !ok || got != other {
		t.Fatalf("PodFor(9) = %v, %v, want %v, true", got, ok, other)
	}
}

func TestRefresherStopsOnContextCancellation(t *testing.T) {
	tbl := NewTable(sharding.PodAddress{Host: "self", Port: 1})
	client := shardmanager.NewFake()
	stream := assignstream.NewFake()
	r := NewRefresher(tbl, client, stream, "pod-1", testConfig(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	<-r.Ready()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after context cancellation")
	}
}
