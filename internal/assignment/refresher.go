package assignment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/shardrt/internal/assignstream"
	"github.com/dreamware/shardrt/internal/metrics"
	"github.com/dreamware/shardrt/internal/shardmanager"
	"github.com/dreamware/shardrt/internal/sharding"
)

// errStreamClosed signals runOnce's subscribe loop ended because the
// stream channel closed while the context was still live, which the
// caller should treat as a failure worth retrying rather than a clean
// shutdown.
var errStreamClosed = errors.New("assignment stream closed unexpectedly")

// Refresher runs the bootstrap-snapshot-then-subscribe pipeline that keeps
// a Table current: fetch the full snapshot once via the Shard Manager RPC,
// merge it in, then apply every subsequent snapshot pushed over the
// assignment change stream. On any failure it retries the whole pipeline
// from the bootstrap step after RefreshAssignmentsRetryInterval.
type Refresher struct {
	table    *Table
	client   shardmanager.Client
	stream   assignstream.Subscriber
	podID    string
	interval time.Duration
	sink     metrics.Sink
	logger   *zap.Logger

	readyOnce sync.Once
	ready     chan struct{}
}

// NewRefresher builds a Refresher. sink and logger may be nil, defaulting
// to a no-op sink and a no-op logger.
func NewRefresher(table *Table, client shardmanager.Client, stream assignstream.Subscriber, podID string, cfg sharding.Config, sink metrics.Sink, logger *zap.Logger) *Refresher {
	if sink == nil {
		sink = metrics.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		table:    table,
		client:   client,
		stream:   stream,
		podID:    podID,
		interval: cfg.RefreshAssignmentsRetryInterval,
		sink:     sink,
		logger:   logger,
		ready:    make(chan struct{}),
	}
}

// Ready returns a channel closed once the first bootstrap snapshot has
// been merged into the Table. Callers that must not route traffic before
// an initial view of the cluster exists should wait on it.
func (r *Refresher) Ready() <-chan struct{} {
	return r.ready
}

// Run drives the refresh pipeline until ctx is cancelled, retrying the
// whole bootstrap+subscribe sequence on failure.
func (r *Refresher) Run(ctx context.Context) {
	for ctx.Err() == nil {
		err := r.runOnce(ctx)
		if err == nil {
			return
		}
		r.logger.Warn("assignment refresh failed, retrying", zap.Error(err))
		select {
		case <-time.After(r.interval):
		case <-ctx.Done():
			return
		}
	}
}

func (r *Refresher) runOnce(ctx context.Context) error {
	snapshot, err := r.client.GetAssignments(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap assignment snapshot: %w", err)
	}
	r.table.MergeRemote(snapshot)
	r.markReady()
	r.sink.SetShardCount(r.table.LocalShardCount())

	ch, err := r.stream.Subscribe(ctx, r.podID)
	if err != nil {
		return fmt.Errorf("subscribe to assignment stream: %w", err)
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errStreamClosed
			}
			r.table.MergeRemote(map[sharding.ShardID]sharding.PodAddress(snap))
			r.sink.SetShardCount(r.table.LocalShardCount())
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *Refresher) markReady() {
	r.readyOnce.Do(func() { close(r.ready) })
}
