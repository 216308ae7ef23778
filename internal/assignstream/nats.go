package assignstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dreamware/shardrt/internal/sharding"
)

// subjectPrefix is the per-pod NATS subject namespace for assignment
// change notifications.
const subjectPrefix = "shardrt.assignments."

type wireEntry struct {
	Shard int    `json:"shard"`
	Host  string `json:"host"`
	Port  int    `json:"port"`
}

type wireSnapshot struct {
	Assignments []wireEntry `json:"assignments"`
}

// NATSSubscriber is the default Subscriber, grounded on
// adred-codev-ws_poc/go-server/pkg/nats/client.go's connection and
// Subscribe handling.
type NATSSubscriber struct {
	conn *nats.Conn
}

// DialNATS connects to a NATS server at url with reconnect settings
// appropriate for a long-lived infrastructure subscriber.
func DialNATS(url string) (*NATSSubscriber, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.MaxPingsOutstanding(3),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSSubscriber{conn: conn}, nil
}

var _ Subscriber = (*NATSSubscriber)(nil)

func (s *NATSSubscriber) Subscribe(ctx context.Context, podID string) (<-chan Snapshot, error) {
	subject := subjectPrefix + podID
	out := make(chan Snapshot, 1)

	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		var w wireSnapshot
		if err := json.Unmarshal(msg.Data, &w); err != nil {
			return
		}
		snap := make(Snapshot, len(w.Assignments))
		for _, e := range w.Assignments {
			snap[sharding.ShardID(e.Shard)] = sharding.PodAddress{Host: e.Host, Port: e.Port}
		}
		select {
		case out <- snap:
		case <-ctx.Done():
		}
	})
	if err != nil {
		close(out)
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
		close(out)
	}()

	return out, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
