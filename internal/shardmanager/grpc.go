package shardmanager

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dreamware/shardrt/internal/sharding"
	"github.com/dreamware/shardrt/internal/transport"
)

// GRPCClient is the default Client, talking to an external Shard Manager
// process over gRPC.
type GRPCClient struct {
	conn *grpc.ClientConn
}

var _ Client = (*GRPCClient)(nil)

// Dial connects to the Shard Manager at addr. It reuses internal/transport's
// JSON codec registration (imported for its side effect) so both RPC
// surfaces in this module speak the same wire format.
func Dial(addr string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(transport.JSONCallOption()),
	)
	if err != nil {
		return nil, err
	}
	return &GRPCClient{conn: conn}, nil
}

func (c *GRPCClient) Register(ctx context.Context, pod sharding.PodAddress) error {
	req := &registerRequest{Pod: toMsg(pod)}
	return c.conn.Invoke(ctx, "/"+serviceName+"/Register", req, new(ack))
}

func (c *GRPCClient) Unregister(ctx context.Context, pod sharding.PodAddress) error {
	req := &unregisterRequest{Pod: toMsg(pod)}
	return c.conn.Invoke(ctx, "/"+serviceName+"/Unregister", req, new(ack))
}

func (c *GRPCClient) GetAssignments(ctx context.Context) (map[sharding.ShardID]sharding.PodAddress, error) {
	resp := new(getAssignmentsResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/GetAssignments", new(getAssignmentsRequest), resp); err != nil {
		return nil, err
	}
	out := make(map[sharding.ShardID]sharding.PodAddress, len(resp.Assignments))
	for _, e := range resp.Assignments {
		out[sharding.ShardID(e.Shard)] = fromMsg(e.Pod)
	}
	return out, nil
}

func (c *GRPCClient) NotifyUnhealthyPod(ctx context.Context, pod sharding.PodAddress) error {
	req := &notifyUnhealthyRequest{Pod: toMsg(pod)}
	return c.conn.Invoke(ctx, "/"+serviceName+"/NotifyUnhealthyPod", req, new(ack))
}

// Close releases the underlying connection.
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func toMsg(p sharding.PodAddress) podAddressMsg {
	return podAddressMsg{Host: p.Host, Port: int32(p.Port)}
}

func fromMsg(m podAddressMsg) sharding.PodAddress {
	return sharding.PodAddress{Host: m.Host, Port: int(m.Port)}
}
