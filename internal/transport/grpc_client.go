package transport

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dreamware/shardrt/internal/poolcache"
	"github.com/dreamware/shardrt/internal/reply"
	"github.com/dreamware/shardrt/internal/sharding"
)

// GRPCPods is the default Pods implementation, backed by a pooled set of
// gRPC client connections.
type GRPCPods struct {
	conns *poolcache.Cache
}

// NewGRPCPods builds a GRPCPods whose connection pool holds at most
// poolSize live connections.
func NewGRPCPods(poolSize int) (*GRPCPods, error) {
	dial := func(addr sharding.PodAddress) (poolcache.Conn, error) {
		conn, err := grpc.NewClient(addr.String(),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonSubtype)),
		)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	cache, err := poolcache.New(poolSize, dial)
	if err != nil {
		return nil, err
	}
	return &GRPCPods{conns: cache}, nil
}

var _ Pods = (*GRPCPods)(nil)

func (p *GRPCPods) connFor(addr sharding.PodAddress) (*grpc.ClientConn, error) {
	conn, err := p.conns.Get(addr)
	if err != nil {
		return nil, &sharding.PodUnavailableError{Pod: addr, Err: err}
	}
	return conn.(*grpc.ClientConn), nil
}

func (p *GRPCPods) Send(ctx context.Context, pod sharding.PodAddress, entityType, entityID string, body []byte) ([]byte, error) {
	conn, err := p.connFor(pod)
	if err != nil {
		return nil, err
	}

	req := &sendRequest{EntityType: entityType, EntityID: entityID, Body: body}
	resp := new(sendResponse)
	if err := conn.Invoke(ctx, "/"+podsServiceName+"/Send", req, resp); err != nil {
		p.conns.Invalidate(pod)
		return nil, classifyIncoming(pod, "", err, false)
	}
	if resp.Error != "" {
		if resp.ErrorKind != "" {
			return nil, classifyIncoming(pod, resp.ErrorKind, fmt.Errorf("%s", resp.Error), false)
		}
		return nil, fmt.Errorf("remote error: %s", resp.Error)
	}
	return resp.Body, nil
}

func (p *GRPCPods) SendStream(ctx context.Context, pod sharding.PodAddress, entityType, entityID string, body []byte) (<-chan StreamItem, error) {
	conn, err := p.connFor(pod)
	if err != nil {
		return nil, err
	}

	stream, err := conn.NewStream(ctx, &podsServiceDesc.Streams[0], "/"+podsServiceName+"/SendStream", grpc.CallContentSubtype(jsonSubtype))
	if err != nil {
		p.conns.Invalidate(pod)
		return nil, classifyIncoming(pod, "", err, true)
	}

	req := &sendRequest{EntityType: entityType, EntityID: entityID, Body: body}
	if err := stream.SendMsg(req); err != nil {
		return nil, classifyIncoming(pod, "", err, true)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, classifyIncoming(pod, "", err, true)
	}

	out := make(chan StreamItem, 16)
	go func() {
		defer close(out)
		for {
			chunk := new(streamChunk)
			if err := stream.RecvMsg(chunk); err != nil {
				if err == io.EOF {
					return
				}
				out <- reply.StreamItem{Done: true, Err: classifyIncoming(pod, "", err, true)}
				return
			}
			if chunk.Error != "" {
				out <- reply.StreamItem{Done: true, Err: fmt.Errorf("%s", chunk.Error)}
				return
			}
			out <- reply.StreamItem{Body: chunk.Body, Done: chunk.Final}
			if chunk.Final {
				return
			}
		}
	}()
	return out, nil
}

func (p *GRPCPods) Assign(ctx context.Context, pod sharding.PodAddress, shards []sharding.ShardID, self sharding.PodAddress) error {
	conn, err := p.connFor(pod)
	if err != nil {
		return err
	}
	req := &assignRequest{Shards: toInt32Shards(shards), Pod: podAddressMsg{Host: self.Host, Port: int32(self.Port)}}
	resp := new(ack)
	if err := conn.Invoke(ctx, "/"+podsServiceName+"/Assign", req, resp); err != nil {
		p.conns.Invalidate(pod)
		return classifyIncoming(pod, "", err, false)
	}
	return nil
}

func (p *GRPCPods) Unassign(ctx context.Context, pod sharding.PodAddress, shards []sharding.ShardID) error {
	conn, err := p.connFor(pod)
	if err != nil {
		return err
	}
	req := &unassignRequest{Shards: toInt32Shards(shards)}
	resp := new(ack)
	if err := conn.Invoke(ctx, "/"+podsServiceName+"/Unassign", req, resp); err != nil {
		p.conns.Invalidate(pod)
		return classifyIncoming(pod, "", err, false)
	}
	return nil
}

// JSONCallOption returns the grpc.CallOption that selects this package's
// JSON codec. Other gRPC clients in this module (internal/shardmanager)
// reuse it to stay wire-compatible with this package's codec registration.
func JSONCallOption() grpc.CallOption {
	return grpc.CallContentSubtype(jsonSubtype)
}

func (p *GRPCPods) Close() error {
	p.conns.Close()
	return nil
}

func toInt32Shards(shards []sharding.ShardID) []int32 {
	out := make([]int32, len(shards))
	for i, s := range shards {
		out[i] = int32(s)
	}
	return out
}
