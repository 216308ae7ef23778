package transport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/dreamware/shardrt/internal/sharding"
)

// Handler is implemented by router.Router (internal/pod hands its router to
// the server) to service incoming Pods RPCs.
// Keeping this as the server-side seam (rather than importing
// internal/entity or internal/assignment here) is what keeps transport free
// of a dependency on the packages that depend on it — see SPEC_FULL.md §9
// on cyclic-reference avoidance.
type Handler interface {
	HandleSend(ctx context.Context, entityType, entityID string, body []byte) ([]byte, error)
	HandleSendStream(ctx context.Context, entityType, entityID string, body []byte) (<-chan StreamItem, error)
	HandleAssign(ctx context.Context, shards []sharding.ShardID, pod sharding.PodAddress) error
	HandleUnassign(ctx context.Context, shards []sharding.ShardID) error
}

// grpcServer adapts a Handler to the podsServer contract service.go
// dispatches into.
type grpcServer struct {
	handler Handler
}

var _ podsServer = (*grpcServer)(nil)

func (s *grpcServer) Send(ctx context.Context, req *sendRequest) (*sendResponse, error) {
	body, err := s.handler.HandleSend(ctx, req.EntityType, req.EntityID, req.Body)
	if err != nil {
		_, kind := classifyOutgoing(err)
		return &sendResponse{Error: err.Error(), ErrorKind: kind}, nil
	}
	return &sendResponse{Body: body}, nil
}

func (s *grpcServer) SendStream(req *sendRequest, stream podsSendStreamServer) error {
	items, err := s.handler.HandleSendStream(stream.Context(), req.EntityType, req.EntityID, req.Body)
	if err != nil {
		return stream.Send(&streamChunk{Final: true, Error: err.Error()})
	}
	for item := range items {
		if item.Err != nil {
			return stream.Send(&streamChunk{Final: true, Error: item.Err.Error()})
		}
		if err := stream.Send(&streamChunk{Body: item.Body, Final: item.Done}); err != nil {
			return err
		}
		if item.Done {
			return nil
		}
	}
	return stream.Send(&streamChunk{Final: true})
}

func (s *grpcServer) Assign(ctx context.Context, req *assignRequest) (*ack, error) {
	shards := make([]sharding.ShardID, len(req.Shards))
	for i, v := range req.Shards {
		shards[i] = sharding.ShardID(v)
	}
	pod := sharding.PodAddress{Host: req.Pod.Host, Port: int(req.Pod.Port)}
	if err := s.handler.HandleAssign(ctx, shards, pod); err != nil {
		return nil, err
	}
	return &ack{}, nil
}

func (s *grpcServer) Unassign(ctx context.Context, req *unassignRequest) (*ack, error) {
	shards := make([]sharding.ShardID, len(req.Shards))
	for i, v := range req.Shards {
		shards[i] = sharding.ShardID(v)
	}
	if err := s.handler.HandleUnassign(ctx, shards); err != nil {
		return nil, err
	}
	return &ack{}, nil
}

// Register mounts handler's RPCs onto server under the Pods service name.
func Register(server *grpc.Server, handler Handler) {
	server.RegisterService(&podsServiceDesc, &grpcServer{handler: handler})
}
