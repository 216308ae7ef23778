package transport

import (
	"context"

	"google.golang.org/grpc"
)

// podsServiceName is the gRPC service name pods register under.
const podsServiceName = "shardrt.transport.Pods"

// podsServer is the server-side contract grpcServer implements and wires
// into internal/transport's grpc.Server registration.
type podsServer interface {
	Send(ctx context.Context, req *sendRequest) (*sendResponse, error)
	SendStream(req *sendRequest, stream podsSendStreamServer) error
	Assign(ctx context.Context, req *assignRequest) (*ack, error)
	Unassign(ctx context.Context, req *unassignRequest) (*ack, error)
}

// podsSendStreamServer is the server-side handle for the SendStream RPC.
type podsSendStreamServer interface {
	Send(*streamChunk) error
	Context() context.Context
}

type podsSendStreamServerImpl struct {
	grpc.ServerStream
}

func (s *podsSendStreamServerImpl) Send(chunk *streamChunk) error {
	return s.ServerStream.SendMsg(chunk)
}

func sendHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(sendRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(podsServer).Send(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: podsServiceName + "/Send"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(podsServer).Send(ctx, req.(*sendRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func assignHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(assignRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(podsServer).Assign(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: podsServiceName + "/Assign"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(podsServer).Assign(ctx, req.(*assignRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func unassignHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(unassignRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(podsServer).Unassign(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: podsServiceName + "/Unassign"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(podsServer).Unassign(ctx, req.(*unassignRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func sendStreamHandler(srv any, stream grpc.ServerStream) error {
	req := new(sendRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(podsServer).SendStream(req, &podsSendStreamServerImpl{ServerStream: stream})
}

var podsServiceDesc = grpc.ServiceDesc{
	ServiceName: podsServiceName,
	HandlerType: (*podsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Send", Handler: sendHandler},
		{MethodName: "Assign", Handler: assignHandler},
		{MethodName: "Unassign", Handler: unassignHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "SendStream", Handler: sendStreamHandler, ServerStreams: true},
	},
	Metadata: "internal/transport/pods",
}
