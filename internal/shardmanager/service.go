package shardmanager

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "shardrt.transport.ShardManager"

// server is the shape a test double for the external Shard Manager
// implements, so GRPCClient's wire encoding can be exercised without a real
// Shard Manager process. Production traffic terminates on an out-of-module
// Shard Manager implementing the same RPCs.
type server interface {
	Register(ctx context.Context, req *registerRequest) (*ack, error)
	Unregister(ctx context.Context, req *unregisterRequest) (*ack, error)
	GetAssignments(ctx context.Context, req *getAssignmentsRequest) (*getAssignmentsResponse, error)
	NotifyUnhealthyPod(ctx context.Context, req *notifyUnhealthyRequest) (*ack, error)
}

func registerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(registerRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(server).Register(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Register"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(server).Register(ctx, req.(*registerRequest))
	})
}

func unregisterHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(unregisterRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(server).Unregister(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Unregister"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(server).Unregister(ctx, req.(*unregisterRequest))
	})
}

func getAssignmentsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(getAssignmentsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(server).GetAssignments(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/GetAssignments"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(server).GetAssignments(ctx, req.(*getAssignmentsRequest))
	})
}

func notifyUnhealthyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(notifyUnhealthyRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(server).NotifyUnhealthyPod(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/NotifyUnhealthyPod"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(server).NotifyUnhealthyPod(ctx, req.(*notifyUnhealthyRequest))
	})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: registerHandler},
		{MethodName: "Unregister", Handler: unregisterHandler},
		{MethodName: "GetAssignments", Handler: getAssignmentsHandler},
		{MethodName: "NotifyUnhealthyPod", Handler: notifyUnhealthyHandler},
	},
	Metadata: "internal/shardmanager",
}

// registerTestServer mounts a test double of the external Shard Manager
// onto grpcServer, for client-side wire tests only.
func registerTestServer(grpcServer *grpc.Server, impl server) {
	grpcServer.RegisterService(&serviceDesc, impl)
}
