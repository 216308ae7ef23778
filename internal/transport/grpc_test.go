package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dreamware/shardrt/internal/reply"
	"github.com/dreamware/shardrt/internal/sharding"
)

type fakeHandler struct {
	sendFunc   func(ctx context.Context, entityType, entityID string, body []byte) ([]byte, error)
	streamFunc func(ctx context.Context, entityType, entityID string, body []byte) (<-chan StreamItem, error)
	assigned   []sharding.ShardID
	unassigned []sharding.ShardID
}

func (h *fakeHandler) HandleSend(ctx context.Context, entityType, entityID string, body []byte) ([]byte, error) {
	return h.sendFunc(ctx, entityType, entityID, body)
}

func (h *fakeHandler) HandleSendStream(ctx context.Context, entityType, entityID string, body []byte) (<-chan StreamItem, error) {
	return h.streamFunc(ctx, entityType, entityID, body)
}

func (h *fakeHandler) HandleAssign(ctx context.Context, shards []sharding.ShardID, pod sharding.PodAddress) error {
	h.assigned = shards
	return nil
}

func (h *fakeHandler) HandleUnassign(ctx context.Context, shards []sharding.ShardID) error {
	h.unassigned = shards
	return nil
}

func startBufconnServer(t *testing.T, handler Handler) (*grpc.ClientConn, func()) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	server := grpc.NewServer()
	Register(server, handler)

	go func() {
		_ = server.Serve(lis)
	}()

	dialer := func(context.Context, string) (net.Conn, error) {
		return lis.Dial()
	}
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonSubtype)),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}

	cleanup := func() {
		_ = conn.Close()
		server.Stop()
	}
	return conn, cleanup
}

func TestGRPCSendRoundTrip(t *testing.T) {
	handler := &fakeHandler{
		sendFunc: func(ctx context.Context, entityType, entityID string, body []byte) ([]byte, error) {
			if entityType != "widget" || entityID != "w-1" {
				t.Fatalf("unexpected routing: %s/%s", entityType, entityID)
			}
			return append([]byte("echo:"), body...), nil
		},
	}
	conn, cleanup := startBufconnServer(t, handler)
	defer cleanup()

	req := &sendRequest{EntityType: "widget", EntityID: "w-1", Body: []byte("hi")}
	resp := new(sendResponse)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Invoke(ctx, "/"+podsServiceName+"/Send", req, resp); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if string(resp.Body) != "echo:hi" {
		t.Fatalf("resp.Body = %q, want %q", resp.Body, "echo:hi")
	}
}

func TestGRPCSendPropagatesEntityNotManagedKind(t *testing.T) {
	handler := &fakeHandler{
		sendFunc: func(ctx context.Context, entityType, entityID string, body []byte) ([]byte, error) {
			return nil, &sharding.EntityNotManagedByThisPodError{EntityType: entityType, EntityID: entityID}
		},
	}
	conn, cleanup := startBufconnServer(t, handler)
	defer cleanup()

	req := &sendRequest{EntityType: "widget", EntityID: "w-1"}
	resp := new(sendResponse)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Invoke(ctx, "/"+podsServiceName+"/Send", req, resp); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.ErrorKind != kindEntityNotManaged {
		t.Fatalf("ErrorKind = %q, want %q", resp.ErrorKind, kindEntityNotManaged)
	}

	translated := classifyIncoming(sharding.PodAddress{}, resp.ErrorKind, errors.New(resp.Error), false)
	if _, ok := translated.(*sharding.EntityNotManagedByThisPodError); !ok {
		t.Fatalf("classifyIncoming = %T, want *EntityNotManagedByThisPodError", translated)
	}
}

func TestGRPCAssignUnassign(t *testing.T) {
	handler := &fakeHandler{}
	conn, cleanup := startBufconnServer(t, handler)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assignReq := &assignRequest{Shards: []int32{1, 2, 3}}
	if err := conn.Invoke(ctx, "/"+podsServiceName+"/Assign", assignReq, new(ack)); err != nil {
		t.Fatalf("Assign Invoke: %v", err)
	}
	if len(handler.assigned) != 3 {
		t.Fatalf("handler.assigned = %v, want 3 entries", handler.assigned)
	}

	unassignReq := &unassignRequest{Shards: []int32{2}}
	if err := conn.Invoke(ctx, "/"+podsServiceName+"/Unassign", unassignReq, new(ack)); err != nil {
		t.Fatalf("Unassign Invoke: %v", err)
	}
	if len(handler.unassigned) != 1 || handler.unassigned[0] != 2 {
		t.Fatalf("handler.unassigned = %v, want [2]", handler.unassigned)
	}
}

func TestGRPCSendStream(t *testing.T) {
	handler := &fakeHandler{
		streamFunc: func(ctx context.Context, entityType, entityID string, body []byte) (<-chan StreamItem, error) {
			out := make(chan reply.StreamItem, 3)
			out <- reply.StreamItem{Body: []byte("a")}
			out <- reply.StreamItem{Body: []byte("b")}
			out <- reply.StreamItem{Done: true}
			close(out)
			return out, nil
		},
	}
	conn, cleanup := startBufconnServer(t, handler)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stream, err := conn.NewStream(ctx, &podsServiceDesc.Streams[0], "/"+podsServiceName+"/SendStream", grpc.CallContentSubtype(jsonSubtype))
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	req := &sendRequest{EntityType: "widget", EntityID: "w-1"}
	if err := stream.SendMsg(req); err != nil {
		t.Fatalf("SendMsg: %v", err)
	}
	if err := stream.CloseSend(); err != nil {
		t.Fatalf("CloseSend: %v", err)
	}

	var got []string
	for {
		chunk := new(streamChunk)
		if err := stream.RecvMsg(chunk); err != nil {
			break
		}
		if chunk.Final {
			break
		}
		got = append(got, string(chunk.Body))
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got = %v, want [a b]", got)
	}
}

func TestClassifyIncomingMapsStatusCodes(t *testing.T) {
	pod := sharding.PodAddress{Host: "x", Port: 1}

	cases := []struct {
		code     codes.Code
		isStream bool
		want     any
	}{
		{codes.ResourceExhausted, false, &sharding.EntityNotManagedByThisPodError{}},
		{codes.Unavailable, false, &sharding.PodUnavailableError{}},
		{codes.DeadlineExceeded, false, &sharding.PodUnavailableError{}},
		{codes.Canceled, true, &sharding.StreamCancelledError{}},
		{codes.Canceled, false, &sharding.PodUnavailableError{}},
	}
	for _, c := range cases {
		err := status.Error(c.code, "boom")
		got := classifyIncoming(pod, "", err, c.isStream)
		wantType := c.want
		switch wantType.(type) {
		case *sharding.EntityNotManagedByThisPodError:
			if _, ok := got.(*sharding.EntityNotManagedByThisPodError); !ok {
				t.Fatalf("code %v: got %T, want *EntityNotManagedByThisPodError", c.code, got)
			}
		case *sharding.PodUnavailableError:
			if _, ok := got.(*sharding.PodUnavailableError); !ok {
				t.Fatalf("code %v: got %T, want *PodUnavailableError", c.code, got)
			}
		case *sharding.StreamCancelledError:
			if _, ok := got.(*sharding.StreamCancelledError); !ok {
				t.Fatalf("code %v: got %T, want *StreamCancelledError", c.code, got)
			}
		}
	}
}
