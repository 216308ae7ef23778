package shardmanager

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	// imported for its JSON codec registration side effect, matching how
	// GRPCClient is dialed in production.
	_ "github.com/dreamware/shardrt/internal/transport"
)

type testServer struct {
	registerCalls int
	assignments   []assignmentEntry
	unhealthy     []podAddressMsg
}

func (s *testServer) Register(ctx context.Context, req *registerRequest) (*ack, error) {
	s.registerCalls++
	return &ack{}, nil
}

func (s *testServer) Unregister(ctx context.Context, req *unregisterRequest) (*ack, error) {
	return &ack{}, nil
}

func (s *testServer) GetAssignments(ctx context.Context, req *getAssignmentsRequest) (*getAssignmentsResponse, error) {
	return &getAssignmentsResponse{Assignments: s.assignments}, nil
}

func (s *testServer) NotifyUnhealthyPod(ctx context.Context, req *notifyUnhealthyRequest) (*ack, error) {
	s.unhealthy = append(s.unhealthy, req.Pod)
	return &ack{}, nil
}

func startBufconnShardManager(t *testing.T, impl *testServer) (*GRPCClient, func()) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	server := grpc.NewServer()
	registerTestServer(server, impl)
	go func() { _ = server.Serve(lis) }()

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(jsonCallOptionForTest()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}

	cleanup := func() {
		_ = conn.Close()
		server.Stop()
	}
	return &GRPCClient{conn: conn}, cleanup
}

func TestGRPCClientRegisterAndGetAssignments(t *testing.T) {
	impl := &testServer{
		assignments: []assignmentEntry{
			{Shard: 1, Pod: podAddressMsg{Host: "pod-a", Port: 9000}},
			{Shard: 2, Pod: podAddressMsg{Host: "pod-b", Port: 9001}},
		},
	}
	client, cleanup := startBufconnShardManager(t, impl)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Register(ctx, fromMsg(podAddressMsg{Host: "self", Port: 1})); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if impl.registerCalls != 1 {
		t.Fatalf("registerCalls = %d, want 1", impl.registerCalls)
	}

	got, err := client.GetAssignments(ctx)
	if err != nil {
		t.Fatalf("GetAssignments: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[1].Host != "pod-a" || got[2].Host != "pod-b" {
		t.Fatalf("got = %+v, unexpected contents", got)
	}
}

func TestGRPCClientNotifyUnhealthyPod(t *testing.T) {
	impl := &testServer{}
	client, cleanup := startBufconnShardManager(t, impl)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pod := fromMsg(podAddressMsg{Host: "flaky", Port: 7})
	if err := client.NotifyUnhealthyPod(ctx, pod); err != nil {
		t.Fatalf("NotifyUnhealthyPod: %v", err)
	}
	if len(impl.unhealthy) != 1 || impl.unhealthy[0].Host != "flaky" {
		t.Fatalf("impl.unhealthy = %+v", impl.unhealthy)
	}
}

// jsonCallOptionForTest avoids this test file depending on
// internal/transport's unexported codec name directly; the blank import
// above registers the codec, and grpc resolves it by the same "json"
// subtype internal/transport.JSONCallOption selects.
func jsonCallOptionForTest() grpc.CallOption {
	return grpc.CallContentSubtype("json")
}
