package pod

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"google.golang.org/grpc"

	"github.com/dreamware/shardrt/internal/assignstream"
	"github.com/dreamware/shardrt/internal/entity"
	"github.com/dreamware/shardrt/internal/shardmanager"
	"github.com/dreamware/shardrt/internal/sharding"
	"github.com/dreamware/shardrt/internal/transport"
)

// testPod bundles a Pod with the real gRPC listener and server it serves
// the Pods RPCs on, so a two-pod test can exercise actual wire dispatch
// between them rather than calling into each other's Router directly.
type testPod struct {
	pod    *Pod
	server *grpc.Server
	addr   sharding.PodAddress
}

func startTestPod(t *testing.T, shardMgr shardmanager.Client) *testPod {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host, portStr, err := net.SplitHostPort(lis.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	self := sharding.PodAddress{Host: host, Port: port}

	pods, err := transport.NewGRPCPods(4)
	if err != nil {
		t.Fatalf("build transport: %v", err)
	}

	cfg := testCfg()
	cfg.Pod.Host = host
	cfg.Pod.Port = port

	p := assemble(cfg, self, shardMgr, assignstream.NewFake(), pods, nil, nil)

	server := grpc.NewServer()
	transport.Register(server, p.Handler())
	go func() { _ = server.Serve(lis) }()

	t.Cleanup(func() {
		server.Stop()
		pods.Close()
	})

	return &testPod{pod: p, server: server, addr: self}
}

func TestTwoPodClusterRoutesRemoteSendOverGRPC(t *testing.T) {
	shardMgr := shardmanager.NewFake()

	sender := startTestPod(t, shardMgr)
	owner := startTestPod(t, shardMgr)

	rt := sharding.NewEntityType("greeter")
	shard := rt.ShardOf("remote-nia", testCfg().Sharding.NumShards)
	shardMgr.SetAssignment(shard, owner.addr)

	owner.pod.RegisterEntityType(rt, func(ctx context.Context, entityID string, mailbox *entity.Mailbox) {
		for {
			env, ok := mailbox.Dequeue(ctx)
			if !ok {
				return
			}
			if env.Reply != nil {
				env.Reply.ReplySingle(append([]byte("owned:"), env.Body...))
			}
		}
	})

	startCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := owner.pod.Start(startCtx); err != nil {
		t.Fatalf("owner.Start: %v", err)
	}
	defer owner.pod.Shutdown(context.Background())

	if err := sender.pod.Start(startCtx); err != nil {
		t.Fatalf("sender.Start: %v", err)
	}
	defer sender.pod.Shutdown(context.Background())

	out, err := sender.pod.Messenger(rt).Send(context.Background(), "remote-nia", []byte("hi"))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(out) != "owned:hi" {
		t.Fatalf("got %q, want %q", out, "owned:hi")
	}
}

func TestTwoPodClusterUnassignTerminatesEntitiesOnOwner(t *testing.T) {
	shardMgr := shardmanager.NewFake()
	owner := startTestPod(t, shardMgr)

	rt := sharding.NewEntityType("greeter")
	shard := rt.ShardOf("local-bob", testCfg().Sharding.NumShards)
	shardMgr.SetAssignment(shard, owner.addr)

	started := make(chan struct{}, 1)
	owner.pod.RegisterEntityType(rt, func(ctx context.Context, entityID string, mailbox *entity.Mailbox) {
		started <- struct{}{}
		for {
			if _, ok := mailbox.Dequeue(ctx); !ok {
				return
			}
		}
	})

	startCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := owner.pod.Start(startCtx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer owner.pod.Shutdown(context.Background())

	if err := owner.pod.Messenger(rt).SendDiscard(context.Background(), "local-bob", []byte("hi")); err != nil {
		t.Fatalf("SendDiscard: %v", err)
	}
	<-started

	if err := owner.pod.Handler().HandleUnassign(context.Background(), []sharding.ShardID{shard}); err != nil {
		t.Fatalf("HandleUnassign: %v", err)
	}
	if owner.pod.table.IsLocal(shard) {
		t.Fatalf("shard should no longer be local after Unassign")
	}
}
