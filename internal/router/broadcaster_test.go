package router

import (
	"context"
	"testing"

	"github.com/dreamware/shardrt/internal/assignment"
	"github.com/dreamware/shardrt/internal/sharding"
)

func TestBroadcastFansOutToLocalAndRemotePods(t *testing.T) {
	self := sharding.PodAddress{Host: "self", Port: 1}
	remote := sharding.PodAddress{Host: "remote", Port: 2}
	cfg := testConfig()
	tbl := assignment.NewTable(self)
	tbl.Assign([]sharding.ShardID{1})
	tbl.MergeRemote(map[sharding.ShardID]sharding.PodAddress{2: remote})

	pods := &fakePods{sendFunc: func(pod sharding.PodAddress, entityType, entityID string, body []byte) ([]byte, error) {
		return append([]byte("remote-reply:"), body...), nil
	}}
	r := New(self, cfg, tbl, pods, nil, nil, nil)

	topic := sharding.NewTopicType("announcements")
	r.RegisterType(topic, echoBehavior)

	results := r.Broadcaster(topic).Broadcast(context.Background(), "all", []byte("hi"))

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	local, ok := results[self]
	if !ok || local.Err != nil || string(local.Body) != "echo:hi" {
		t.Fatalf("local result = %+v", local)
	}
	rem, ok := results[remote]
	if !ok || rem.Err != nil || string(rem.Body) != "remote-reply:hi" {
		t.Fatalf("remote result = %+v", rem)
	}
}

func TestBroadcastDiscardResolvesWithZeroPods(t *testing.T) {
	self := sharding.PodAddress{Host: "self", Port: 1}
	cfg := testConfig()
	tbl := assignment.NewTable(self)
	r := New(self, cfg, tbl, &fakePods{}, nil, nil, nil)

	topic := sharding.NewTopicType("announcements")
	r.RegisterType(topic, echoBehavior)

	// No pods own any shard yet; BroadcastDiscard must resolve without
	// blocking or panicking.
	r.Broadcaster(topic).BroadcastDiscard(context.Background(), "all", []byte("hi"))
}

func TestBroadcastCollectsPerPodError(t *testing.T) {
	self := sharding.PodAddress{Host: "self", Port: 1}
	remote := sharding.PodAddress{Host: "remote", Port: 2}
	cfg := testConfig()
	tbl := assignment.NewTable(self)
	tbl.MergeRemote(map[sharding.ShardID]sharding.PodAddress{2: remote})

	pods := &fakePods{sendFunc: func(pod sharding.PodAddress, entityType, entityID string, body []byte) ([]byte, error) {
		return nil, &sharding.PodUnavailableError{Pod: remote}
	}}
	r := New(self, cfg, tbl, pods, nil, nil, nil)
	topic := sharding.NewTopicType("announcements")

	results := r.Broadcaster(topic).Broadcast(context.Background(), "all", []byte("hi"))
	res, ok := results[remote]
	if !ok {
		t.Fatalf("expected a result for the remote pod")
	}
	if _, isUnavailable := res.Err.(*sharding.PodUnavailableError); !isUnavailable {
		t.Fatalf("got err %v, want *sharding.PodUnavailableError", res.Err)
	}
}
