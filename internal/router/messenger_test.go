package router

import (
	"context"
	"testing"

	"github.com/dreamware/shardrt/internal/assignment"
	"github.com/dreamware/shardrt/internal/entity"
	"github.com/dreamware/shardrt/internal/sharding"
	"github.com/dreamware/shardrt/internal/wire"
)

type greetRequest struct {
	Name string `json:"name"`
}

type greetResponse struct {
	Greeting string `json:"greeting"`
}

func greetBehavior(ctx context.Context, entityID string, mailbox *entity.Mailbox) {
	codec := wire.JSON{}
	for {
		env, ok := mailbox.Dequeue(ctx)
		if !ok {
			return
		}
		if env.Reply == nil {
			continue
		}
		var req greetRequest
		if err := codec.Decode(env.Body, &req); err != nil {
			env.Reply.Fail(err)
			continue
		}
		resp := greetResponse{Greeting: "hello, " + req.Name}
		body, err := codec.Encode(resp)
		if err != nil {
			env.Reply.Fail(err)
			continue
		}
		env.Reply.ReplySingle(body)
	}
}

func TestTypedMessengerRoundTrip(t *testing.T) {
	self := sharding.PodAddress{Host: "self", Port: 1}
	cfg := testConfig()
	tbl := assignment.NewTable(self)
	r := New(self, cfg, tbl, &fakePods{}, nil, nil, nil)

	rt := sharding.NewEntityType("greeter")
	r.RegisterType(rt, greetBehavior)
	tbl.Assign([]sharding.ShardID{rt.ShardOf("frank", cfg.NumShards)})

	tm := NewTypedMessenger[greetRequest, greetResponse](r, rt, wire.JSON{})
	resp, ok, err := tm.Send(context.Background(), "frank", greetRequest{Name: "Frank"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !ok {
		t.Fatalf("expected a value in the reply")
	}
	if resp.Greeting != "hello, Frank" {
		t.Fatalf("got %q", resp.Greeting)
	}
}

func TestTypedMessengerSendDiscard(t *testing.T) {
	self := sharding.PodAddress{Host: "self", Port: 1}
	cfg := testConfig()
	tbl := assignment.NewTable(self)
	r := New(self, cfg, tbl, &fakePods{}, nil, nil, nil)

	rt := sharding.NewEntityType("greeter")
	r.RegisterType(rt, greetBehavior)
	tbl.Assign([]sharding.ShardID{rt.ShardOf("gina", cfg.NumShards)})

	tm := NewTypedMessenger[greetRequest, greetResponse](r, rt, wire.JSON{})
	if err := tm.SendDiscard(context.Background(), "gina", greetRequest{Name: "Gina"}); err != nil {
		t.Fatalf("SendDiscard: %v", err)
	}
}
