package shardmanager

import (
	"context"
	"testing"

	"github.com/dreamware/shardrt/internal/sharding"
)

func TestFakeRegisterUnregister(t *testing.T) {
	f := NewFake()
	pod := sharding.PodAddress{Host: "a", Port: 1}
	ctx := context.Background()

	if err := f.Register(ctx, pod); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !f.IsRegistered(pod) {
		t.Fatalf("pod not registered")
	}

	if err := f.Unregister(ctx, pod); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if f.IsRegistered(pod) {
		t.Fatalf("pod still registered after Unregister")
	}
}

func TestFakeGetAssignmentsReturnsDefensiveCopy(t *testing.T) {
	f := NewFake()
	pod := sharding.PodAddress{Host: "a", Port: 1}
	f.SetAssignment(1, pod)

	got, err := f.GetAssignments(context.Background())
	if err != nil {
		t.Fatalf("GetAssignments: %v", err)
	}
	got[2] = sharding.PodAddress{Host: "mutated"}

	again, err := f.GetAssignments(context.Background())
	if err != nil {
		t.Fatalf("GetAssignments: %v", err)
	}
	if _, ok := again[2]; ok {
		t.Fatalf("mutation of returned map leaked into Fake's internal state")
	}
}

func TestFakeUnhealthyReports(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	pod := sharding.PodAddress{Host: "flaky", Port: 2}
	_ = f.NotifyUnhealthyPod(ctx, pod)
	_ = f.NotifyUnhealthyPod(ctx, pod)

	reports := f.UnhealthyReports()
	if len(reports) != 2 {
		t.Fatalf("len(reports) = %d, want 2", len(reports))
	}
}
