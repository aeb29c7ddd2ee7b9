//go:build e2e

package orchestrator

import (
	"context"
	"testing"
	"time"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })
	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}
	return "redis://" + endpoint
}

func TestProgressBusReplay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	bus, err := DialProgressBus(ctx, startRedis(t), time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer bus.Close()

	r := NewRunner(New(nil, newScripted(), zap.NewNop()), bus, nil, 1, zap.NewNop())
	id, err := r.Submit(ctx, &Request{Message: "Teach me React"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	var got []WorkflowProgress
	for p := range bus.Subscribe(ctx, id) {
		got = append(got, p)
	}
	if len(got) != 4 {
		t.Fatalf("replayed %d snapshots, want 4", len(got))
	}
	if got[0].Status != StatusPending || got[3].Status != StatusCompleted {
		t.Errorf("statuses = %s .. %s", got[0].Status, got[3].Status)
	}
	if len(got[3].Results) != 2 {
		t.Errorf("final snapshot has %d results, want 2", len(got[3].Results))
	}
}

func TestProgressBusFollowsLiveRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	bus, err := DialProgressBus(ctx, startRedis(t), time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer bus.Close()

	sub := bus.Subscribe(ctx, "live")
	if err := bus.Publish(ctx, "live", WorkflowProgress{Status: StatusRunning, Message: "working"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := bus.Publish(ctx, "live", WorkflowProgress{Status: StatusError, Message: "boom"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var msgs []string
	for p := range sub {
		msgs = append(msgs, p.Message)
	}
	if len(msgs) != 2 || msgs[1] != "boom" {
		t.Errorf("messages = %v", msgs)
	}
}
