package provider

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestRouterUsesBinding(t *testing.T) {
	a := &fakeProvider{id: "a", reply: "from a"}
	b := &fakeProvider{id: "b", reply: "from b"}
	r := NewRouter(zap.NewNop())
	r.Register(a)
	r.Register(b)
	r.Bind("coder", "b")

	resp, err := r.Route(context.Background(), "coder", &ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "from b" {
		t.Errorf("content = %q, want from b", resp.Content)
	}
	resp, _ = r.Route(context.Background(), "tutor", &ChatRequest{})
	if resp.Content != "from a" {
		t.Errorf("unbound agent should use default, got %q", resp.Content)
	}
}

func TestRouterFallbacks(t *testing.T) {
	boom := errors.New("boom")
	a := &fakeProvider{id: "a", err: boom}
	b := &fakeProvider{id: "b", err: boom}
	c := &fakeProvider{id: "c", reply: "from c"}
	r := NewRouter(zap.NewNop())
	r.Register(a)
	r.Register(b)
	r.Register(c)
	r.SetFallbacks("tutor", []string{"a", "missing", "b", "c"})

	resp, err := r.Route(context.Background(), "tutor", &ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "from c" {
		t.Errorf("content = %q, want from c", resp.Content)
	}
	if a.callCount() != 1 {
		t.Errorf("primary called %d times, want 1", a.callCount())
	}
}

func TestRouterAllFail(t *testing.T) {
	boom := errors.New("boom")
	r := NewRouter(zap.NewNop())
	r.Register(&fakeProvider{id: "a", err: boom})
	_, err := r.Route(context.Background(), "tutor", &ChatRequest{})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped boom", err)
	}
}

func TestRouterEmpty(t *testing.T) {
	r := NewRouter(zap.NewNop())
	if _, err := r.Route(context.Background(), "tutor", &ChatRequest{}); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("got %v, want ErrNoProvider", err)
	}
	if _, err := r.RouteTo(context.Background(), "x", &ChatRequest{}); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("got %v, want ErrNoProvider", err)
	}
}

func TestRouterListSorted(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&fakeProvider{id: "zeta"})
	r.Register(&fakeProvider{id: "alpha"})
	list := r.ListProviders()
	if len(list) != 2 || list[0].ID() != "alpha" {
		t.Errorf("providers not sorted: %v, %v", list[0].ID(), list[1].ID())
	}
	if r.DefaultID() != "zeta" {
		t.Errorf("default = %q, want first registered", r.DefaultID())
	}
}
