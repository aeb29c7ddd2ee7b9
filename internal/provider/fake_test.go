package provider

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// fakeProvider records requests and answers with a fixed reply or error.
type fakeProvider struct {
	id    string
	reply string
	err   error

	mu    sync.Mutex
	calls []*ChatRequest
}

func (f *fakeProvider) ID() string   { return f.id }
func (f *fakeProvider) Name() string { return f.id }

func (f *fakeProvider) Chat(_ context.Context, req *ChatRequest) (*ChatResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &ChatResponse{Model: req.Model, Content: f.reply}, nil
}

func (f *fakeProvider) ListModels(context.Context) ([]Model, error) { return nil, nil }
func (f *fakeProvider) HealthCheck(context.Context) error           { return f.err }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProvider) last() *ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

// fakeChatModel stands in for an eino chat model.
type fakeChatModel struct {
	reply *schema.Message
	err   error
	input []*schema.Message
}

func (m *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.input = input
	return m.reply, m.err
}

func (m *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}
