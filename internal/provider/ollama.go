package provider

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

const defaultOllamaEndpoint = "http://localhost:11434"

type chatModelFactory func(ctx context.Context, modelName string) (model.BaseChatModel, error)

// OllamaProvider serves local models through an Ollama daemon. It is the
// backend used for offline completions.
type OllamaProvider struct {
	config  ProviderConfig
	client  *http.Client
	logger  *zap.Logger
	factory chatModelFactory

	mu     sync.Mutex
	models map[string]model.BaseChatModel
}

// NewOllamaProvider creates a provider for the daemon at cfg.Endpoint.
func NewOllamaProvider(cfg ProviderConfig, logger *zap.Logger) *OllamaProvider {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultOllamaEndpoint
	}
	p := &OllamaProvider{
		config: cfg,
		client: newHTTPClient(cfg.Timeout),
		logger: logger,
		models: make(map[string]model.BaseChatModel),
	}
	p.factory = func(ctx context.Context, name string) (model.BaseChatModel, error) {
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: p.config.Endpoint,
			Model:   name,
			Timeout: p.client.Timeout,
		})
	}
	return p
}

func (p *OllamaProvider) ID() string   { return p.config.ID }
func (p *OllamaProvider) Name() string { return p.config.Name }

func (p *OllamaProvider) chatModel(ctx context.Context, name string) (model.BaseChatModel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cm, ok := p.models[name]; ok {
		return cm, nil
	}
	cm, err := p.factory(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create ollama model %s: %w", name, err)
	}
	p.models[name] = cm
	return cm, nil
}

func toSchema(msgs []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, schema.SystemMessage(m.Content))
		case "assistant":
			out = append(out, &schema.Message{Role: schema.Assistant, Content: m.Content})
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}

// Chat runs a single generation against the local model.
func (p *OllamaProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	name := req.Model
	if name == "" {
		name = p.config.DefaultModel()
	}
	if name == "" {
		return nil, fmt.Errorf("ollama provider %s has no model configured", p.config.ID)
	}
	cm, err := p.chatModel(ctx, name)
	if err != nil {
		return nil, err
	}

	var opts []model.Option
	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(req.Temperature)))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}

	msg, err := cm.Generate(ctx, toSchema(req.Messages), opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}
	if msg == nil || msg.Content == "" {
		return nil, ErrEmptyResponse
	}

	resp := &ChatResponse{Model: name, Content: msg.Content}
	if meta := msg.ResponseMeta; meta != nil {
		resp.FinishReason = meta.FinishReason
		if meta.Usage != nil {
			resp.Usage = Usage{
				PromptTokens:     meta.Usage.PromptTokens,
				CompletionTokens: meta.Usage.CompletionTokens,
				TotalTokens:      meta.Usage.TotalTokens,
			}
		}
	}
	return resp, nil
}

// ListModels asks the daemon which models are pulled locally.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]Model, error) {
	var out struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := doJSON(ctx, p.client, http.MethodGet, p.config.Endpoint+"/api/tags", nil, nil, &out); err != nil {
		return nil, err
	}
	models := make([]Model, len(out.Models))
	for i, m := range out.Models {
		models[i] = Model{ID: m.Name, Name: m.Name, Provider: p.config.ID}
	}
	return models, nil
}

// HealthCheck verifies the daemon answers.
func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	_, err := p.ListModels(ctx)
	return err
}
