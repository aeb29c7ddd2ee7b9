package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nidhogg/nuka-academy/internal/agent"
	"go.uber.org/zap"
)

const defaultMaxTokens = 4000

// HistoryWindow bounds the history sent with one turn.
type HistoryWindow interface {
	Fit([]Message) []Message
}

// CompleterConfig configures an AgentCompleter.
type CompleterConfig struct {
	OfflineProvider string // provider used for offline and hybrid fallback
	MaxTokens       int
}

// AgentCompleter turns an agent turn into a provider chat call. It picks the
// persona prompt, model and temperature, and routes by mode.
type AgentCompleter struct {
	router   *Router
	personas agent.Resolver
	window   HistoryWindow
	config   CompleterConfig
	logger   *zap.Logger
}

// NewAgentCompleter creates a completer. window may be nil to send the
// history unchanged.
func NewAgentCompleter(router *Router, personas agent.Resolver, window HistoryWindow,
	cfg CompleterConfig, logger *zap.Logger) *AgentCompleter {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &AgentCompleter{
		router:   router,
		personas: personas,
		window:   window,
		config:   cfg,
		logger:   logger,
	}
}

// Complete runs one agent turn and returns the response text.
func (c *AgentCompleter) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	resp, err := c.Turn(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Turn runs one agent turn and returns the full provider response.
func (c *AgentCompleter) Turn(ctx context.Context, req *CompletionRequest) (*ChatResponse, error) {
	persona, err := c.personas.Resolve(req.Agent)
	if err != nil {
		return nil, err
	}
	chat := &ChatRequest{
		Model:       persona.Model,
		Messages:    c.buildMessages(persona, req),
		Temperature: persona.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}
	if req.Model != "" {
		chat.Model = req.Model
	}

	resp, err := c.dispatch(ctx, req, chat)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, ErrEmptyResponse
	}
	c.logger.Debug("agent turn complete",
		zap.String("agent", string(req.Agent)),
		zap.String("mode", string(req.Mode)),
		zap.String("model", resp.Model),
		zap.Int("tokens", resp.Usage.TotalTokens))
	return resp, nil
}

func (c *AgentCompleter) buildMessages(p *agent.Persona, req *CompletionRequest) []Message {
	msgs := []Message{{Role: "system", Content: p.SystemPrompt}}
	if req.Context != "" {
		msgs = append(msgs, Message{Role: "system", Content: "Additional Context:\n" + req.Context})
	}
	hist := req.History
	if c.window != nil {
		hist = c.window.Fit(hist)
	}
	msgs = append(msgs, hist...)
	return append(msgs, Message{Role: "user", Content: req.Message})
}

func (c *AgentCompleter) dispatch(ctx context.Context, req *CompletionRequest, chat *ChatRequest) (*ChatResponse, error) {
	agentID := string(req.Agent)
	switch req.Mode {
	case ModeOffline:
		return c.offline(ctx, chat)
	case ModeHybrid:
		resp, err := c.router.Route(ctx, agentID, chat)
		if err == nil {
			return resp, nil
		}
		if c.config.OfflineProvider == "" || ctx.Err() != nil {
			return nil, err
		}
		c.logger.Warn("online completion failed, falling back to offline",
			zap.String("agent", agentID), zap.Error(err))
		resp, offErr := c.offline(ctx, chat)
		if offErr != nil {
			return nil, errors.Join(err, offErr)
		}
		return resp, nil
	default:
		return c.router.Route(ctx, agentID, chat)
	}
}

func (c *AgentCompleter) offline(ctx context.Context, chat *ChatRequest) (*ChatResponse, error) {
	if c.config.OfflineProvider == "" {
		return nil, fmt.Errorf("%w: no offline provider configured", ErrNoProvider)
	}
	// Local providers use their own configured model.
	local := *chat
	local.Model = ""
	return c.router.RouteTo(ctx, c.config.OfflineProvider, &local)
}
