// Package router connects gateway messages to commands, single agents and
// the workflow orchestrator.
package router

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nidhogg/nuka-academy/internal/agent"
	"github.com/nidhogg/nuka-academy/internal/command"
	"github.com/nidhogg/nuka-academy/internal/gateway"
	"github.com/nidhogg/nuka-academy/internal/orchestrator"
	"github.com/nidhogg/nuka-academy/internal/provider"
	"go.uber.org/zap"
)

// Sender delivers replies to a platform.
type Sender interface {
	Send(ctx context.Context, msg *gateway.OutboundMessage) error
}

// SessionStore keeps per-channel conversation history.
type SessionStore interface {
	FindOrCreateSession(ctx context.Context, platform, channelID string) (string, error)
	AppendMessage(ctx context.Context, sessionID string, msg provider.Message) error
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]provider.Message, error)
	ClearSession(ctx context.Context, sessionID string) error
}

// Config tunes how messages are handled.
type Config struct {
	Mode         provider.Mode
	HistoryLimit int           // session messages passed as history
	Timeout      time.Duration // per message
}

// platform user mentions such as <@U0123> or <@!123> that prefix a message
var userMention = regexp.MustCompile(`^(<@!?[A-Za-z0-9]+>\s*)+`)

// MessageRouter handles inbound chat messages.
type MessageRouter struct {
	orch      *orchestrator.Orchestrator
	completer orchestrator.CompletionProvider
	sender    Sender
	sessions  SessionStore
	commands  *command.Registry
	config    Config
	logger    *zap.Logger

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a MessageRouter. sessions may be nil, in which case every
// message is answered without history.
func New(orch *orchestrator.Orchestrator, completer orchestrator.CompletionProvider,
	sender Sender, sessions SessionStore, commands *command.Registry,
	cfg Config, logger *zap.Logger) *MessageRouter {
	if cfg.Mode == "" {
		cfg.Mode = provider.ModeOnline
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	base, cancel := context.WithCancel(context.Background())
	return &MessageRouter{
		orch:      orch,
		completer: completer,
		sender:    sender,
		sessions:  sessions,
		commands:  commands,
		config:    cfg,
		logger:    logger,
		base:      base,
		cancel:    cancel,
	}
}

// Handle processes msg in the background so adapters' event loops never
// block on a model. Signature matches gateway.MessageHandler.
func (mr *MessageRouter) Handle(msg *gateway.InboundMessage) {
	mr.wg.Add(1)
	go func() {
		defer mr.wg.Done()
		ctx, cancel := context.WithTimeout(mr.base, mr.config.Timeout)
		defer cancel()
		mr.Process(ctx, msg)
	}()
}

// Shutdown cancels in-flight messages and waits for them to finish.
func (mr *MessageRouter) Shutdown(ctx context.Context) error {
	mr.cancel()
	done := make(chan struct{})
	go func() {
		mr.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process handles one message synchronously: slash commands first, then
// an @agent mention, otherwise a full workflow.
func (mr *MessageRouter) Process(ctx context.Context, msg *gateway.InboundMessage) {
	content := strings.TrimSpace(userMention.ReplaceAllString(strings.TrimSpace(msg.Content), ""))
	if content == "" {
		return
	}
	mr.logger.Info("routing message",
		zap.String("platform", msg.Platform),
		zap.String("channel", msg.ChannelID),
		zap.String("user", msg.UserName))

	if command.IsCommand(content) {
		mr.handleCommand(ctx, msg, content)
		return
	}

	sessionID, history := mr.loadSession(ctx, msg)

	var (
		reply   string
		agentID agent.ID
		err     error
	)
	// sent is the user turn as the agents saw it, without any mention prefix.
	sent := content
	if id, rest, ok := parseMention(content); ok {
		agentID, sent = id, rest
		reply, err = mr.completer.Complete(ctx, &provider.CompletionRequest{
			Agent:   id,
			Message: rest,
			History: history,
			Mode:    mr.config.Mode,
		})
	} else {
		reply, agentID, err = mr.runWorkflow(ctx, msg, content, history)
	}
	if err != nil {
		mr.logger.Error("message failed",
			zap.String("platform", msg.Platform),
			zap.String("channel", msg.ChannelID),
			zap.Error(err))
		mr.reply(ctx, msg, "", "⚠️ "+err.Error(), false)
		return
	}

	mr.reply(ctx, msg, agentID, reply, false)
	mr.remember(ctx, sessionID, sent, reply)
}

func (mr *MessageRouter) handleCommand(ctx context.Context, msg *gateway.InboundMessage, content string) {
	cc := &command.CommandContext{
		Platform:  msg.Platform,
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		UserName:  msg.UserName,
	}
	result, err := mr.commands.Dispatch(ctx, content, cc)
	if err != nil {
		mr.logger.Error("command dispatch error", zap.Error(err))
		mr.reply(ctx, msg, "", "Command error: "+err.Error(), false)
		return
	}
	mr.reply(ctx, msg, "", result.Content, false)
}

// runWorkflow acknowledges multi-agent plans, then runs the orchestrator.
// The returned agent is set when exactly one agent answered.
func (mr *MessageRouter) runWorkflow(ctx context.Context, msg *gateway.InboundMessage,
	content string, history []provider.Message) (string, agent.ID, error) {
	plan := mr.orch.Analyzer().Analyze(content, "")
	if len(plan.Workflow) > 1 {
		mr.reply(ctx, msg, "", acknowledgement(plan.Agents), true)
	}

	resp, err := mr.orch.Execute(ctx, &orchestrator.Request{
		Message: content,
		History: history,
		Mode:    mr.config.Mode,
	})
	if err != nil {
		var se *orchestrator.StepError
		if errors.As(err, &se) {
			return "", "", fmt.Errorf("%s %s could not finish: %w", se.Agent.Emoji(), se.Agent.DisplayName(), se.Err)
		}
		return "", "", err
	}

	var single agent.ID
	if len(resp.Workflow.Results) == 1 {
		single = resp.Workflow.Results[0].Agent
	}
	return resp.FinalResponse, single, nil
}

func acknowledgement(agents []agent.ID) string {
	names := make([]string, len(agents))
	for i, id := range agents {
		names[i] = id.Emoji() + " " + id.DisplayName()
	}
	return fmt.Sprintf("On it! Working through this with %s...", strings.Join(names, " → "))
}

// parseMention splits "@coder do x" into the agent and the rest.
func parseMention(content string) (agent.ID, string, bool) {
	if !strings.HasPrefix(content, "@") {
		return "", content, false
	}
	name, rest, _ := strings.Cut(content[1:], " ")
	id, err := agent.Parse(strings.TrimRight(name, ":,"))
	if err != nil {
		return "", content, false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", content, false
	}
	return id, rest, true
}

func (mr *MessageRouter) loadSession(ctx context.Context, msg *gateway.InboundMessage) (string, []provider.Message) {
	if mr.sessions == nil {
		return "", nil
	}
	id, err := mr.sessions.FindOrCreateSession(ctx, msg.Platform, msg.ChannelID)
	if err != nil {
		mr.logger.Warn("session unavailable", zap.Error(err))
		return "", nil
	}
	history, err := mr.sessions.RecentMessages(ctx, id, mr.config.HistoryLimit)
	if err != nil {
		mr.logger.Warn("loading history failed", zap.String("session", id), zap.Error(err))
		return id, nil
	}
	return id, history
}

func (mr *MessageRouter) remember(ctx context.Context, sessionID, user, assistant string) {
	if mr.sessions == nil || sessionID == "" {
		return
	}
	for _, m := range []provider.Message{
		{Role: "user", Content: user},
		{Role: "assistant", Content: assistant},
	} {
		if err := mr.sessions.AppendMessage(ctx, sessionID, m); err != nil {
			mr.logger.Warn("saving history failed", zap.String("session", sessionID), zap.Error(err))
			return
		}
	}
}

// ResetSession clears the history of a platform channel.
func (mr *MessageRouter) ResetSession(ctx context.Context, platform, channelID string) error {
	if mr.sessions == nil {
		return errors.New("sessions are not enabled")
	}
	id, err := mr.sessions.FindOrCreateSession(ctx, platform, channelID)
	if err != nil {
		return err
	}
	return mr.sessions.ClearSession(ctx, id)
}

func (mr *MessageRouter) reply(ctx context.Context, orig *gateway.InboundMessage, agentID agent.ID, text string, interim bool) {
	err := mr.sender.Send(ctx, &gateway.OutboundMessage{
		Platform:  orig.Platform,
		ChannelID: orig.ChannelID,
		AgentID:   string(agentID),
		Content:   text,
		ReplyTo:   orig.ReplyTo,
		Interim:   interim,
	})
	if err != nil {
		mr.logger.Error("send reply failed",
			zap.String("platform", orig.Platform), zap.Error(err))
	}
}
