package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"
)

// SlackAdapter talks to Slack over Socket Mode. Replies go into the thread
// of the message that triggered them, under the answering agent's persona.
type SlackAdapter struct {
	client   *slack.Client
	socket   *socketmode.Client
	handler  MessageHandler
	personas map[string]*AgentPersona // agentID -> persona

	connected   bool
	connectedAt time.Time
	lastError   string
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewSlackAdapter creates a Slack adapter from a bot token (xoxb-...) and an
// app-level token (xapp-...).
func NewSlackAdapter(botToken, appToken string, logger *zap.Logger) *SlackAdapter {
	client := slack.New(botToken, slack.OptionAppLevelToken(appToken))
	socket := socketmode.New(client, socketmode.OptionLog(zap.NewStdLog(logger)))

	return &SlackAdapter{
		client:   client,
		socket:   socket,
		personas: make(map[string]*AgentPersona),
		logger:   logger,
	}
}

func (a *SlackAdapter) Platform() string { return PlatformSlack }

func (a *SlackAdapter) OnMessage(h MessageHandler) { a.handler = h }

// SetPersona registers how an agent is shown in Slack.
func (a *SlackAdapter) SetPersona(agentID string, persona *AgentPersona) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.personas[agentID] = persona
}

// Connect starts the Socket Mode loop in the background.
func (a *SlackAdapter) Connect(ctx context.Context) error {
	go a.handleEvents(ctx)
	go func() {
		if err := a.socket.RunContext(ctx); err != nil && ctx.Err() == nil {
			a.setState(false, err.Error())
			a.logger.Error("slack socket mode error", zap.Error(err))
		}
	}()
	return nil
}

func (a *SlackAdapter) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-a.socket.Events:
			if !ok {
				return
			}
			a.processEvent(evt)
		}
	}
}

func (a *SlackAdapter) processEvent(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnected:
		a.setState(true, "")
		a.logger.Info("slack adapter connected via socket mode")
	case socketmode.EventTypeConnectionError:
		a.setState(false, "connection error")
		a.logger.Warn("slack connection error")
	case socketmode.EventTypeEventsAPI:
		eventsAPI, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		a.socket.Ack(*evt.Request)

		if eventsAPI.Type != slackevents.CallbackEvent {
			return
		}
		if ev, ok := eventsAPI.InnerEvent.Data.(*slackevents.MessageEvent); ok {
			// Bot posts and edits are not user turns.
			if ev.BotID != "" || ev.SubType != "" {
				return
			}
			a.handleSlackMessage(ev)
		}
	}
}

func (a *SlackAdapter) handleSlackMessage(ev *slackevents.MessageEvent) {
	if a.handler == nil {
		return
	}
	threadTS := ev.ThreadTimeStamp
	if threadTS == "" {
		threadTS = ev.TimeStamp
	}
	a.handler(&InboundMessage{
		Platform:  PlatformSlack,
		ChannelID: ev.Channel,
		UserID:    ev.User,
		UserName:  ev.User,
		Content:   ev.Text,
		Timestamp: time.Now(),
		ReplyTo:   threadTS,
	})
}

// Send posts a message, threaded when ReplyTo is set.
func (a *SlackAdapter) Send(ctx context.Context, msg *OutboundMessage) error {
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Content, false)}
	if msg.ReplyTo != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ReplyTo))
	}
	opts = append(opts, a.personaOpts(msg.AgentID)...)

	if _, _, err := a.client.PostMessageContext(ctx, msg.ChannelID, opts...); err != nil {
		a.logger.Error("slack send failed",
			zap.String("channel", msg.ChannelID), zap.Error(err))
		return fmt.Errorf("slack send: %w", err)
	}
	return nil
}

func (a *SlackAdapter) personaOpts(agentID string) []slack.MsgOption {
	if agentID == "" {
		return nil
	}
	a.mu.RLock()
	p, ok := a.personas[agentID]
	a.mu.RUnlock()
	if !ok {
		return nil
	}

	opts := []slack.MsgOption{slack.MsgOptionUsername(p.Name)}
	if p.IconURL != "" {
		opts = append(opts, slack.MsgOptionIconURL(p.IconURL))
	} else if p.Emoji != "" {
		opts = append(opts, slack.MsgOptionIconEmoji(p.Emoji))
	}
	return opts
}

func (a *SlackAdapter) setState(connected bool, errMsg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if connected && !a.connected {
		a.connectedAt = time.Now()
	}
	a.connected = connected
	a.lastError = errMsg
}

func (a *SlackAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := AdapterStatus{
		Platform:  PlatformSlack,
		Connected: a.connected,
		Error:     a.lastError,
		Details:   fmt.Sprintf("personas=%d", len(a.personas)),
	}
	if a.connected {
		t := a.connectedAt
		s.ConnectedAt = &t
	}
	return s
}

// Close is a no-op; cancelling the Connect context stops the socket.
func (a *SlackAdapter) Close() error { return nil }
