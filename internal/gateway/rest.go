package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultRESTTimeout = 5 * time.Minute

// RESTAdapter lets HTTP clients talk to the chat router. Each request waits
// for the first non-interim reply on its channel.
type RESTAdapter struct {
	handler  MessageHandler
	timeout  time.Duration
	channels map[string]chan *OutboundMessage // channelID -> pending reply
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewRESTAdapter creates a REST adapter. timeout bounds how long a request
// waits for its reply; zero uses five minutes.
func NewRESTAdapter(timeout time.Duration, logger *zap.Logger) *RESTAdapter {
	if timeout <= 0 {
		timeout = defaultRESTTimeout
	}
	return &RESTAdapter{
		timeout:  timeout,
		channels: make(map[string]chan *OutboundMessage),
		logger:   logger,
	}
}

func (a *RESTAdapter) Platform() string { return PlatformREST }

func (a *RESTAdapter) Connect(_ context.Context) error { return nil }

func (a *RESTAdapter) OnMessage(h MessageHandler) { a.handler = h }

func (a *RESTAdapter) Close() error { return nil }

func (a *RESTAdapter) Status() AdapterStatus {
	a.mu.RLock()
	pending := len(a.channels)
	a.mu.RUnlock()
	return AdapterStatus{
		Platform:  PlatformREST,
		Connected: true,
		Details:   fmt.Sprintf("pending=%d", pending),
	}
}

// Send delivers a reply to a waiting request. Interim messages are dropped.
func (a *RESTAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	if msg.Interim {
		return nil
	}
	a.mu.RLock()
	ch, ok := a.channels[msg.ChannelID]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no active channel: %s", msg.ChannelID)
	}
	select {
	case ch <- msg:
		return nil
	default:
		return fmt.Errorf("channel %s already answered", msg.ChannelID)
	}
}

// Routes returns the adapter's HTTP endpoints.
func (a *RESTAdapter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/message", a.handleMessage)
	return r
}

type restMessageRequest struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	Content   string `json:"content"`
}

// handleMessage accepts one message and blocks until the router answers.
// Reusing a channel_id keeps the conversation's session.
func (a *RESTAdapter) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req restMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if a.handler == nil {
		writeError(w, http.StatusServiceUnavailable, "gateway not ready")
		return
	}

	channelID := req.ChannelID
	if channelID == "" {
		channelID = uuid.NewString()
	}
	ch := make(chan *OutboundMessage, 1)

	a.mu.Lock()
	if _, busy := a.channels[channelID]; busy {
		a.mu.Unlock()
		writeError(w, http.StatusConflict, "channel is busy")
		return
	}
	a.channels[channelID] = ch
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.channels, channelID)
		a.mu.Unlock()
	}()

	a.handler(&InboundMessage{
		Platform:  PlatformREST,
		ChannelID: channelID,
		UserID:    req.UserID,
		UserName:  req.UserName,
		Content:   req.Content,
		Timestamp: time.Now(),
	})

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()
	select {
	case msg := <-ch:
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(msg); err != nil {
			a.logger.Warn("rest reply encode failed", zap.Error(err))
		}
	case <-timer.C:
		writeError(w, http.StatusGatewayTimeout, "response timeout")
	case <-r.Context().Done():
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
