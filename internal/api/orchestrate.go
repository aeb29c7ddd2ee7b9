package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nidhogg/nuka-academy/internal/agent"
	"github.com/nidhogg/nuka-academy/internal/intent"
	"github.com/nidhogg/nuka-academy/internal/orchestrator"
	"github.com/nidhogg/nuka-academy/internal/provider"
)

// orchestrateRequest accepts history under either key; both are used.
type orchestrateRequest struct {
	Message             string             `json:"message" validate:"required"`
	Context             string             `json:"context"`
	Mode                string             `json:"mode" validate:"omitempty,oneof=online offline hybrid"`
	History             []provider.Message `json:"history" validate:"dive"`
	ConversationHistory []provider.Message `json:"conversationHistory" validate:"dive"`
}

func (req *orchestrateRequest) toRequest(def provider.Mode) *orchestrator.Request {
	return &orchestrator.Request{
		Message: req.Message,
		Context: req.Context,
		History: append(append([]provider.Message(nil), req.History...), req.ConversationHistory...),
		Mode:    modeOr(req.Mode, def),
	}
}

func modeOr(s string, def provider.Mode) provider.Mode {
	if s == "" {
		return def
	}
	m, err := provider.ParseMode(s)
	if err != nil {
		return def
	}
	return m
}

func (h *Handler) orchestrate(w http.ResponseWriter, r *http.Request) {
	var req orchestrateRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.orch.Execute(r.Context(), req.toRequest(h.mode))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// orchestrateStream runs a workflow and streams each progress snapshot,
// then one result or error event.
func (h *Handler) orchestrateStream(w http.ResponseWriter, r *http.Request) {
	var req orchestrateRequest
	if !h.decode(w, r, &req) {
		return
	}
	stream, ok := newEventStream(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	run := req.toRequest(h.mode)
	run.Listener = orchestrator.ListenerFunc(func(p orchestrator.WorkflowProgress) {
		h.emit(stream, "progress", p)
	})

	resp, err := h.orch.Execute(r.Context(), run)
	if err != nil {
		body := map[string]any{"success": false, "error": err.Error()}
		var se *orchestrator.StepError
		if errors.As(err, &se) {
			body["workflow"] = se.Progress
		}
		h.emit(stream, "error", body)
		return
	}
	h.emit(stream, "result", resp)
}

type analyzeRequest struct {
	Message string `json:"message" validate:"required"`
	Context string `json:"context"`
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !h.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"analysis": h.orch.Analyzer().Analyze(req.Message, req.Context),
	})
}

func (h *Handler) suggestions(w http.ResponseWriter, r *http.Request) {
	level := intent.Beginner
	if q := r.URL.Query().Get("level"); q != "" {
		l, err := intent.ParseComplexity(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		level = l
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"level":       level,
		"suggestions": h.orch.Analyzer().QuickStart(level),
	})
}

type chatRequest struct {
	Message             string             `json:"message" validate:"required"`
	Agent               string             `json:"agent" validate:"omitempty,oneof=tutor coder architect marketer reviewer curriculum"`
	Context             string             `json:"context"`
	Mode                string             `json:"mode" validate:"omitempty,oneof=online offline hybrid"`
	Model               string             `json:"model"`
	History             []provider.Message `json:"history" validate:"dive"`
	ConversationHistory []provider.Message `json:"conversationHistory" validate:"dive"`
}

// chat talks to one agent without running a workflow.
func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := agent.Tutor
	if req.Agent != "" {
		id = agent.ID(strings.ToLower(req.Agent))
	}
	resp, err := h.completer.Turn(r.Context(), &provider.CompletionRequest{
		Agent:   id,
		Message: req.Message,
		Context: req.Context,
		History: append(append([]provider.Message(nil), req.History...), req.ConversationHistory...),
		Mode:    modeOr(req.Mode, h.mode),
		Model:   req.Model,
	})
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"response": resp.Content,
		"agent":    id,
		"model":    resp.Model,
	})
}
