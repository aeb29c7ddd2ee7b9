// Package api exposes the academy over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/nidhogg/nuka-academy/internal/agent"
	"github.com/nidhogg/nuka-academy/internal/gateway"
	"github.com/nidhogg/nuka-academy/internal/orchestrator"
	"github.com/nidhogg/nuka-academy/internal/provider"
	"github.com/nidhogg/nuka-academy/internal/store"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// AgentTurner runs a single agent turn.
type AgentTurner interface {
	Turn(ctx context.Context, req *provider.CompletionRequest) (*provider.ChatResponse, error)
}

// ProviderLister exposes the configured providers.
type ProviderLister interface {
	ListProviders() []provider.Provider
	DefaultID() string
}

// RunSubmitter starts background runs.
type RunSubmitter interface {
	Submit(ctx context.Context, req *orchestrator.Request) (string, error)
	Running() []orchestrator.RunState
}

// ProgressSource streams the progress of a background run.
type ProgressSource interface {
	Subscribe(ctx context.Context, runID string) <-chan orchestrator.WorkflowProgress
}

// RunStore reads recorded runs.
type RunStore interface {
	GetRun(ctx context.Context, id string) (*store.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*store.Run, error)
}

// Deps are the handler's collaborators. Runner, Progress, Runs, Gateway
// and RESTGateway are optional; their routes answer 503 when unset.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Completer    AgentTurner
	Agents       agent.Lister
	Providers    ProviderLister
	Runner       RunSubmitter
	Progress     ProgressSource
	Runs         RunStore
	Gateway      *gateway.Gateway
	RESTGateway  *gateway.RESTAdapter
	DefaultMode  provider.Mode
	Checks       map[string]Pinger // backing services probed by /api/health/ready
	Logger       *zap.Logger
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	orch      *orchestrator.Orchestrator
	completer AgentTurner
	agents    agent.Lister
	providers ProviderLister
	runner    RunSubmitter
	progress  ProgressSource
	runs      RunStore
	gw        *gateway.Gateway
	restGW    *gateway.RESTAdapter
	mode      provider.Mode
	checks    map[string]Pinger
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	mode := d.DefaultMode
	if mode == "" {
		mode = provider.ModeOnline
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		orch:      d.Orchestrator,
		completer: d.Completer,
		agents:    d.Agents,
		providers: d.Providers,
		runner:    d.Runner,
		progress:  d.Progress,
		runs:      d.Runs,
		gw:        d.Gateway,
		restGW:    d.RESTGateway,
		mode:      mode,
		checks:    d.Checks,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/health/ready", h.readiness)

		r.Post("/orchestrate", h.orchestrate)
		r.Post("/orchestrate/stream", h.orchestrateStream)
		r.Post("/analyze", h.analyze)
		r.Get("/suggestions", h.suggestions)
		r.Post("/chat", h.chat)

		r.Get("/agents", h.listAgents)
		r.Get("/providers", h.listProviders)

		r.Post("/runs", h.submitRun)
		r.Get("/runs", h.listRuns)
		r.Get("/runs/active", h.activeRuns)
		r.Get("/runs/{id}", h.getRun)
		r.Get("/runs/{id}/events", h.runEvents)

		r.Get("/gateway/status", h.gatewayStatus)
		if h.restGW != nil {
			r.Mount("/gateway/rest", h.restGW.Routes())
		}
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"service":  "orchestrator",
		"features": []string{"intent-detection", "multi-agent-workflow", "smart-routing"},
	})
}

func (h *Handler) listAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "agents": h.agents.List()})
}

type providerInfo struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	IsDefault bool             `json:"is_default"`
	Models    []provider.Model `json:"models"`
	Error     string           `json:"error,omitempty"`
}

// listProviders asks every provider for its models; a provider that fails
// is listed with its error.
func (h *Handler) listProviders(w http.ResponseWriter, r *http.Request) {
	def := h.providers.DefaultID()
	list := h.providers.ListProviders()
	out := make([]providerInfo, 0, len(list))
	for _, p := range list {
		info := providerInfo{ID: p.ID(), Name: p.Name(), IsDefault: p.ID() == def}
		models, err := p.ListModels(r.Context())
		if err != nil {
			info.Error = err.Error()
		}
		info.Models = models
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "providers": out})
}

func (h *Handler) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	if h.gw == nil {
		writeError(w, http.StatusServiceUnavailable, "gateway not initialized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "adapters": h.gw.StatusAll()})
}

// fieldError describes one failed validation rule.
type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// decode reads a JSON body into v and validates it. On failure it writes
// the 400 response and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Invalid request",
			"details": []fieldError{{Field: "body", Rule: "json", Param: err.Error()}},
		})
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, err.Error())
			return false
		}
		details := make([]fieldError, len(verrs))
		for i, fe := range verrs {
			details[i] = fieldError{Field: fe.Namespace(), Rule: fe.Tag(), Param: fe.Param()}
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Invalid request",
			"details": details,
		})
		return false
	}
	return true
}

// writeFailure maps an execution error to a status code.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, agent.ErrUnknownAgent):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	h.logger.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err))

	body := map[string]any{"success": false, "error": err.Error()}
	var se *orchestrator.StepError
	if errors.As(err, &se) {
		body["workflow"] = se.Progress
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
