package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/nidhogg/nuka-academy/internal/store"
)

// submitRun starts a workflow in the background and returns its ID.
func (h *Handler) submitRun(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "background runs are not enabled")
		return
	}
	var req orchestrateRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, err := h.runner.Submit(r.Context(), req.toRequest(h.mode))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/runs/"+id)
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "run_id": id})
}

func (h *Handler) activeRuns(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "background runs are not enabled")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "runs": h.runner.Running()})
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not enabled")
		return
	}
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "runs": runs})
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not enabled")
		return
	}
	run, err := h.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "run": run})
}

// runEvents replays a run's progress from the start and follows it until a
// terminal snapshot or the client goes away.
func (h *Handler) runEvents(w http.ResponseWriter, r *http.Request) {
	if h.progress == nil {
		writeError(w, http.StatusServiceUnavailable, "progress streaming is not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	stream, ok := newEventStream(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	for p := range h.progress.Subscribe(r.Context(), id) {
		if !h.emit(stream, "progress", p) {
			return
		}
	}
	h.emit(stream, "done", map[string]string{"run_id": id})
}
