package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/nodeflow/internal/config"
	"github.com/gyaneshwarpardhi/nodeflow/internal/engine"
)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	svc *engine.Service
	lib *config.Library
	mux *http.ServeMux
}

// runRequest is the optional body of a run request.
type runRequest struct {
	// Inputs feed graph_input nodes by node id.
	Inputs map[string]any `json:"inputs"`
}

// New creates an HTTP handler and registers all routes.
func New(svc *engine.Service, lib *config.Library) http.Handler {
	h := &Handler{svc: svc, lib: lib, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/workflows/{id}/runs", h.runSync)
	h.mux.HandleFunc("POST /v1/workflows/{id}/runs/async", h.runAsync)
	h.mux.HandleFunc("GET /v1/runs/{id}", h.getRun)
	h.mux.HandleFunc("POST /v1/runs/{id}/cancel", h.cancelRun)
	h.mux.HandleFunc("GET /v1/workflows", h.listWorkflows)
	h.mux.HandleFunc("POST /v1/workflows/reload", h.reloadWorkflows)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// POST /v1/workflows/{id}/runs: run and wait for the outcome.
func (h *Handler) runSync(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRunRequest(w, r)
	if !ok {
		return
	}
	run, err := h.svc.RunSync(r.Context(), r.PathValue("id"), req.Inputs)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// POST /v1/workflows/{id}/runs/async: enqueue and return the run id.
func (h *Handler) runAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRunRequest(w, r)
	if !ok {
		return
	}
	id, err := h.svc.RunAsync(r.PathValue("id"), req.Inputs)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id})
}

// GET /v1/runs/{id}
func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// POST /v1/runs/{id}/cancel
func (h *Handler) cancelRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.svc.Cancel(id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"run_id": id, "cancelled": true})
}

type workflowSummary struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Nodes       int    `json:"nodes"`
	Connections int    `json:"connections"`
}

// GET /v1/workflows: list loaded workflows.
func (h *Handler) listWorkflows(w http.ResponseWriter, r *http.Request) {
	out := make([]workflowSummary, 0)
	for _, id := range h.lib.IDs() {
		wf, err := h.lib.Workflow(id)
		if err != nil {
			continue // removed by a concurrent reload
		}
		out = append(out, workflowSummary{
			ID:          wf.ID,
			Description: wf.Description,
			Nodes:       len(wf.Nodes),
			Connections: len(wf.Connections),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": out})
}

// POST /v1/workflows/reload: re-read the workflows directory.
func (h *Handler) reloadWorkflows(w http.ResponseWriter, r *http.Request) {
	docs, err := h.lib.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded":        true,
		"workflows_count": len(docs),
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if the run queue is more than 80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.svc.QueueUtilization()
	body := map[string]any{
		"status":            "ready",
		"queue_utilization": util,
		"in_flight":         h.svc.InFlight(),
	}
	if util > 0.8 {
		body["status"] = "overloaded"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// decodeRunRequest accepts an empty body as a run without inputs.
func decodeRunRequest(w http.ResponseWriter, r *http.Request) (runRequest, bool) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return req, false
	}
	return req, true
}
