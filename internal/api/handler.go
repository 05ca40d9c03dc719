// Package api provides the HTTP interface to a crew: posting messages to
// sessions, reading session history, cancelling runs and exposing metrics.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/agentcrew/agent"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/runner"
	"github.com/hupe1980/agentcrew/session"
)

const maxBodyBytes = 1 << 20

// Handler serves the crew API.
type Handler struct {
	runner   *runner.Runner
	store    session.Store
	registry *prometheus.Registry
	logger   logging.Logger
}

// NewHandler creates a Handler. registry may be nil, in which case /metrics
// is not served.
func NewHandler(r *runner.Runner, store session.Store, registry *prometheus.Registry, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &Handler{runner: r, store: store, registry: registry, logger: logger}
}

// Router returns the API routes with the standard middleware stack.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	h.RegisterRoutes(r)

	return r
}

// RegisterRoutes registers the API routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.health)

	if h.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/sessions", h.listSessions)
		r.Get("/sessions/{id}", h.getSession)
		r.Delete("/sessions/{id}", h.deleteSession)
		r.Post("/sessions/{id}/messages", h.postMessage)
		r.Get("/runs", h.listRuns)
		r.Delete("/runs/{id}", h.cancelRun)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok", "agent": h.runner.Agent().Name()})
}

type postMessageRequest struct {
	Message string `json:"message"`
}

// RunResponse is the body returned for a completed run.
type RunResponse struct {
	RunID      string           `json:"run_id"`
	SessionID  string           `json:"session_id"`
	Outcome    agent.Outcome    `json:"outcome"`
	Turns      int              `json:"turns"`
	Answer     string           `json:"answer,omitempty"`
	Produced   core.Log         `json:"produced"`
	Usage      model.TokenUsage `json:"usage"`
	DurationMS int64            `json:"duration_ms"`
	Error      string           `json:"error,omitempty"`
}

func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req postMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message cannot be empty")
		return
	}

	res, err := h.runner.Run(r.Context(), sessionID, req.Message)
	if res == nil {
		h.logger.Error("api.run.failed", "session_id", sessionID, "error", err)
		Error(w, statusFor(err), err.Error())
		return
	}

	body := RunResponse{
		RunID:      res.RunID,
		SessionID:  res.SessionID,
		Outcome:    res.Outcome,
		Turns:      res.Turns,
		Answer:     res.Final.Content,
		Produced:   res.ProducedMessages(),
		Usage:      res.Usage,
		DurationMS: res.Duration.Milliseconds(),
	}
	if body.Produced == nil {
		body.Produced = core.Log{}
	}

	status := http.StatusOK
	if err != nil {
		body.Error = err.Error()
		status = statusFor(err)
	}

	JSON(w, status, body)
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, core.ErrAborted):
		// Client went away or the run was cancelled.
		return 499
	case errors.Is(err, core.ErrTurnBudgetExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrModelInvocation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type sessionResponse struct {
	SessionID string   `json:"session_id"`
	Messages  core.Log `json:"messages"`
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	log, err := h.store.Load(r.Context(), sessionID)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	if len(log) == 0 {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	JSON(w, http.StatusOK, sessionResponse{SessionID: sessionID, Messages: log})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	infos, err := h.store.List(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	if infos == nil {
		infos = []session.Info{}
	}

	JSON(w, http.StatusOK, map[string]any{"sessions": infos})
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	cancelled := h.runner.CancelSession(sessionID)

	if err := h.store.Delete(r.Context(), sessionID); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	JSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "cancelled_runs": cancelled})
}

func (h *Handler) listRuns(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{"runs": h.runner.ActiveRuns()})
}

func (h *Handler) cancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	if err := h.runner.Cancel(runID); err != nil {
		if errors.Is(err, runner.ErrRunNotFound) {
			Error(w, http.StatusNotFound, err.Error())
			return
		}
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	JSON(w, http.StatusAccepted, map[string]any{"run_id": runID, "cancelled_at": time.Now().UTC()})
}
