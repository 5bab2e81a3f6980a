// SPDX-License-Identifier: MIT

// Package api wires the daemon's HTTP surface: the feedback receiver the
// endpoint posts to, operator read endpoints and health probes.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vtjoeh/auto-connect-booking/internal/api/middleware"
	"github.com/vtjoeh/auto-connect-booking/internal/journal"
	"github.com/vtjoeh/auto-connect-booking/internal/log"
	"github.com/vtjoeh/auto-connect-booking/internal/orchestrator"
)

// StatusSource exposes the orchestrator's published state.
type StatusSource interface {
	Snapshot() orchestrator.Snapshot
}

// JournalReader lists recorded decisions, newest first.
type JournalReader interface {
	List(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Probes serves liveness and readiness.
type Probes interface {
	ServeHealth(w http.ResponseWriter, r *http.Request)
	ServeReady(w http.ResponseWriter, r *http.Request)
}

// Deps are the collaborators behind the routes. Journal may be nil.
type Deps struct {
	Feedback http.Handler
	Status   StatusSource
	Journal  JournalReader
	Health   Probes

	// TracingService names the otelhttp server spans; empty disables tracing.
	TracingService string
	// FeedbackLimit and APILimit override the default per-IP rate limits.
	FeedbackLimit func(http.Handler) http.Handler
	APILimit      func(http.Handler) http.Handler
}

// Server is the HTTP API.
type Server struct {
	deps   Deps
	router chi.Router
}

// New builds the router.
func New(deps Deps) *Server {
	if deps.FeedbackLimit == nil {
		deps.FeedbackLimit = middleware.FeedbackRateLimit()
	}
	if deps.APILimit == nil {
		deps.APILimit = middleware.APIRateLimit()
	}
	s := &Server{deps: deps}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: s.deps.TracingService,
	})

	if s.deps.Health != nil {
		r.Get("/healthz", s.deps.Health.ServeHealth)
		r.Get("/readyz", s.deps.Health.ServeReady)
	}

	if s.deps.Feedback != nil {
		r.With(s.deps.FeedbackLimit).Method(http.MethodPost, "/feedback", s.deps.Feedback)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.deps.APILimit)
		r.Get("/status", s.handleStatus)
		r.Get("/journal", s.handleJournal)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})
	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Status == nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "orchestrator not wired")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Status.Snapshot())
}

type journalResponse struct {
	Entries []journal.Entry `json:"entries"`
	Count   int             `json:"count"`
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.deps.Journal == nil {
		writeError(w, http.StatusNotFound, "journal_disabled", "journal.path is not configured")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.deps.Journal.List(r.Context(), limit)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(log.FieldEvent, "journal.list_failed").Msg("failed to read journal")
		writeError(w, http.StatusInternalServerError, "journal_unavailable", "")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, journalResponse{Entries: entries, Count: len(entries)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	body := map[string]string{"error": code}
	if detail != "" {
		body["detail"] = detail
	}
	writeJSON(w, status, body)
}
