// SPDX-License-Identifier: MIT

// Package feedback receives the XML documents the endpoint pushes over HTTP
// and forwards them to the orchestrator as events.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/vtjoeh/auto-connect-booking/internal/log"
	"github.com/vtjoeh/auto-connect-booking/internal/metrics"
	"github.com/vtjoeh/auto-connect-booking/internal/orchestrator"
)

const (
	// MaxBodyBytes bounds a single feedback document.
	MaxBodyBytes = 64 << 10
	// DefaultSubmitTimeout bounds how long a request waits for queue space.
	DefaultSubmitTimeout = 2 * time.Second
)

// Submitter accepts events for processing.
type Submitter interface {
	Submit(ctx context.Context, ev orchestrator.Event) error
}

// Handler is the HTTP endpoint for pushed feedback.
type Handler struct {
	sink          Submitter
	submitTimeout time.Duration
}

// NewHandler returns a handler forwarding events to sink.
func NewHandler(sink Submitter) *Handler {
	return &Handler{sink: sink, submitTimeout: DefaultSubmitTimeout}
}

// WithSubmitTimeout overrides the queue wait bound.
func (h *Handler) WithSubmitTimeout(d time.Duration) *Handler {
	if d > 0 {
		h.submitTimeout = d
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "feedback")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		metrics.IncFeedbackDocument("malformed")
		status := http.StatusBadRequest
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, map[string]string{"error": "unreadable_body", "detail": err.Error()})
		return
	}

	events, err := Parse(body)
	if err != nil {
		metrics.IncFeedbackDocument("malformed")
		logger.Warn().Err(err).Str(log.FieldEvent, "feedback.malformed").Int("bytes", len(body)).Msg("rejected feedback document")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed_document", "detail": err.Error()})
		return
	}
	if len(events) == 0 {
		metrics.IncFeedbackDocument("ignored")
		logger.Debug().Str(log.FieldEvent, "feedback.ignored").Msg("feedback document carries no events of interest")
		writeJSON(w, http.StatusOK, map[string]int{"accepted": 0})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.submitTimeout)
	defer cancel()
	for i, ev := range events {
		if err := h.sink.Submit(ctx, ev); err != nil {
			metrics.IncFeedbackDocument("rejected")
			logger.Error().
				Err(err).
				Str(log.FieldEvent, "feedback.submit_failed").
				Str(log.FieldKind, string(ev.Kind())).
				Int("submitted", i).
				Msg("orchestrator did not accept event")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "queue_unavailable", "detail": err.Error()})
			return
		}
	}

	metrics.IncFeedbackDocument("accepted")
	logger.Debug().Str(log.FieldEvent, "feedback.accepted").Int("events", len(events)).Msg("feedback forwarded")
	writeJSON(w, http.StatusOK, map[string]int{"accepted": len(events)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
