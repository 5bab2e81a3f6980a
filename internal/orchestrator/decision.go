// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vtjoeh/auto-connect-booking/internal/journal"
	"github.com/vtjoeh/auto-connect-booking/internal/log"
	"github.com/vtjoeh/auto-connect-booking/internal/metrics"
	"github.com/vtjoeh/auto-connect-booking/internal/telemetry"
)

const (
	decisionConnect    = "connect"
	decisionDisconnect = "disconnect"
	decisionPreempt    = "preempt"
)

const (
	outcomeDialed           = "dialed"
	outcomeJoined           = "joined"
	outcomeRetryScheduled   = "retry_scheduled"
	outcomeExhausted        = "exhausted"
	outcomeNoTarget         = "no_target"
	outcomeAlreadyConnected = "already_connected"
	outcomeLookupFailed     = "lookup_failed"
	outcomeActuatorFailed   = "actuator_failed"
	outcomeDisconnected     = "disconnected"
	outcomePreempted        = "preempted"
	outcomeNoCall           = "no_call"
	outcomeAddressMismatch  = "address_mismatch"
	outcomeDuplicate        = "duplicate"
	outcomeDisabled         = "disabled"
)

// journaled outcomes are the ones that changed something on the endpoint or
// gave up on a meeting.
var journaled = map[string]bool{
	outcomeDialed:         true,
	outcomeJoined:         true,
	outcomeDisconnected:   true,
	outcomePreempted:      true,
	outcomeExhausted:      true,
	outcomeNoTarget:       true,
	outcomeActuatorFailed: true,
}

type result struct {
	decision  string
	bookingID string
	outcome   string
	attempt   int
	detail    string
	err       error
}

// conclude logs, counts and journals one decision. It never fails.
func (o *Orchestrator) conclude(ctx context.Context, r result) {
	metrics.IncDecision(r.decision, r.outcome)

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(telemetry.DecisionAttributes(r.decision, r.outcome, r.bookingID, r.attempt)...)

	if r.bookingID != "" && log.BookingIDFromContext(ctx) != r.bookingID {
		ctx = log.ContextWithBookingID(ctx, r.bookingID)
	}
	l := log.WithContext(ctx, o.logger)
	var ev *zerolog.Event
	switch {
	case r.err == nil,
		errors.Is(r.err, ErrNoDialableTarget),
		errors.Is(r.err, ErrRetryBudgetExhausted):
		ev = l.Info()
	case errors.Is(r.err, ErrActuator):
		span.RecordError(r.err)
		span.SetStatus(codes.Error, r.outcome)
		ev = l.Error()
	default:
		span.RecordError(r.err)
		ev = l.Warn()
	}
	ev.Err(r.err).
		Str(log.FieldEvent, r.decision+"."+r.outcome).
		Str(log.FieldDecision, r.decision).
		Str(log.FieldOutcome, r.outcome).
		Int(log.FieldAttempt, r.attempt).
		Str("detail", r.detail).
		Msg("decision concluded")

	if o.recorder == nil || !journaled[r.outcome] {
		return
	}
	detail := r.detail
	if r.err != nil {
		detail = r.err.Error()
	}
	if err := o.recorder.Record(ctx, journal.Entry{
		Time:      o.clock.Now(),
		BookingID: r.bookingID,
		Decision:  r.decision,
		Outcome:   r.outcome,
		Detail:    detail,
	}); err != nil {
		l.Warn().Err(err).
			Str(log.FieldEvent, "journal.record_failed").
			Msg("failed to journal decision")
	}
}
