// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the daemon.
const (
	// Event loop attributes
	EventKindKey     = "event.kind"
	CorrelationIDKey = "correlation.id"

	// Decision attributes
	DecisionKey  = "decision"
	OutcomeKey   = "outcome"
	BookingIDKey = "booking.id"
	AttemptKey   = "retry.attempt"

	// Endpoint command API attributes
	XAPICommandKey = "xapi.command"
	XAPIMethodKey  = "xapi.method"
	XAPIOutcomeKey = "xapi.outcome"

	// Error attributes
	ErrorTypeKey = "error.type"
)

// EventAttributes describes one handled event.
func EventAttributes(kind, correlationID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(EventKindKey, kind),
		attribute.String(CorrelationIDKey, correlationID),
	}
}

// DecisionAttributes describes the result of a connect or disconnect decision.
func DecisionAttributes(decision, outcome, bookingID string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(DecisionKey, decision),
		attribute.String(OutcomeKey, outcome),
		attribute.String(BookingIDKey, bookingID),
		attribute.Int(AttemptKey, attempt),
	}
}

// XAPIAttributes describes one request to the endpoint.
func XAPIAttributes(command, method string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(XAPICommandKey, command),
		attribute.String(XAPIMethodKey, method),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ErrorTypeKey, errorType),
	}
}
