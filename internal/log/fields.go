// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldBookingID     = "booking_id"
	FieldCallID        = "call_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldKind      = "kind"
	FieldDecision  = "decision"
	FieldOutcome   = "outcome"
	FieldAttempt   = "attempt"

	// Call / booking fields
	FieldTarget   = "target"
	FieldRemote   = "remote"
	FieldProtocol = "protocol"
	FieldTitle    = "title"
	FieldStart    = "start"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Network fields
	FieldBaseURL = "base_url"
	FieldCommand = "command"
)
