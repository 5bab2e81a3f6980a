// SPDX-License-Identifier: MIT

package xapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound    = errors.New("endpoint: resource not found")
	ErrForbidden   = errors.New("endpoint: access forbidden")
	ErrUnavailable = errors.New("endpoint: host unreachable or transport failure")
	ErrRejected    = errors.New("endpoint: command rejected")
	ErrBadResponse = errors.New("endpoint: invalid response format or malformed data")
	ErrTimeout     = errors.New("endpoint: request timed out")
)

const maxErrorBody = 512

// Error wraps a sentinel with the failing operation and what the endpoint said.
type Error struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // Nested lower-level error (e.g. net.Error)
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("xapi: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Sentinel
}

func wrapError(op string, err error, status int, body []byte) error {
	return &Error{
		Sentinel:  classify(err, status),
		Operation: op,
		Status:    status,
		Body:      sanitizeBody(body),
		Err:       err,
	}
}

func badResponse(op string, err error, body []byte) error {
	return &Error{
		Sentinel:  ErrBadResponse,
		Operation: op,
		Body:      sanitizeBody(body),
		Err:       err,
	}
}

func classify(err error, status int) error {
	if err != nil {
		var netErr net.Error
		switch {
		case errors.Is(err, ErrCircuitOpen):
			return ErrUnavailable
		case errors.Is(err, context.DeadlineExceeded):
			return ErrTimeout
		case errors.As(err, &netErr) && netErr.Timeout():
			return ErrTimeout
		default:
			return ErrUnavailable
		}
	}

	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrForbidden
	case status >= 500:
		return ErrUnavailable
	case status >= 400:
		return ErrRejected
	default:
		return ErrBadResponse
	}
}

// retriable reports whether the failure says something about the endpoint's
// health and should count against the circuit breaker.
func retriable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout)
}

var secretPattern = regexp.MustCompile(`(?i)(password|passwd|token|secret)(\s*[=:>]\s*"?)[^&<"\s]+`)

func sanitizeBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return secretPattern.ReplaceAllString(string(body), "$1$2***")
}

// outcomeLabel maps an error to the metrics outcome label.
func outcomeLabel(err error) string {
	var xe *Error
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &xe) && errors.Is(xe.Err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrBadResponse):
		return "bad_response"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
