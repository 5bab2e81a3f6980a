// SPDX-License-Identifier: MIT

package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrLookup means booking or call data was unavailable; the decision is
	// aborted for this event.
	ErrLookup = errors.New("orchestrator: booking or call data unavailable")
	// ErrNoDialableTarget means the booking has nothing to connect to.
	ErrNoDialableTarget = errors.New("orchestrator: booking has no dialable target")
	// ErrRetryBudgetExhausted means a call stayed active through every retry.
	ErrRetryBudgetExhausted = errors.New("orchestrator: retry budget exhausted")
	// ErrActuator means the endpoint refused a dial, join or disconnect.
	ErrActuator = errors.New("orchestrator: actuator command failed")
	// ErrStopped is returned by Submit once the loop has exited.
	ErrStopped = errors.New("orchestrator: stopped")
)

func lookupError(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrLookup, what, err)
}

func actuatorError(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrActuator, what, err)
}
