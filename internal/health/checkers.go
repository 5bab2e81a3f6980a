// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"time"
)

// Pinger is anything that can prove it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker turns a Pinger into a checker. A failed ping is unhealthy
// when the component is required and degraded otherwise.
type PingChecker struct {
	name     string
	target   Pinger
	required bool
}

// NewPingChecker creates a checker for target.
func NewPingChecker(name string, target Pinger, required bool) *PingChecker {
	return &PingChecker{name: name, target: target, required: required}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if c.target == nil {
		return CheckResult{Status: StatusHealthy, Message: "not configured (optional)"}
	}
	if err := c.target.Ping(ctx); err != nil {
		status := StatusDegraded
		if c.required {
			status = StatusUnhealthy
		}
		return CheckResult{Status: status, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "reachable"}
}

// LoopChecker reports whether the event loop is running and how long ago
// its state last changed.
type LoopChecker struct {
	running func() (bool, time.Time)
}

// NewLoopChecker creates a checker backed by running.
func NewLoopChecker(running func() (bool, time.Time)) *LoopChecker {
	return &LoopChecker{running: running}
}

func (c *LoopChecker) Name() string { return "event_loop" }

func (c *LoopChecker) Check(_ context.Context) CheckResult {
	ok, updated := c.running()
	if !ok {
		return CheckResult{Status: StatusUnhealthy, Message: "event loop is not running"}
	}
	if updated.IsZero() {
		return CheckResult{Status: StatusHealthy, Message: "running, no events handled yet"}
	}
	return CheckResult{Status: StatusHealthy, Message: "running, last event " + updated.UTC().Format(time.RFC3339)}
}
