// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// Validate checks the configuration and reports every problem at once.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: %s", field, fmt.Sprintf(format, args...)))
	}

	if strings.TrimSpace(cfg.Device.BaseURL) != "" {
		u, err := url.Parse(cfg.Device.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("device.base_url", "must be an http(s) URL, got %q", cfg.Device.BaseURL)
		}
	}
	if cfg.Device.Timeout <= 0 {
		add("device.timeout", "must be positive")
	}
	if cfg.Device.CommandsPerSecond <= 0 {
		add("device.commands_per_second", "must be positive")
	}
	if cfg.Device.Burst < 1 {
		add("device.burst", "must be at least 1")
	}

	if _, _, err := net.SplitHostPort(cfg.Feedback.ListenAddr); err != nil {
		add("feedback.listen_addr", "invalid listen address %q", cfg.Feedback.ListenAddr)
	}
	if cfg.Feedback.Register {
		if strings.TrimSpace(cfg.Feedback.PublicURL) == "" {
			add("feedback.public_url", "required when feedback.register is true")
		}
		if strings.TrimSpace(cfg.Device.BaseURL) == "" {
			add("device.base_url", "required when feedback.register is true")
		}
	}
	if cfg.Feedback.Slot < 1 || cfg.Feedback.Slot > 4 {
		add("feedback.slot", "must be between 1 and 4, got %d", cfg.Feedback.Slot)
	}

	errs = append(errs, validatePolicy(cfg.Policy)...)

	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.ListenAddr); err != nil {
			add("metrics.listen_addr", "invalid listen address %q", cfg.Metrics.ListenAddr)
		}
	}

	switch cfg.Telemetry.Exporter {
	case "", "noop", "grpc", "http":
	default:
		add("telemetry.exporter", "must be one of grpc, http, noop; got %q", cfg.Telemetry.Exporter)
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		add("telemetry.sampling_rate", "must be between 0 and 1")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// ValidatePolicy checks only the orchestrator policy.
func ValidatePolicy(p Policy) error {
	errs := validatePolicy(p)
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func validatePolicy(p Policy) []error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("policy.%s: %s", field, fmt.Sprintf(format, args...)))
	}

	if p.MessageDuration < time.Second {
		add("message_duration", "must be at least 1s")
	}
	if p.CountdownWindow < 0 || p.CountdownWindow > time.Hour {
		add("countdown_window", "must be between 0 and 1h")
	}
	if p.RetryInterval < 100*time.Millisecond || p.RetryInterval > 5*time.Minute {
		add("retry_interval", "must be between 100ms and 5m")
	}
	if p.MaxRetryAttempts < 0 || p.MaxRetryAttempts > 100 {
		add("max_retry_attempts", "must be between 0 and 100, got %d", p.MaxRetryAttempts)
	}
	if p.LookaheadHorizon < time.Minute || p.LookaheadHorizon > 7*24*time.Hour {
		add("lookahead_horizon", "must be between 1m and 168h")
	}
	if p.EventQueueSize < 1 || p.EventQueueSize > 4096 {
		add("event_queue_size", "must be between 1 and 4096")
	}
	return errs
}
