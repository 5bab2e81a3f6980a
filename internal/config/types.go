// SPDX-License-Identifier: MIT

package config

import "time"

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	LogLevel   string `yaml:"log_level"`
	LogService string `yaml:"log_service"`

	Device    DeviceConfig    `yaml:"device"`
	Feedback  FeedbackConfig  `yaml:"feedback"`
	Policy    Policy          `yaml:"policy"`
	Journal   JournalConfig   `yaml:"journal"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DeviceConfig describes how to reach the endpoint's command API.
type DeviceConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	Timeout           time.Duration `yaml:"timeout"`
	CommandsPerSecond float64       `yaml:"commands_per_second"`
	Burst             int           `yaml:"burst"`
}

// FeedbackConfig controls the HTTP receiver the endpoint pushes events to.
type FeedbackConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// PublicURL is the address the endpoint should post feedback to.
	PublicURL string `yaml:"public_url"`
	Register  bool   `yaml:"register"`
	Slot      int    `yaml:"slot"`
}

// Policy is the orchestrator's behavioural configuration.
type Policy struct {
	MuteOnConnect           bool          `yaml:"mute_on_connect"`
	AutoDisconnectScheduled bool          `yaml:"auto_disconnect_scheduled"`
	AutoDisconnectAdhoc     bool          `yaml:"auto_disconnect_adhoc"`
	SoundsEnabled           bool          `yaml:"sounds_enabled"`
	MessagesEnabled         bool          `yaml:"messages_enabled"`
	MessageDuration         time.Duration `yaml:"message_duration"`
	CountdownEnabled        bool          `yaml:"countdown_enabled"`
	CountdownWindow         time.Duration `yaml:"countdown_window"`
	CountdownForNonCalls    bool          `yaml:"countdown_for_non_calls"`
	RetryInterval           time.Duration `yaml:"retry_interval"`
	MaxRetryAttempts        int           `yaml:"max_retry_attempts"`
	LookaheadHorizon        time.Duration `yaml:"lookahead_horizon"`
	StartBufferMessage      bool          `yaml:"start_buffer_message"`
	EventQueueSize          int           `yaml:"event_queue_size"`
}

// JournalConfig controls the SQLite journal of automated actions.
type JournalConfig struct {
	// Path to the database file. Empty disables the journal.
	Path string `yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// DefaultPolicy returns the stock behaviour: mute on connect, scheduled
// calls hang up at their end time, three retries five seconds apart.
func DefaultPolicy() Policy {
	return Policy{
		MuteOnConnect:           true,
		AutoDisconnectScheduled: true,
		AutoDisconnectAdhoc:     false,
		SoundsEnabled:           true,
		MessagesEnabled:         true,
		MessageDuration:         8 * time.Second,
		CountdownEnabled:        true,
		CountdownWindow:         30 * time.Second,
		CountdownForNonCalls:    false,
		RetryInterval:           5 * time.Second,
		MaxRetryAttempts:        3,
		LookaheadHorizon:        24 * time.Hour,
		StartBufferMessage:      true,
		EventQueueSize:          64,
	}
}

// Defaults returns a fully populated configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: "autoconnectd",
		Device: DeviceConfig{
			Timeout:           10 * time.Second,
			CommandsPerSecond: 5,
			Burst:             10,
		},
		Feedback: FeedbackConfig{
			ListenAddr: ":8088",
			Register:   false,
			Slot:       1,
		},
		Policy: DefaultPolicy(),
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: ":9090",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			Exporter:     "noop",
			Environment:  "production",
			SamplingRate: 1.0,
		},
	}
}

// ServerConfig holds the HTTP server settings shared by the API listener.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

// Server derives the API server settings. The feedback listener doubles as
// the API listener so the endpoint and operators reach the same port.
func (c AppConfig) Server() ServerConfig {
	return ServerConfig{
		ListenAddr:      c.Feedback.ListenAddr,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 10 * time.Second,
	}
}
