// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the file the loader reads, or "" for ENV-only configuration.
func (l *Loader) Path() string {
	return l.configPath
}

func (l *Loader) key(name string) string {
	k := EnvPrefix + name
	l.ConsumedEnvKeys[k] = struct{}{}
	return k
}

// Load loads configuration with precedence: ENV > File > Defaults
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes the YAML file over dst. Keys missing from the file keep
// the values already in dst.
func (l *Loader) loadFile(path string, dst *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = ParseString(l.key("LOG_LEVEL"), cfg.LogLevel)
	cfg.LogService = ParseString(l.key("LOG_SERVICE"), cfg.LogService)

	d := &cfg.Device
	d.BaseURL = ParseString(l.key("DEVICE_URL"), d.BaseURL)
	d.Username = ParseString(l.key("DEVICE_USERNAME"), d.Username)
	d.Password = ParseString(l.key("DEVICE_PASSWORD"), d.Password)
	d.Timeout = ParseDuration(l.key("DEVICE_TIMEOUT"), d.Timeout)
	d.CommandsPerSecond = ParseFloat(l.key("DEVICE_COMMANDS_PER_SECOND"), d.CommandsPerSecond)
	d.Burst = ParseInt(l.key("DEVICE_BURST"), d.Burst)

	f := &cfg.Feedback
	f.ListenAddr = ParseString(l.key("FEEDBACK_LISTEN"), f.ListenAddr)
	f.PublicURL = ParseString(l.key("FEEDBACK_PUBLIC_URL"), f.PublicURL)
	f.Register = ParseBool(l.key("FEEDBACK_REGISTER"), f.Register)
	f.Slot = ParseInt(l.key("FEEDBACK_SLOT"), f.Slot)

	p := &cfg.Policy
	p.MuteOnConnect = ParseBool(l.key("MUTE_ON_CONNECT"), p.MuteOnConnect)
	p.AutoDisconnectScheduled = ParseBool(l.key("AUTO_DISCONNECT_SCHEDULED"), p.AutoDisconnectScheduled)
	p.AutoDisconnectAdhoc = ParseBool(l.key("AUTO_DISCONNECT_ADHOC"), p.AutoDisconnectAdhoc)
	p.SoundsEnabled = ParseBool(l.key("SOUNDS_ENABLED"), p.SoundsEnabled)
	p.MessagesEnabled = ParseBool(l.key("MESSAGES_ENABLED"), p.MessagesEnabled)
	p.MessageDuration = ParseDuration(l.key("MESSAGE_DURATION"), p.MessageDuration)
	p.CountdownEnabled = ParseBool(l.key("COUNTDOWN_ENABLED"), p.CountdownEnabled)
	p.CountdownWindow = ParseDuration(l.key("COUNTDOWN_WINDOW"), p.CountdownWindow)
	p.CountdownForNonCalls = ParseBool(l.key("COUNTDOWN_FOR_NON_CALLS"), p.CountdownForNonCalls)
	p.RetryInterval = ParseDuration(l.key("RETRY_INTERVAL"), p.RetryInterval)
	p.MaxRetryAttempts = ParseInt(l.key("MAX_RETRY_ATTEMPTS"), p.MaxRetryAttempts)
	p.LookaheadHorizon = ParseDuration(l.key("LOOKAHEAD_HORIZON"), p.LookaheadHorizon)
	p.StartBufferMessage = ParseBool(l.key("START_BUFFER_MESSAGE"), p.StartBufferMessage)
	p.EventQueueSize = ParseInt(l.key("EVENT_QUEUE_SIZE"), p.EventQueueSize)

	cfg.Journal.Path = ParseString(l.key("JOURNAL_PATH"), cfg.Journal.Path)

	cfg.Metrics.Enabled = ParseBool(l.key("METRICS_ENABLED"), cfg.Metrics.Enabled)
	cfg.Metrics.ListenAddr = ParseString(l.key("METRICS_LISTEN"), cfg.Metrics.ListenAddr)

	t := &cfg.Telemetry
	t.Enabled = ParseBool(l.key("TELEMETRY_ENABLED"), t.Enabled)
	t.Exporter = ParseString(l.key("TELEMETRY_EXPORTER"), t.Exporter)
	t.Endpoint = ParseString(l.key("TELEMETRY_ENDPOINT"), t.Endpoint)
	t.Environment = ParseString(l.key("TELEMETRY_ENVIRONMENT"), t.Environment)
	t.SamplingRate = ParseFloat(l.key("TELEMETRY_SAMPLING_RATE"), t.SamplingRate)
}
