// SPDX-License-Identifier: MIT

// Package bootstrap is the production composition root: it loads
// configuration and wires the endpoint client, journal, orchestrator and
// HTTP surface into a runnable daemon.
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vtjoeh/auto-connect-booking/internal/api"
	"github.com/vtjoeh/auto-connect-booking/internal/config"
	"github.com/vtjoeh/auto-connect-booking/internal/daemon"
	"github.com/vtjoeh/auto-connect-booking/internal/feedback"
	"github.com/vtjoeh/auto-connect-booking/internal/health"
	"github.com/vtjoeh/auto-connect-booking/internal/journal"
	acblog "github.com/vtjoeh/auto-connect-booking/internal/log"
	"github.com/vtjoeh/auto-connect-booking/internal/orchestrator"
	"github.com/vtjoeh/auto-connect-booking/internal/telemetry"
	"github.com/vtjoeh/auto-connect-booking/internal/xapi"
)

// FeedbackPath is where the endpoint posts feedback documents.
const FeedbackPath = "/feedback"

// Container is the production composition root output.
type Container struct {
	Config       config.AppConfig
	ConfigHolder *config.Holder
	Logger       zerolog.Logger

	Client       *xapi.Client
	Journal      *journal.Store // nil when journal.path is empty
	Orchestrator *orchestrator.Orchestrator
	Health       *health.Manager
	Server       *api.Server
	Manager      daemon.Manager
	App          *daemon.App

	telemetry *telemetry.Provider
	startOnce sync.Once
}

// WireServices loads configuration from configPath (empty for ENV only),
// configures logging and builds the dependency graph.
func WireServices(ctx context.Context, version, configPath string) (*Container, error) {
	if ctx == nil {
		return nil, fmt.Errorf("wire services context is nil")
	}

	loader := config.NewLoader(strings.TrimSpace(configPath), version)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	acblog.Configure(acblog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger := acblog.WithComponent("bootstrap")

	source := "env+defaults"
	if loader.Path() != "" {
		source = "file"
	}
	logger.Info().
		Str(acblog.FieldEvent, "config.loaded").
		Str("source", source).
		Str("path", loader.Path()).
		Msg("loaded configuration")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return nil, fmt.Errorf("startup checks failed: %w", err)
	}

	return Wire(ctx, cfg, config.NewHolder(cfg, loader))
}

// Wire builds the dependency graph for an already validated configuration.
// holder may be nil, which disables hot reload.
func Wire(ctx context.Context, cfg config.AppConfig, holder *config.Holder) (*Container, error) {
	logger := acblog.WithComponent("bootstrap")
	c := &Container{Config: cfg, ConfigHolder: holder, Logger: logger}

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Warn().Err(err).Str(acblog.FieldEvent, "telemetry.init_failed").Msg("telemetry initialization failed, continuing without tracing")
		provider = &telemetry.Provider{}
	}
	c.telemetry = provider

	c.Client = xapi.New(cfg.Device.BaseURL, xapi.Options{
		Username:          cfg.Device.Username,
		Password:          cfg.Device.Password,
		Timeout:           cfg.Device.Timeout,
		CommandsPerSecond: cfg.Device.CommandsPerSecond,
		Burst:             cfg.Device.Burst,
	})
	logger.Info().
		Str(acblog.FieldBaseURL, config.MaskURL(cfg.Device.BaseURL)).
		Bool("auth", cfg.Device.Username != "").
		Msg("endpoint client configured")

	deps := orchestrator.Deps{
		Bookings:   c.Client,
		Calls:      c.Client,
		Actuator:   c.Client,
		Microphone: c.Client,
		Notifier:   c.Client,
	}
	if cfg.Journal.Path != "" {
		store, err := journal.Open(cfg.Journal.Path, journal.DefaultConfig())
		if err != nil {
			c.closeEarly(ctx)
			return nil, fmt.Errorf("open journal: %w", err)
		}
		c.Journal = store
		deps.Recorder = store
		logger.Info().Str("path", cfg.Journal.Path).Msg("decision journal enabled")
	}

	orch, err := orchestrator.New(deps, cfg.Policy)
	if err != nil {
		c.closeEarly(ctx)
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}
	c.Orchestrator = orch

	c.Health = health.NewManager(cfg.Version)
	c.Health.RegisterChecker(health.NewLoopChecker(func() (bool, time.Time) {
		snap := orch.Snapshot()
		return snap.Running, snap.UpdatedAt
	}))
	c.Health.RegisterChecker(health.NewPingChecker("device", c.Client, true))
	if c.Journal != nil {
		c.Health.RegisterChecker(health.NewPingChecker("journal", c.Journal, false))
	}

	apiDeps := api.Deps{
		Feedback:       feedback.NewHandler(orch),
		Status:         orch,
		Health:         c.Health,
		TracingService: cfg.LogService,
	}
	if c.Journal != nil {
		apiDeps.Journal = c.Journal
	}
	c.Server = api.New(apiDeps)

	metricsAddr := ""
	if cfg.Metrics.Enabled {
		metricsAddr = cfg.Metrics.ListenAddr
	}
	mgr, err := daemon.NewManager(cfg.Server(), daemon.Deps{
		Logger:         acblog.WithComponent("daemon"),
		APIHandler:     c.Server.Handler(),
		MetricsHandler: promhttp.Handler(),
		MetricsAddr:    metricsAddr,
	})
	if err != nil {
		c.closeEarly(ctx)
		return nil, fmt.Errorf("create daemon manager: %w", err)
	}
	c.Manager = mgr
	c.App = daemon.NewApp(acblog.WithComponent("app"), mgr, holder, orch)

	return c, nil
}

// Start registers for feedback (when configured) and runs the daemon until
// ctx is cancelled. It may be called once.
func (c *Container) Start(ctx context.Context) error {
	err := fmt.Errorf("container already started")
	c.startOnce.Do(func() {
		err = c.start(ctx)
	})
	return err
}

func (c *Container) start(ctx context.Context) error {
	c.Manager.RegisterShutdownHook("telemetry", c.telemetry.Shutdown)
	c.Manager.RegisterShutdownHook("xapi_client", func(context.Context) error {
		c.Client.Close()
		return nil
	})
	if c.Journal != nil {
		c.Manager.RegisterShutdownHook("journal", func(context.Context) error {
			return c.Journal.Close()
		})
	}

	if fb := c.Config.Feedback; fb.Register {
		url := strings.TrimRight(fb.PublicURL, "/") + FeedbackPath
		if err := c.Client.RegisterFeedback(ctx, fb.Slot, url, xapi.FeedbackExpressions); err != nil {
			c.closeEarly(ctx)
			return fmt.Errorf("register feedback: %w", err)
		}
		c.Logger.Info().
			Str(acblog.FieldEvent, "feedback.registered").
			Int("slot", fb.Slot).
			Str("url", url).
			Msg("endpoint will push feedback to this daemon")
		c.Manager.RegisterShutdownHook("feedback_deregister", func(shutdownCtx context.Context) error {
			return c.Client.DeregisterFeedback(shutdownCtx, fb.Slot)
		})
	}

	return c.App.Run(ctx)
}

// closeEarly releases what Wire already acquired when a later step fails.
func (c *Container) closeEarly(ctx context.Context) {
	if c.Journal != nil {
		_ = c.Journal.Close()
	}
	if c.Client != nil {
		c.Client.Close()
	}
	if c.telemetry != nil {
		_ = c.telemetry.Shutdown(ctx)
	}
}
