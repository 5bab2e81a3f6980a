// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/vtjoeh/auto-connect-booking/internal/app/bootstrap"
	"github.com/vtjoeh/auto-connect-booking/internal/config"
	acblog "github.com/vtjoeh/auto-connect-booking/internal/log"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	acblog.Configure(acblog.Config{
		Level:   "info",
		Service: "autoconnectd",
		Version: version,
	})
	logger := acblog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := strings.TrimSpace(*configPath)
	if path == "" {
		path = resolveDefaultConfigPath()
	}

	container, err := bootstrap.WireServices(ctx, version, path)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.failed").
			Str("config_path", path).
			Msg("failed to initialise daemon")
	}

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger.Info().
		Str("event", "config.loaded").
		Str("source", source).
		Str("path", path).
		Str("device", config.MaskURL(container.Config.Device.BaseURL)).
		Str("listen", container.Config.Feedback.ListenAddr).
		Msg("starting autoconnectd")

	if err := container.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon stopped with error")
	}
	logger.Info().Str("event", "daemon.stopped").Msg("shutdown complete")
}

// resolveDefaultConfigPath picks ${ACB_DATA}/config.yaml when it exists.
func resolveDefaultConfigPath() string {
	dataDir := strings.TrimSpace(os.Getenv(config.EnvPrefix + "DATA"))
	if dataDir == "" {
		return ""
	}
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}
