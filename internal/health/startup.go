// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/vtjoeh/auto-connect-booking/internal/config"
	"github.com/vtjoeh/auto-connect-booking/internal/log"
)

// PerformStartupChecks validates the environment before the daemon starts
// taking events. It returns the first blocking problem.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if cfg.Device.BaseURL == "" {
		return fmt.Errorf("device.base_url is not configured")
	}
	logger.Info().Str(log.FieldBaseURL, config.MaskURL(cfg.Device.BaseURL)).Msg("device URL configured")

	if cfg.Journal.Path != "" {
		if err := checkDataDir(logger, filepath.Dir(cfg.Journal.Path)); err != nil {
			return fmt.Errorf("journal directory check failed: %w", err)
		}
	}

	if !cfg.Feedback.Register {
		logger.Warn().Msg("feedback registration disabled; the endpoint must already post to this daemon")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("journal directory is writable")
	return nil
}
