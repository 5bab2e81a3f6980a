// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vtjoeh/auto-connect-booking/internal/config"
	"github.com/vtjoeh/auto-connect-booking/internal/log"
	"github.com/vtjoeh/auto-connect-booking/internal/orchestrator"
)

// Loop is the event loop the App drives.
type Loop interface {
	Run(ctx context.Context) error
	Submit(ctx context.Context, ev orchestrator.Event) error
	ApplyPolicy(ctx context.Context, p config.Policy) error
}

// App owns the long-lived runtime lifecycle (event loop, config watcher,
// reload wiring) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.Holder
	loop         Loop
	reloadSignal os.Signal
}

// NewApp creates a new App.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.Holder, loop Loop) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		loop:         loop,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned subsystems and blocks until ctx is cancelled or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	if a.loop == nil {
		return ErrMissingLoop
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.loop.Run(ctx)
	})

	// Load the lookahead cache before the first booking event arrives.
	g.Go(func() error {
		if err := a.loop.Submit(ctx, orchestrator.BookingsUpdated{}); err != nil && ctx.Err() == nil {
			a.logger.Warn().Err(err).Str(log.FieldEvent, "lookahead.prime_failed").Msg("could not prime next meeting cache")
		}
		return nil
	})

	// Config watcher is best-effort: startup should not fail if watcher cannot be started.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}

		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					if err := a.loop.ApplyPolicy(ctx, cfg.Policy); err != nil {
						a.logger.Warn().
							Err(err).
							Str(log.FieldEvent, "config.policy_apply_failed").
							Msg("reloaded policy was not applied")
					}
				}
			}
		})
	}

	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(log.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str(log.FieldEvent, "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
