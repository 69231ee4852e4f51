// Package app wires the engine together: infrastructure clients, the trader
// event loop, the market and oracle feeds, observers, and the status API. It
// owns startup order and shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arbalest-labs/ticktrader/internal/config"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger}
}

// Run wires all dependencies, starts the engine goroutines, and blocks until
// the context is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting engine",
		slog.String("mode", a.cfg.Mode),
		slog.String("series", a.cfg.Polymarket.SeriesSlug),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	err = a.runEngine(ctx, deps)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close tears down all resources in reverse registration order. Safe to call
// more than once.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
