package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pdh/booking/internal/app"
	"github.com/pdh/booking/internal/config"
)

// RunSweeper starts the saga recovery sweep worker.
// The sweep periodically re-prompts sagas that have stalled and fails those
// that exceeded their maximum lifetime. Blocks until receiving SIGINT/SIGTERM.
func RunSweeper(ctx context.Context, version string) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting saga sweeper",
		slog.String("version", version),
		slog.Duration("interval", cfg.SagaSweepInterval),
	)

	defer closeContainer(container, logger)

	sweeper, err := container.Sweeper()
	if err != nil {
		return fmt.Errorf("failed to initialize sweeper: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("sweeper error: %w", err)
	}

	logger.Info("saga sweeper stopped")
	return nil
}
