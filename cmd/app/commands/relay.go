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

// RunRelay starts the outbox relay worker.
// The relay polls the outbox table for pending events and publishes them to
// Kafka. Blocks until receiving SIGINT/SIGTERM.
func RunRelay(ctx context.Context, version string) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting outbox relay", slog.String("version", version))

	defer closeContainer(container, logger)

	relay, err := container.OutboxRelay()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox relay: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := relay.Start(ctx); err != nil {
		return fmt.Errorf("outbox relay error: %w", err)
	}

	logger.Info("outbox relay stopped")
	return nil
}
