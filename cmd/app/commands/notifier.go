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

// RunNotifier starts the webhook fan-out worker.
// It consumes booking events and broadcasts each one to the configured
// webhook endpoints with a bounded worker pool. Blocks until receiving
// SIGINT/SIGTERM.
func RunNotifier(ctx context.Context, version string) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting notifier",
		slog.String("version", version),
		slog.Int("endpoints", len(cfg.WebhookEndpoints)),
	)

	defer closeContainer(container, logger)

	notifier, err := container.Notifier()
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}

	consumer, err := container.NotificationConsumer()
	if err != nil {
		return fmt.Errorf("failed to initialize kafka consumer: %w", err)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Error("failed to close notification consumer", slog.Any("error", err))
		}
	}()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := consumer.Consume(ctx, []string{cfg.BookingEventsTopic}, notifier.HandleMessage); err != nil {
		return fmt.Errorf("notifier error: %w", err)
	}

	logger.Info("notifier stopped")
	return nil
}
