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

// RunSelfEventConsumer starts the listen-to-yourself verification worker.
// It consumes the service's own booking events back off the broker, verifies
// the state they describe against the database and marks the originating
// outbox rows. Blocks until receiving SIGINT/SIGTERM.
func RunSelfEventConsumer(ctx context.Context, version string) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting self-event consumer",
		slog.String("version", version),
		slog.String("topic", cfg.BookingEventsTopic),
	)

	defer closeContainer(container, logger)

	selfEventConsumer, err := container.SelfEventConsumer()
	if err != nil {
		return fmt.Errorf("failed to initialize self-event consumer: %w", err)
	}

	consumer, err := container.SelfEventKafkaConsumer()
	if err != nil {
		return fmt.Errorf("failed to initialize kafka consumer: %w", err)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Error("failed to close self-event consumer", slog.Any("error", err))
		}
	}()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := consumer.Consume(ctx, []string{cfg.BookingEventsTopic}, selfEventConsumer.HandleMessage); err != nil {
		return fmt.Errorf("self-event consumer error: %w", err)
	}

	logger.Info("self-event consumer stopped")
	return nil
}
