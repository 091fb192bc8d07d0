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

// RunChangeLogConsumer starts the booking change-log applier. It consumes
// change-data-capture records and mirrors them into the local booking store.
// Blocks until receiving SIGINT/SIGTERM.
func RunChangeLogConsumer(ctx context.Context, version string) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting change-log consumer",
		slog.String("version", version),
		slog.String("topic", cfg.BookingChangeLogTopic),
	)

	defer closeContainer(container, logger)

	changeLogConsumer, err := container.ChangeLogConsumer()
	if err != nil {
		return fmt.Errorf("failed to initialize change-log consumer: %w", err)
	}

	consumer, err := container.ChangeLogKafkaConsumer()
	if err != nil {
		return fmt.Errorf("failed to initialize kafka consumer: %w", err)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Error("failed to close change-log consumer", slog.Any("error", err))
		}
	}()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := consumer.Consume(ctx, []string{cfg.BookingChangeLogTopic}, changeLogConsumer.Handle); err != nil {
		return fmt.Errorf("change-log consumer error: %w", err)
	}

	logger.Info("change-log consumer stopped")
	return nil
}
