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

// RunSagaConsumer starts the saga orchestrator listener.
// It consumes participant reply events from Kafka and feeds them to the
// orchestrator, which advances or compensates the matching saga. Blocks
// until receiving SIGINT/SIGTERM.
func RunSagaConsumer(ctx context.Context, version string) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting saga consumer",
		slog.String("version", version),
		slog.Any("topics", cfg.SagaReplyTopics),
	)

	defer closeContainer(container, logger)

	orchestrator, err := container.Orchestrator()
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	consumer, err := container.SagaConsumer()
	if err != nil {
		return fmt.Errorf("failed to initialize saga consumer: %w", err)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Error("failed to close saga consumer", slog.Any("error", err))
		}
	}()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := consumer.Consume(ctx, cfg.SagaReplyTopics, orchestrator.HandleMessage); err != nil {
		return fmt.Errorf("saga consumer error: %w", err)
	}

	logger.Info("saga consumer stopped")
	return nil
}
