// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/pdh/booking/cmd/app/commands"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "app",
		Usage:   "Booking coordination service",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP API server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "relay",
				Usage: "Start the outbox relay worker",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunRelay(ctx, version)
				},
			},
			{
				Name:  "saga-consumer",
				Usage: "Start the saga orchestrator event listener",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunSagaConsumer(ctx, version)
				},
			},
			{
				Name:  "self-event-consumer",
				Usage: "Start the listen-to-yourself verification worker",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunSelfEventConsumer(ctx, version)
				},
			},
			{
				Name:  "changelog-consumer",
				Usage: "Start the booking change-log applier",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunChangeLogConsumer(ctx, version)
				},
			},
			{
				Name:  "notifier",
				Usage: "Start the webhook fan-out worker",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunNotifier(ctx, version)
				},
			},
			{
				Name:  "sweeper",
				Usage: "Start the saga recovery sweep worker",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunSweeper(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunMigrations()
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
