package usecase

import (
	"context"
	"log/slog"
	"time"
)

// SweepConfig holds recovery sweep configuration.
type SweepConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	MaxElapsed time.Duration
	BatchSize  int
}

// Sweeper finds sagas stuck waiting on a command or reply that got lost and
// either re-prompts them or, past the maximum elapsed time, fails them.
type Sweeper struct {
	config       SweepConfig
	sagaRepo     InstanceRepository
	orchestrator *Orchestrator
	logger       *slog.Logger
}

// NewSweeper creates a new Sweeper.
func NewSweeper(config SweepConfig, sagaRepo InstanceRepository, orchestrator *Orchestrator, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		config:       config,
		sagaRepo:     sagaRepo,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("starting saga recovery sweep",
		slog.Duration("interval", s.config.Interval),
		slog.Duration("stale_after", s.config.StaleAfter),
		slog.Duration("max_elapsed", s.config.MaxElapsed),
	)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping saga recovery sweep")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", slog.Any("error", err))
			}
		}
	}
}

// Sweep processes one batch of stale sagas. A failure on one saga does not
// stop the rest of the batch.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.config.StaleAfter)
	stale, err := s.sagaRepo.ListStale(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		return err
	}

	if len(stale) == 0 {
		return nil
	}

	s.logger.Info("sweeping stale sagas", slog.Int("count", len(stale)))

	for _, saga := range stale {
		elapsed := time.Since(saga.StartedAt)
		if elapsed > s.config.MaxElapsed {
			if err := s.orchestrator.Fail(ctx, saga, "saga exceeded maximum elapsed time"); err != nil {
				s.logger.Error("failed to fail stale saga",
					slog.String("saga_id", saga.SagaID),
					slog.Any("error", err),
				)
			}
			continue
		}

		if err := s.orchestrator.Reprompt(ctx, saga); err != nil {
			s.logger.Error("failed to reprompt stale saga",
				slog.String("saga_id", saga.SagaID),
				slog.Any("error", err),
			)
		}
	}

	return nil
}
