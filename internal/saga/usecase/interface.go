// Package usecase implements the saga orchestration business logic.
package usecase

import (
	"context"
	"time"

	bookingDomain "github.com/pdh/booking/internal/booking/domain"
	outboxDomain "github.com/pdh/booking/internal/outbox/domain"
	"github.com/pdh/booking/internal/saga/domain"
)

// InstanceRepository defines saga instance repository operations.
type InstanceRepository interface {
	Create(ctx context.Context, instance *domain.Instance) error
	GetBySagaID(ctx context.Context, sagaID string) (*domain.Instance, error)
	GetByBookingID(ctx context.Context, bookingID string) (*domain.Instance, error)
	Update(ctx context.Context, instance *domain.Instance) error
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Instance, error)
}

// StateLogRepository defines saga state log repository operations.
type StateLogRepository interface {
	Create(ctx context.Context, log *domain.StateLog) error
	ListBySagaID(ctx context.Context, sagaID string) ([]*domain.StateLog, error)
}

// BookingRepository defines the booking operations the orchestrator needs.
type BookingRepository interface {
	GetByID(ctx context.Context, id string) (*bookingDomain.Booking, error)
	Update(ctx context.Context, booking *bookingDomain.Booking) error
}

// OutboxWriter appends events to the transactional outbox.
type OutboxWriter interface {
	Append(ctx context.Context, event *outboxDomain.Event) error
}

// Metrics records saga orchestration outcomes.
type Metrics interface {
	RecordSagaStarted(ctx context.Context)
	RecordSagaCompleted(ctx context.Context, finalState string, elapsed time.Duration)
	RecordCompensationStarted(ctx context.Context, reason string)
	RecordEventDropped(ctx context.Context, cause string)
}
