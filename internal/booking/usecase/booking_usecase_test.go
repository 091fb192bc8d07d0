package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdh/booking/internal/booking/domain"
	apperrors "github.com/pdh/booking/internal/errors"
	outboxDomain "github.com/pdh/booking/internal/outbox/domain"
	sagaDomain "github.com/pdh/booking/internal/saga/domain"
)

type stubTxManager struct{}

func (stubTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memBookingRepo struct {
	bookings  map[string]*domain.Booking
	createErr error
}

func newMemBookingRepo() *memBookingRepo {
	return &memBookingRepo{bookings: map[string]*domain.Booking{}}
}

func (r *memBookingRepo) Create(_ context.Context, booking *domain.Booking) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.bookings[booking.ID.String()] = booking
	return nil
}

func (r *memBookingRepo) GetByID(_ context.Context, id string) (*domain.Booking, error) {
	booking, ok := r.bookings[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return booking, nil
}

func (r *memBookingRepo) GetBySagaID(_ context.Context, sagaID string) (*domain.Booking, error) {
	for _, booking := range r.bookings {
		if booking.SagaID == sagaID {
			return booking, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memBookingRepo) Update(_ context.Context, booking *domain.Booking) error {
	r.bookings[booking.ID.String()] = booking
	return nil
}

func (r *memBookingRepo) ListByUserID(_ context.Context, userID string, limit, offset int) ([]*domain.Booking, error) {
	var out []*domain.Booking
	for _, booking := range r.bookings {
		if booking.UserID.String() == userID {
			out = append(out, booking)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubOrchestrator struct {
	started  []*domain.Booking
	events   []*sagaDomain.Event
	startErr error
}

func (o *stubOrchestrator) StartSaga(_ context.Context, booking *domain.Booking) (*sagaDomain.Instance, error) {
	if o.startErr != nil {
		return nil, o.startErr
	}
	saga := sagaDomain.NewInstance(booking.ID)
	booking.SagaID = saga.SagaID
	o.started = append(o.started, booking)
	return saga, nil
}

func (o *stubOrchestrator) HandleEvent(_ context.Context, event *sagaDomain.Event) error {
	o.events = append(o.events, event)
	return nil
}

type memOutbox struct {
	events []*outboxDomain.Event
}

func (o *memOutbox) Append(_ context.Context, event *outboxDomain.Event) error {
	o.events = append(o.events, event)
	return nil
}

type useCaseFixture struct {
	useCase      BookingUseCase
	repo         *memBookingRepo
	orchestrator *stubOrchestrator
	outbox       *memOutbox
}

func newUseCaseFixture(t *testing.T) *useCaseFixture {
	t.Helper()
	f := &useCaseFixture{
		repo:         newMemBookingRepo(),
		orchestrator: &stubOrchestrator{},
		outbox:       &memOutbox{},
	}
	f.useCase = NewBookingUseCase(
		Config{BookingEventsTopic: "booking-events"},
		stubTxManager{},
		f.repo,
		f.orchestrator,
		f.outbox,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f
}

func validInput() CreateBookingInput {
	return CreateBookingInput{
		UserID:         uuid.Must(uuid.NewV7()).String(),
		BookingType:    "COMBO",
		TotalAmount:    5000000,
		Currency:       "VND",
		ProductDetails: `{"flight":"VN123","hotel":"Grand"}`,
	}
}

func TestCreateBooking(t *testing.T) {
	t.Run("creates booking, starts saga and emits the created event", func(t *testing.T) {
		f := newUseCaseFixture(t)

		booking, err := f.useCase.CreateBooking(context.Background(), validInput())
		require.NoError(t, err)

		assert.Equal(t, domain.StatusPending, booking.Status)
		assert.NotEmpty(t, booking.BookingReference)
		assert.NotEmpty(t, booking.SagaID)

		stored, err := f.repo.GetByID(context.Background(), booking.ID.String())
		require.NoError(t, err)
		assert.Equal(t, booking.SagaID, stored.SagaID)

		require.Len(t, f.orchestrator.started, 1)
		require.Len(t, f.outbox.events, 1)
		event := f.outbox.events[0]
		assert.Equal(t, domain.EventTypeBookingCreated, event.EventType)
		assert.Equal(t, "booking-events", event.Topic)
		assert.Equal(t, booking.ID.String(), event.PartitionKey)
	})

	t.Run("input validation", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*CreateBookingInput)
		}{
			{"invalid user id", func(in *CreateBookingInput) { in.UserID = "not-a-uuid" }},
			{"invalid booking type", func(in *CreateBookingInput) { in.BookingType = "CRUISE" }},
			{"zero amount", func(in *CreateBookingInput) { in.TotalAmount = 0 }},
			{"negative amount", func(in *CreateBookingInput) { in.TotalAmount = -100 }},
			{"missing currency", func(in *CreateBookingInput) { in.Currency = "" }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newUseCaseFixture(t)
				input := validInput()
				tt.mutate(&input)

				_, err := f.useCase.CreateBooking(context.Background(), input)
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
				assert.Empty(t, f.orchestrator.started)
				assert.Empty(t, f.outbox.events)
			})
		}
	})

	t.Run("saga start failure surfaces", func(t *testing.T) {
		f := newUseCaseFixture(t)
		f.orchestrator.startErr = apperrors.ErrConflict

		_, err := f.useCase.CreateBooking(context.Background(), validInput())
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		assert.Empty(t, f.outbox.events)
	})
}

func TestCancelBooking(t *testing.T) {
	newPendingBooking := func(f *useCaseFixture) *domain.Booking {
		booking := domain.NewBooking(uuid.Must(uuid.NewV7()), sagaDomain.BookingTypeCombo, 5000000, "VND", "{}")
		booking.SagaID = "saga-1"
		f.repo.bookings[booking.ID.String()] = booking
		return booking
	}

	t.Run("routes the request through the saga event path", func(t *testing.T) {
		f := newUseCaseFixture(t)
		booking := newPendingBooking(f)

		require.NoError(t, f.useCase.CancelBooking(context.Background(), booking.ID.String(), "change of plans"))

		require.Len(t, f.orchestrator.events, 1)
		event := f.orchestrator.events[0]
		assert.Equal(t, sagaDomain.EventCancelBookingRequested, event.Kind)
		assert.Equal(t, booking.ID, event.BookingID)
		assert.Equal(t, "saga-1", event.SagaID)
		assert.Equal(t, "change of plans", event.Reason)
	})

	t.Run("defaults the reason", func(t *testing.T) {
		f := newUseCaseFixture(t)
		booking := newPendingBooking(f)

		require.NoError(t, f.useCase.CancelBooking(context.Background(), booking.ID.String(), ""))
		require.Len(t, f.orchestrator.events, 1)
		assert.Equal(t, "cancelled by user", f.orchestrator.events[0].Reason)
	})

	t.Run("rejects finished bookings", func(t *testing.T) {
		f := newUseCaseFixture(t)
		booking := newPendingBooking(f)
		booking.Cancel(domain.StatusCancelled, "already done")

		err := f.useCase.CancelBooking(context.Background(), booking.ID.String(), "again")
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		assert.Empty(t, f.orchestrator.events)
	})

	t.Run("rejects confirmed bookings", func(t *testing.T) {
		f := newUseCaseFixture(t)
		booking := newPendingBooking(f)
		booking.Confirm()

		err := f.useCase.CancelBooking(context.Background(), booking.ID.String(), "too late")
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("unknown booking", func(t *testing.T) {
		f := newUseCaseFixture(t)
		err := f.useCase.CancelBooking(context.Background(), uuid.Must(uuid.NewV7()).String(), "missing")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestGetBookingStatus(t *testing.T) {
	f := newUseCaseFixture(t)
	booking, err := f.useCase.CreateBooking(context.Background(), validInput())
	require.NoError(t, err)

	view, err := f.useCase.GetBookingStatus(context.Background(), booking.ID.String())
	require.NoError(t, err)
	assert.Equal(t, booking.ID, view.BookingID)
	assert.Equal(t, domain.StatusPending, view.Status)

	_, err = f.useCase.GetBookingStatus(context.Background(), uuid.Must(uuid.NewV7()).String())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListBookings(t *testing.T) {
	f := newUseCaseFixture(t)
	input := validInput()
	_, err := f.useCase.CreateBooking(context.Background(), input)
	require.NoError(t, err)

	bookings, err := f.useCase.ListBookings(context.Background(), input.UserID, 50, 0)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)

	_, err = f.useCase.ListBookings(context.Background(), "not-a-uuid", 50, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
