package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdh/booking/internal/booking/domain"
	apperrors "github.com/pdh/booking/internal/errors"
	sagaDomain "github.com/pdh/booking/internal/saga/domain"
	"github.com/pdh/booking/internal/testutil"
)

func TestNewPostgreSQLBookingRepository(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewPostgreSQLBookingRepository(db)
	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

func TestPostgreSQLBookingRepository_CreateAndGetByID(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLBookingRepository(db)
	ctx := context.Background()

	booking := domain.NewBooking(uuid.Must(uuid.NewV7()), sagaDomain.BookingTypeCombo, 5000000, "VND", `{"flight":"VN123"}`)
	require.NoError(t, repo.Create(ctx, booking))

	stored, err := repo.GetByID(ctx, booking.ID.String())
	require.NoError(t, err)
	assert.Equal(t, booking.ID, stored.ID)
	assert.Equal(t, booking.BookingReference, stored.BookingReference)
	assert.Equal(t, booking.UserID, stored.UserID)
	assert.Equal(t, sagaDomain.BookingTypeCombo, stored.BookingType)
	assert.Equal(t, int64(5000000), stored.TotalAmount)
	assert.Equal(t, "VND", stored.Currency)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Equal(t, sagaDomain.StateBookingInitiated, stored.SagaState)
	assert.Equal(t, `{"flight":"VN123"}`, stored.ProductDetails)
	assert.Nil(t, stored.ConfirmationNumber)
	assert.Nil(t, stored.CancellationReason)
	assert.Nil(t, stored.CancelledAt)
}

func TestPostgreSQLBookingRepository_GetByID_NotFound(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLBookingRepository(db)

	booking, err := repo.GetByID(context.Background(), uuid.Must(uuid.NewV7()).String())
	assert.Nil(t, booking)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestPostgreSQLBookingRepository_GetBySagaID(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLBookingRepository(db)
	ctx := context.Background()

	booking := domain.NewBooking(uuid.Must(uuid.NewV7()), sagaDomain.BookingTypeFlight, 1200000, "VND", "{}")
	booking.SagaID = uuid.Must(uuid.NewV7()).String()
	require.NoError(t, repo.Create(ctx, booking))

	stored, err := repo.GetBySagaID(ctx, booking.SagaID)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, stored.ID)

	_, err = repo.GetBySagaID(ctx, "missing-saga")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestPostgreSQLBookingRepository_Update(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLBookingRepository(db)
	ctx := context.Background()

	booking := testutil.CreateTestBooking(t, db, "postgres", uuid.Must(uuid.NewV7()))
	booking.SagaID = uuid.Must(uuid.NewV7()).String()
	booking.Confirm()
	require.NoError(t, repo.Update(ctx, booking))

	stored, err := repo.GetByID(ctx, booking.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
	assert.Equal(t, booking.SagaID, stored.SagaID)
	assert.Equal(t, sagaDomain.StateBookingCompleted, stored.SagaState)
	require.NotNil(t, stored.ConfirmationNumber)
	assert.Equal(t, *booking.ConfirmationNumber, *stored.ConfirmationNumber)

	booking.Cancel(domain.StatusCancelled, "payment step failed")
	require.NoError(t, repo.Update(ctx, booking))

	stored, err = repo.GetByID(ctx, booking.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, stored.Status)
	require.NotNil(t, stored.CancellationReason)
	assert.Equal(t, "payment step failed", *stored.CancellationReason)
	require.NotNil(t, stored.CancelledAt)
}

func TestPostgreSQLBookingRepository_ListByUserID(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLBookingRepository(db)
	ctx := context.Background()

	userID := uuid.Must(uuid.NewV7())
	otherUser := uuid.Must(uuid.NewV7())

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		booking := domain.NewBooking(userID, sagaDomain.BookingTypeHotel, 900000, "VND", "{}")
		booking.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, booking))
	}
	other := domain.NewBooking(otherUser, sagaDomain.BookingTypeHotel, 900000, "VND", "{}")
	require.NoError(t, repo.Create(ctx, other))

	bookings, err := repo.ListByUserID(ctx, userID.String(), 50, 0)
	require.NoError(t, err)
	require.Len(t, bookings, 3)
	// Newest first.
	assert.True(t, bookings[0].CreatedAt.After(bookings[1].CreatedAt))
	assert.True(t, bookings[1].CreatedAt.After(bookings[2].CreatedAt))

	page, err := repo.ListByUserID(ctx, userID.String(), 2, 1)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	empty, err := repo.ListByUserID(ctx, uuid.Must(uuid.NewV7()).String(), 50, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
