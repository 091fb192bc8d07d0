package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pdh/booking/internal/errors"
	"github.com/pdh/booking/internal/saga/domain"
	"github.com/pdh/booking/internal/testutil"
)

func TestNewPostgreSQLSagaInstanceRepository(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewPostgreSQLSagaInstanceRepository(db)
	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

func TestPostgreSQLSagaInstanceRepository_CreateAndGet(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLSagaInstanceRepository(db)
	ctx := context.Background()

	booking := testutil.CreateTestBooking(t, db, "postgres", uuid.Must(uuid.NewV7()))
	saga := domain.NewInstance(booking.ID)
	require.NoError(t, repo.Create(ctx, saga))

	bySagaID, err := repo.GetBySagaID(ctx, saga.SagaID)
	require.NoError(t, err)
	assert.Equal(t, saga.SagaID, bySagaID.SagaID)
	assert.Equal(t, booking.ID, bySagaID.BookingID)
	assert.Equal(t, domain.StateBookingInitiated, bySagaID.CurrentState)
	assert.False(t, bySagaID.IsCompensating)
	assert.Nil(t, bySagaID.CompensationReason)
	assert.Nil(t, bySagaID.CompletedAt)
	assert.Zero(t, bySagaID.Version)

	byBookingID, err := repo.GetByBookingID(ctx, booking.ID.String())
	require.NoError(t, err)
	assert.Equal(t, saga.SagaID, byBookingID.SagaID)
}

func TestPostgreSQLSagaInstanceRepository_Get_NotFound(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLSagaInstanceRepository(db)
	ctx := context.Background()

	_, err := repo.GetBySagaID(ctx, "missing-saga")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = repo.GetByBookingID(ctx, uuid.Must(uuid.NewV7()).String())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestPostgreSQLSagaInstanceRepository_Update(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLSagaInstanceRepository(db)
	ctx := context.Background()

	booking := testutil.CreateTestBooking(t, db, "postgres", uuid.Must(uuid.NewV7()))
	saga := testutil.CreateTestSaga(t, db, "postgres", booking)

	require.NoError(t, saga.Transition(domain.StateFlightReservationPending))
	require.NoError(t, repo.Update(ctx, saga))
	assert.Equal(t, 1, saga.Version)

	stored, err := repo.GetBySagaID(ctx, saga.SagaID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFlightReservationPending, stored.CurrentState)
	assert.Equal(t, 1, stored.Version)
}

func TestPostgreSQLSagaInstanceRepository_Update_VersionConflict(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLSagaInstanceRepository(db)
	ctx := context.Background()

	booking := testutil.CreateTestBooking(t, db, "postgres", uuid.Must(uuid.NewV7()))
	saga := testutil.CreateTestSaga(t, db, "postgres", booking)

	// Two loads of the same saga race; the stale writer loses.
	stale, err := repo.GetBySagaID(ctx, saga.SagaID)
	require.NoError(t, err)

	require.NoError(t, saga.Transition(domain.StateFlightReservationPending))
	require.NoError(t, repo.Update(ctx, saga))

	require.NoError(t, stale.Transition(domain.StateFlightReservationPending))
	err = repo.Update(ctx, stale)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestPostgreSQLSagaInstanceRepository_ListStale(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLSagaInstanceRepository(db)
	ctx := context.Background()

	staleBooking := testutil.CreateTestBooking(t, db, "postgres", uuid.Must(uuid.NewV7()))
	stale := domain.NewInstance(staleBooking.ID)
	stale.LastUpdatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, stale))

	freshBooking := testutil.CreateTestBooking(t, db, "postgres", uuid.Must(uuid.NewV7()))
	fresh := domain.NewInstance(freshBooking.ID)
	require.NoError(t, repo.Create(ctx, fresh))

	doneBooking := testutil.CreateTestBooking(t, db, "postgres", uuid.Must(uuid.NewV7()))
	done := domain.NewInstance(doneBooking.ID)
	done.LastUpdatedAt = time.Now().UTC().Add(-time.Hour)
	completedAt := time.Now().UTC()
	done.CompletedAt = &completedAt
	require.NoError(t, repo.Create(ctx, done))

	instances, err := repo.ListStale(ctx, time.Now().UTC().Add(-5*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, stale.SagaID, instances[0].SagaID)
}

func TestPostgreSQLStateLogRepository(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLStateLogRepository(db)
	ctx := context.Background()

	booking := testutil.CreateTestBooking(t, db, "postgres", uuid.Must(uuid.NewV7()))
	saga := testutil.CreateTestSaga(t, db, "postgres", booking)

	initial := domain.NewStateLog(saga, nil, domain.StateBookingInitiated, "booking created", "api", 0)
	require.NoError(t, repo.Create(ctx, initial))
	assert.NotZero(t, initial.ID)

	from := domain.StateBookingInitiated
	next := domain.NewStateLog(saga, &from, domain.StateFlightReservationPending, "saga started", "api", 12)
	require.NoError(t, repo.Create(ctx, next))
	assert.Greater(t, next.ID, initial.ID)

	logs, err := repo.ListBySagaID(ctx, saga.SagaID)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.Nil(t, logs[0].FromState)
	assert.Equal(t, domain.StateBookingInitiated, logs[0].ToState)
	assert.Equal(t, "booking created", logs[0].Reason)
	assert.Equal(t, "api", logs[0].TriggeredBy)

	require.NotNil(t, logs[1].FromState)
	assert.Equal(t, domain.StateBookingInitiated, *logs[1].FromState)
	assert.Equal(t, domain.StateFlightReservationPending, logs[1].ToState)
	assert.Equal(t, int64(12), logs[1].DurationMs)

	empty, err := repo.ListBySagaID(ctx, "missing-saga")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
