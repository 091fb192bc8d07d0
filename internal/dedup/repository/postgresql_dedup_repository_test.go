package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdh/booking/internal/testutil"
)

func TestPostgreSQLDedupRepository_MarkAndCheck(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLDedupRepository(db)
	ctx := context.Background()
	eventID := uuid.Must(uuid.NewV7()).String()

	processed, err := repo.IsProcessed(ctx, "booking-service", eventID)
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, repo.MarkProcessed(ctx, "booking-service", eventID))

	processed, err = repo.IsProcessed(ctx, "booking-service", eventID)
	require.NoError(t, err)
	assert.True(t, processed)

	// Marking again is a no-op, not an error.
	require.NoError(t, repo.MarkProcessed(ctx, "booking-service", eventID))
}

func TestPostgreSQLDedupRepository_ScopesAreIndependent(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLDedupRepository(db)
	ctx := context.Background()
	eventID := uuid.Must(uuid.NewV7()).String()

	require.NoError(t, repo.MarkProcessed(ctx, "booking-service", eventID))

	processed, err := repo.IsProcessed(ctx, "notifier", eventID)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestPostgreSQLDedupRepository_Attempts(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLDedupRepository(db)
	ctx := context.Background()
	eventID := uuid.Must(uuid.NewV7()).String()

	count, err := repo.AttemptCount(ctx, eventID)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = repo.IncrementAttempts(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = repo.IncrementAttempts(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.AttemptCount(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
