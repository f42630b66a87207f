package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vogiaan1904/ticketbottle-admission/internal/errors"
	"github.com/vogiaan1904/ticketbottle-admission/internal/models"
)

func seedSeat(t *testing.T, repo SeatRepository, eventID string) *models.Seat {
	t.Helper()

	now := time.Now()
	seat := &models.Seat{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Code:      "A-001",
		Grade:     "vip",
		Price:     decimal.NewFromInt(250),
		Status:    models.SeatStatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.BulkCreate(context.Background(), []*models.Seat{seat}))

	return seat
}

func TestSeatRepository_ReserveLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLSeatRepository(db, testLogger())
	ctx := context.Background()

	seat := seedSeat(t, repo, "evt-1")

	ok, err := repo.Reserve(ctx, "evt-1", seat.ID, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := repo.Find(ctx, "evt-1", seat.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SeatStatusReserved, found.Status)
	assert.Equal(t, "user-1", found.ReservedBy)
	assert.True(t, found.Price.Equal(decimal.NewFromInt(250)))

	// Reserving a RESERVED seat matches no row.
	ok, err = repo.Reserve(ctx, "evt-1", seat.ID, "user-2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkSold(ctx, "evt-1", seat.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Releasing a SOLD seat matches no row.
	ok, err = repo.Release(ctx, "evt-1", seat.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSeatRepository_MarkSoldRequiresReserved(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLSeatRepository(db, testLogger())
	ctx := context.Background()

	seat := seedSeat(t, repo, "evt-1")

	ok, err := repo.MarkSold(ctx, "evt-1", seat.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.Find(ctx, "evt-1", seat.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SeatStatusAvailable, found.Status)
}

func TestSeatRepository_ReleaseClearsHolder(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLSeatRepository(db, testLogger())
	ctx := context.Background()

	seat := seedSeat(t, repo, "evt-1")

	ok, err := repo.Reserve(ctx, "evt-1", seat.ID, "user-1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Release(ctx, "evt-1", seat.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := repo.Find(ctx, "evt-1", seat.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SeatStatusAvailable, found.Status)
	assert.Empty(t, found.ReservedBy)
}

func TestSeatRepository_ConcurrentReserveSingleWinner(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLSeatRepository(db, testLogger())
	ctx := context.Background()

	seat := seedSeat(t, repo, "evt-1")

	const contenders = 32

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := repo.Reserve(ctx, "evt-1", seat.ID, fmt.Sprintf("user-%d", i))
			require.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one contender may win the seat")
}

func TestSeatRepository_FindMissing(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLSeatRepository(db, testLogger())

	_, err := repo.Find(context.Background(), "evt-1", "no-such-seat")
	assert.ErrorIs(t, err, apperrors.ErrSeatNotFound)
}
