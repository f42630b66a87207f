package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vogiaan1904/ticketbottle-admission/internal/errors"
	"github.com/vogiaan1904/ticketbottle-admission/internal/models"
)

func newShuffleService(d *deps) ShuffleService {
	return NewShuffleService(d.eventRepo, d.entryRepo, d.registrationRepo, d.counter, d.locker, d.l)
}

func registerUsers(t *testing.T, d *deps, eventID string, n int) []string {
	t.Helper()

	userIDs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		userID := fmt.Sprintf("user-%03d", i+1)
		require.NoError(t, d.registrationRepo.Register(context.Background(), eventID, userID))
		userIDs = append(userIDs, userID)
	}
	return userIDs
}

func TestShuffle_RanksFormPermutation(t *testing.T) {
	d := newDeps(t)
	svc := newShuffleService(d)
	ctx := context.Background()

	event := d.createEvent(t, models.EventStatusPreClosed, time.Now().Add(time.Hour))
	userIDs := registerUsers(t, d, event.ID, 50)

	require.NoError(t, svc.TriggerShuffle(ctx, event.ID))

	entries, err := d.entryRepo.FindByEvent(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, entries, len(userIDs))

	ranks := make([]int, 0, len(entries))
	seenUsers := make(map[string]bool)
	for _, e := range entries {
		assert.Equal(t, models.QueueEntryStatusWaiting, e.Status)
		ranks = append(ranks, e.Rank)
		seenUsers[e.UserID] = true
	}

	sort.Ints(ranks)
	for i, r := range ranks {
		assert.Equal(t, i+1, r, "ranks must be a permutation of 1..N")
	}
	assert.Len(t, seenUsers, len(userIDs), "every registered user gets exactly one entry")

	counts, err := d.counter.Counts(ctx, event.ID)
	require.NoError(t, err)
	assert.EqualValues(t, len(userIDs), counts.Waiting)
}

func TestShuffle_SecondInvocationIsNoop(t *testing.T) {
	d := newDeps(t)
	svc := newShuffleService(d)
	ctx := context.Background()

	event := d.createEvent(t, models.EventStatusPreClosed, time.Now().Add(time.Hour))
	registerUsers(t, d, event.ID, 10)

	require.NoError(t, svc.TriggerShuffle(ctx, event.ID))

	before, err := d.entryRepo.FindByEvent(ctx, event.ID)
	require.NoError(t, err)

	require.NoError(t, svc.TriggerShuffle(ctx, event.ID))

	after, err := d.entryRepo.FindByEvent(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].UserID, after[i].UserID, "existing queue must not be reshuffled")
		assert.Equal(t, before[i].Rank, after[i].Rank)
	}
}

func TestShuffle_RunsUnderEventScopedLock(t *testing.T) {
	d := newDeps(t)
	svc := newShuffleService(d)

	event := d.createEvent(t, models.EventStatusPreClosed, time.Now().Add(time.Hour))
	registerUsers(t, d, event.ID, 3)

	require.NoError(t, svc.TriggerShuffle(context.Background(), event.ID))

	assert.Contains(t, d.locker.lockNames(), "shuffle:"+event.ID)
}

func TestShuffle_EmptyRosterLeavesQueueEmpty(t *testing.T) {
	d := newDeps(t)
	svc := newShuffleService(d)
	ctx := context.Background()

	event := d.createEvent(t, models.EventStatusPreClosed, time.Now().Add(time.Hour))

	require.NoError(t, svc.TriggerShuffle(ctx, event.ID))

	count, err := d.entryRepo.CountByEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestShuffle_CounterSeedFailureIsSwallowed(t *testing.T) {
	d := newDeps(t)
	d.counter.seedErr = errors.New("redis down")
	svc := newShuffleService(d)
	ctx := context.Background()

	event := d.createEvent(t, models.EventStatusPreClosed, time.Now().Add(time.Hour))
	registerUsers(t, d, event.ID, 5)

	// Persisted entries are the source of truth; mirror failures are
	// logged and ignored.
	require.NoError(t, svc.TriggerShuffle(ctx, event.ID))

	count, err := d.entryRepo.CountByEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)
}

func TestShuffle_UnknownEvent(t *testing.T) {
	d := newDeps(t)
	svc := newShuffleService(d)

	err := svc.TriggerShuffle(context.Background(), "no-such-event")
	assert.ErrorIs(t, err, apperrors.ErrEventNotFound)
}
