package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/ticketbottle-admission/internal/kafka"
	"github.com/vogiaan1904/ticketbottle-admission/internal/models"
	sqlrepo "github.com/vogiaan1904/ticketbottle-admission/internal/repository/sql"
)

// countingEventRepo tallies successful status transitions per target.
type countingEventRepo struct {
	sqlrepo.EventRepository
	mu       sync.Mutex
	advanced map[models.EventStatus]int
}

func newCountingEventRepo(inner sqlrepo.EventRepository) *countingEventRepo {
	return &countingEventRepo{
		EventRepository: inner,
		advanced:        make(map[models.EventStatus]int),
	}
}

func (r *countingEventRepo) AdvanceStatus(ctx context.Context, eventID string, to models.EventStatus) (bool, error) {
	advanced, err := r.EventRepository.AdvanceStatus(ctx, eventID, to)
	if err == nil && advanced {
		r.mu.Lock()
		r.advanced[to]++
		r.mu.Unlock()
	}
	return advanced, err
}

func (r *countingEventRepo) advancedTo(to models.EventStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.advanced[to]
}

func newTestScheduler(d *deps, lead time.Duration) Scheduler {
	shuffleSvc := newShuffleService(d)
	return NewScheduler(SchedulerConfig{ShuffleLead: lead}, d.eventRepo, shuffleSvc, d.locker, kafka.NewNoopProducer(), d.l)
}

func eventStatus(t *testing.T, d *deps, eventID string) models.EventStatus {
	t.Helper()

	event, err := d.eventRepo.Find(context.Background(), eventID)
	require.NoError(t, err)
	return event.Status
}

func TestScheduler_FiresLifecycleInOrder(t *testing.T) {
	d := newDeps(t)
	sched := newTestScheduler(d, 40*time.Millisecond)
	ctx := context.Background()

	now := time.Now()
	event := &models.Event{
		ID:            uuid.NewString(),
		Name:          "fast lifecycle",
		Status:        models.EventStatusReady,
		PreOpenAt:     now.Add(50 * time.Millisecond),
		PreCloseAt:    now.Add(100 * time.Millisecond),
		TicketOpenAt:  now.Add(200 * time.Millisecond),
		TicketCloseAt: now.Add(300 * time.Millisecond),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, d.eventRepo.Create(ctx, event))
	registerUsers(t, d, event.ID, 5)

	// Recovery pass picks the event up from storage.
	require.NoError(t, sched.Start(ctx))
	defer sched.Stop(ctx)

	require.Eventually(t, func() bool {
		return eventStatus(t, d, event.ID) == models.EventStatusClosed
	}, 3*time.Second, 20*time.Millisecond)

	// The shuffle timer (ticketOpen - lead) built the queue on the way.
	count, err := d.entryRepo.CountByEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)

	names := d.locker.lockNames()
	assert.Contains(t, names, "shuffle:"+event.ID)
	assert.Contains(t, names, "event-transition:"+event.ID+":OPEN")
	assert.Contains(t, names, "event-transition:"+event.ID+":CLOSED")
}

func TestScheduler_SkipsPastDueInstants(t *testing.T) {
	d := newDeps(t)
	sched := newTestScheduler(d, 10*time.Millisecond)
	ctx := context.Background()

	// Everything already elapsed; assumed handled before the restart.
	event := d.createEvent(t, models.EventStatusClosed, time.Now().Add(-24*time.Hour))

	require.NoError(t, sched.Start(ctx))
	defer sched.Stop(ctx)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, models.EventStatusClosed, eventStatus(t, d, event.ID))
	assert.Empty(t, d.locker.lockNames(), "no timers should have fired")
}

func TestScheduler_NotifyEventDeletedCancelsTimers(t *testing.T) {
	d := newDeps(t)
	sched := newTestScheduler(d, 10*time.Millisecond)
	ctx := context.Background()

	event := d.createEvent(t, models.EventStatusReady, time.Now().Add(150*time.Millisecond))
	require.NoError(t, sched.NotifyEventSaved(ctx, event.ID))

	sched.NotifyEventDeleted(ctx, event.ID)

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, models.EventStatusReady, eventStatus(t, d, event.ID))
	assert.Empty(t, d.locker.lockNames())
}

func TestScheduler_RescheduleReplacesTimers(t *testing.T) {
	d := newDeps(t)
	sched := newTestScheduler(d, time.Minute)
	ctx := context.Background()

	// Original schedule is minutes out; nothing fires during the test.
	event := d.createEvent(t, models.EventStatusReady, time.Now().Add(10*time.Minute))
	require.NoError(t, sched.NotifyEventSaved(ctx, event.ID))

	// Admin pulls pre-open to right now.
	event.PreOpenAt = time.Now().Add(60 * time.Millisecond)
	require.NoError(t, d.eventRepo.UpdateSchedule(ctx, event))
	require.NoError(t, sched.NotifyEventSaved(ctx, event.ID))

	require.Eventually(t, func() bool {
		return eventStatus(t, d, event.ID) == models.EventStatusPreOpen
	}, 2*time.Second, 20*time.Millisecond)

	sched.Stop(ctx)
}

func TestScheduler_LateTimerNeverRegressesStatus(t *testing.T) {
	d := newDeps(t)
	sched := newTestScheduler(d, time.Minute)
	ctx := context.Background()

	event := d.createEvent(t, models.EventStatusReady, time.Now().Add(10*time.Minute))
	event.PreOpenAt = time.Now().Add(50 * time.Millisecond)
	require.NoError(t, d.eventRepo.UpdateSchedule(ctx, event))

	// Operator already forced the event OPEN.
	advanced, err := d.eventRepo.AdvanceStatus(ctx, event.ID, models.EventStatusOpen)
	require.NoError(t, err)
	require.True(t, advanced)

	require.NoError(t, sched.NotifyEventSaved(ctx, event.ID))
	defer sched.Stop(ctx)

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, models.EventStatusOpen, eventStatus(t, d, event.ID),
		"a late PRE_OPEN timer must not pull the event backwards")
}

func TestScheduler_ConcurrentInstancesOpenExactlyOnce(t *testing.T) {
	d := newDeps(t)
	ctx := context.Background()

	counting := newCountingEventRepo(d.eventRepo)
	event := d.createEvent(t, models.EventStatusReady, time.Now().Add(1*time.Second))
	registerUsers(t, d, event.ID, 5)

	// Three instances arm the same timers over the shared store and
	// lock; the lock plus the fresh reload inside each fired task is
	// what keeps every transition single-shot.
	scheds := make([]Scheduler, 0, 3)
	for i := 0; i < 3; i++ {
		shuffleSvc := NewShuffleService(counting, d.entryRepo, d.registrationRepo, d.counter, d.locker, d.l)
		sched := NewScheduler(SchedulerConfig{ShuffleLead: time.Minute},
			counting, shuffleSvc, d.locker, kafka.NewNoopProducer(), d.l)
		require.NoError(t, sched.Start(ctx))
		scheds = append(scheds, sched)
	}
	defer func() {
		for _, sched := range scheds {
			sched.Stop(ctx)
		}
	}()

	require.Eventually(t, func() bool {
		return eventStatus(t, d, event.ID) == models.EventStatusOpen
	}, 3*time.Second, 20*time.Millisecond)

	// Give the losing instances' timers time to fire and skip.
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, 1, counting.advancedTo(models.EventStatusOpen))
	assert.Equal(t, 1, counting.advancedTo(models.EventStatusQueueReady))

	// One shuffle built the queue; the other two were no-ops.
	count, err := d.entryRepo.CountByEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)
}

func TestScheduler_ShuffleInsideLeadWindowFiresImmediately(t *testing.T) {
	d := newDeps(t)
	sched := newTestScheduler(d, time.Hour)
	ctx := context.Background()

	// Lead instant is already behind us, ticket opening is not.
	event := d.createEvent(t, models.EventStatusReady, time.Now().Add(10*time.Minute))
	registerUsers(t, d, event.ID, 4)

	require.NoError(t, sched.NotifyEventSaved(ctx, event.ID))
	defer sched.Stop(ctx)

	require.Eventually(t, func() bool {
		return eventStatus(t, d, event.ID) == models.EventStatusQueueReady
	}, 2*time.Second, 20*time.Millisecond)

	count, err := d.entryRepo.CountByEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)
}

func TestScheduler_StopCancelsEverything(t *testing.T) {
	d := newDeps(t)
	sched := newTestScheduler(d, 10*time.Millisecond)
	ctx := context.Background()

	event := d.createEvent(t, models.EventStatusReady, time.Now().Add(150*time.Millisecond))
	require.NoError(t, sched.NotifyEventSaved(ctx, event.ID))

	sched.Stop(ctx)

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, models.EventStatusReady, eventStatus(t, d, event.ID))
}
