package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/ticketbottle-admission/internal/models"
)

type recordingScheduler struct {
	saved   []string
	deleted []string
}

func (r *recordingScheduler) Start(context.Context) error { return nil }
func (r *recordingScheduler) Stop(context.Context)        {}
func (r *recordingScheduler) NotifyEventSaved(_ context.Context, eventID string) error {
	r.saved = append(r.saved, eventID)
	return nil
}
func (r *recordingScheduler) NotifyEventDeleted(_ context.Context, eventID string) {
	r.deleted = append(r.deleted, eventID)
}

func newEventService(d *deps, sched Scheduler) EventService {
	return NewEventService(d.eventRepo, d.seatRepo, d.registrationRepo, sched, d.l)
}

func validSchedule(from time.Time) ScheduleInput {
	return ScheduleInput{
		PreOpenAt:     from.Add(1 * time.Hour),
		PreCloseAt:    from.Add(2 * time.Hour),
		TicketOpenAt:  from.Add(3 * time.Hour),
		TicketCloseAt: from.Add(4 * time.Hour),
	}
}

func TestCreateEvent_ArmsTimers(t *testing.T) {
	d := newDeps(t)
	sched := &recordingScheduler{}
	svc := newEventService(d, sched)
	ctx := context.Background()

	event, err := svc.CreateEvent(ctx, CreateEventInput{
		Name:     "launch",
		Schedule: validSchedule(time.Now()),
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusReady, event.Status)
	assert.Equal(t, []string{event.ID}, sched.saved)

	found, err := d.eventRepo.Find(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, "launch", found.Name)
}

func TestCreateEvent_RejectsBrokenSchedule(t *testing.T) {
	d := newDeps(t)
	svc := newEventService(d, &recordingScheduler{})

	sched := validSchedule(time.Now())
	sched.TicketCloseAt = sched.TicketOpenAt.Add(-time.Minute)

	_, err := svc.CreateEvent(context.Background(), CreateEventInput{Name: "x", Schedule: sched})
	assert.Error(t, err)
}

func TestUpdateEventSchedule_Rearms(t *testing.T) {
	d := newDeps(t)
	sched := &recordingScheduler{}
	svc := newEventService(d, sched)
	ctx := context.Background()

	event, err := svc.CreateEvent(ctx, CreateEventInput{Name: "x", Schedule: validSchedule(time.Now())})
	require.NoError(t, err)

	updated, err := svc.UpdateEventSchedule(ctx, event.ID, validSchedule(time.Now().Add(24*time.Hour)))
	require.NoError(t, err)
	assert.True(t, updated.TicketOpenAt.After(event.TicketOpenAt))
	assert.Equal(t, []string{event.ID, event.ID}, sched.saved)
}

func TestDeleteEvent_CancelsTimers(t *testing.T) {
	d := newDeps(t)
	sched := &recordingScheduler{}
	svc := newEventService(d, sched)
	ctx := context.Background()

	event, err := svc.CreateEvent(ctx, CreateEventInput{Name: "x", Schedule: validSchedule(time.Now())})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteEvent(ctx, event.ID))
	assert.Equal(t, []string{event.ID}, sched.deleted)
}

func TestAddSeats(t *testing.T) {
	d := newDeps(t)
	svc := newEventService(d, &recordingScheduler{})
	ctx := context.Background()

	event, err := svc.CreateEvent(ctx, CreateEventInput{Name: "x", Schedule: validSchedule(time.Now())})
	require.NoError(t, err)

	err = svc.AddSeats(ctx, event.ID, []SeatInput{
		{Code: "A-1", Grade: "vip", Price: decimal.NewFromInt(300)},
		{Code: "A-2", Grade: "std", Price: decimal.NewFromInt(120)},
	})
	require.NoError(t, err)

	seats, err := d.seatRepo.FindByEvent(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, seats, 2)
	for _, s := range seats {
		assert.Equal(t, models.SeatStatusAvailable, s.Status)
	}
}

func TestRegisterUser_ClosesWithQueueBuild(t *testing.T) {
	d := newDeps(t)
	svc := newEventService(d, &recordingScheduler{})
	ctx := context.Background()

	event, err := svc.CreateEvent(ctx, CreateEventInput{Name: "x", Schedule: validSchedule(time.Now())})
	require.NoError(t, err)

	require.NoError(t, svc.RegisterUser(ctx, event.ID, "user-1"))

	advanced, err := d.eventRepo.AdvanceStatus(ctx, event.ID, models.EventStatusQueueReady)
	require.NoError(t, err)
	require.True(t, advanced)

	assert.Error(t, svc.RegisterUser(ctx, event.ID, "user-late"),
		"registration is closed once the queue exists")
}
