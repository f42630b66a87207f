package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vogiaan1904/ticketbottle-admission/internal/kafka"
	"github.com/vogiaan1904/ticketbottle-admission/internal/metrics"
	"github.com/vogiaan1904/ticketbottle-admission/internal/models"
	sqlrepo "github.com/vogiaan1904/ticketbottle-admission/internal/repository/sql"
	"github.com/vogiaan1904/ticketbottle-admission/pkg/logger"
)

type taskType string

const (
	taskPreOpen     taskType = "PRE_OPEN"
	taskPreClose    taskType = "PRE_CLOSED"
	taskShuffle     taskType = "SHUFFLE"
	taskTicketOpen  taskType = "OPEN"
	taskTicketClose taskType = "CLOSED"
)

type taskKey struct {
	eventID string
	task    taskType
}

type SchedulerConfig struct {
	// ShuffleLead is how long before ticket opening the queue is built.
	ShuffleLead time.Duration
}

// Scheduler fires per-event lifecycle transitions at their configured
// instants. Timers are node-local and cheap; every instance arms the
// same timers, and the cluster-wide lock inside each fired task is
// what guarantees a transition runs once.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	NotifyEventSaved(ctx context.Context, eventID string) error
	NotifyEventDeleted(ctx context.Context, eventID string)
}

type scheduler struct {
	cfg        SchedulerConfig
	eventRepo  sqlrepo.EventRepository
	shuffleSvc ShuffleService
	locker     Locker
	prod       kafka.Producer
	l          logger.Logger

	mu      sync.Mutex
	timers  map[taskKey]*time.Timer
	stopped bool
}

func NewScheduler(
	cfg SchedulerConfig,
	eventRepo sqlrepo.EventRepository,
	shuffleSvc ShuffleService,
	locker Locker,
	prod kafka.Producer,
	l logger.Logger,
) Scheduler {
	return &scheduler{
		cfg:        cfg,
		eventRepo:  eventRepo,
		shuffleSvc: shuffleSvc,
		locker:     locker,
		prod:       prod,
		l:          l,
		timers:     make(map[taskKey]*time.Timer),
	}
}

// Start runs the recovery pass: in-memory timers do not survive a
// restart, so every event with a transition still ahead gets its
// timers re-registered from storage.
func (s *scheduler) Start(ctx context.Context) error {
	events, err := s.eventRepo.FindWithFutureTransition(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to load events for scheduler recovery: %w", err)
	}

	for _, event := range events {
		s.register(ctx, event)
	}

	s.l.Infof(ctx, "Scheduler started: timers recovered for %d events", len(events))

	return nil
}

func (s *scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}

	s.l.Info(ctx, "Scheduler stopped")
}

// NotifyEventSaved reschedules an event after create or update. Stale
// timers from the previous schedule are cancelled first.
func (s *scheduler) NotifyEventSaved(ctx context.Context, eventID string) error {
	event, err := s.eventRepo.Find(ctx, eventID)
	if err != nil {
		return err
	}

	s.cancelEvent(eventID)
	s.register(ctx, event)

	return nil
}

func (s *scheduler) NotifyEventDeleted(ctx context.Context, eventID string) {
	s.cancelEvent(eventID)
	s.l.Infof(ctx, "Timers cancelled for deleted event %s", eventID)
}

func (s *scheduler) cancelEvent(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, timer := range s.timers {
		if key.eventID == eventID {
			timer.Stop()
			delete(s.timers, key)
		}
	}
}

func (s *scheduler) register(ctx context.Context, event *models.Event) {
	now := time.Now()

	// Past-due instants are skipped on purpose: either they already
	// ran, or an operator backdated the schedule and owns the fallout.
	s.registerTask(ctx, now, event.ID, taskPreOpen, event.PreOpenAt)
	s.registerTask(ctx, now, event.ID, taskPreClose, event.PreCloseAt)
	s.registerTask(ctx, now, event.ID, taskTicketOpen, event.TicketOpenAt)
	s.registerTask(ctx, now, event.ID, taskTicketClose, event.TicketCloseAt)

	// The shuffle is the one instant that must not be skipped: an
	// event saved or recovered inside the lead window still needs its
	// queue, so a past-due shuffle fires immediately as long as ticket
	// opening is ahead.
	shuffleAt := event.TicketOpenAt.Add(-s.cfg.ShuffleLead)
	if !shuffleAt.After(now) && event.TicketOpenAt.After(now) {
		shuffleAt = now.Add(time.Millisecond)
	}
	s.registerTask(ctx, now, event.ID, taskShuffle, shuffleAt)
}

func (s *scheduler) registerTask(ctx context.Context, now time.Time, eventID string, task taskType, at time.Time) {
	if !at.After(now) {
		return
	}

	key := taskKey{eventID: eventID, task: task}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if old, ok := s.timers[key]; ok {
		old.Stop()
	}

	s.timers[key] = time.AfterFunc(at.Sub(now), func() {
		s.fire(key)
	})

	s.l.Debugf(ctx, "Task %s scheduled for event %s at %s", task, eventID, at.Format(time.RFC3339))
}

// fire runs a due task. The local index entry is dropped whatever
// happens, and a panicking task never takes the process down.
func (s *scheduler) fire(key taskKey) {
	ctx := context.Background()
	start := time.Now()

	defer func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()

		metrics.ObserveSchedulerTask(string(key.task), time.Since(start))

		if rec := recover(); rec != nil {
			s.l.Errorf(ctx, "scheduler.fire: task %s for event %s panicked after %s: %v",
				key.task, key.eventID, time.Since(start), rec)
		}
	}()

	var err error
	switch key.task {
	case taskShuffle:
		err = s.runShuffle(ctx, key.eventID)
	default:
		err = s.runTransition(ctx, key.eventID, transitionTarget(key.task))
	}
	if err != nil {
		s.l.Errorf(ctx, "scheduler.fire: task %s for event %s failed after %s: %v",
			key.task, key.eventID, time.Since(start), err)
		return
	}

	s.l.Infof(ctx, "Task %s for event %s done in %s", key.task, key.eventID, time.Since(start))
}

// runShuffle builds the queue then advances the event to QUEUE_READY.
// TriggerShuffle holds its own lock and is idempotent, so racing
// instances are safe here.
func (s *scheduler) runShuffle(ctx context.Context, eventID string) error {
	if err := s.shuffleSvc.TriggerShuffle(ctx, eventID); err != nil {
		return err
	}
	return s.runTransition(ctx, eventID, models.EventStatusQueueReady)
}

func (s *scheduler) runTransition(ctx context.Context, eventID string, to models.EventStatus) error {
	lockName := fmt.Sprintf("event-transition:%s:%s", eventID, to)

	executed, err := s.locker.ExecuteWithLock(ctx, lockName, func(ctx context.Context) error {
		// Never trust the snapshot captured at schedule time.
		event, err := s.eventRepo.Find(ctx, eventID)
		if err != nil {
			return err
		}
		if event.Status.Rank() >= to.Rank() {
			s.l.Debugf(ctx, "Event %s already at %s, skipping %s", eventID, event.Status, to)
			return nil
		}

		advanced, err := s.eventRepo.AdvanceStatus(ctx, eventID, to)
		if err != nil {
			return err
		}
		if !advanced {
			s.l.Debugf(ctx, "Event %s transition to %s lost the race", eventID, to)
			return nil
		}

		if err := s.prod.PublishEventStatusChanged(ctx, kafka.EventStatusChangedEvent{
			EventID: eventID,
			Status:  string(to),
		}); err != nil {
			s.l.Errorf(ctx, "scheduler.runTransition: publish: %v", err)
		}

		s.l.Infof(ctx, "Event %s advanced to %s", eventID, to)
		return nil
	})
	if err != nil {
		return err
	}
	if !executed {
		s.l.Debugf(ctx, "Transition %s for event %s held by another instance", to, eventID)
	}

	return nil
}

func transitionTarget(task taskType) models.EventStatus {
	switch task {
	case taskPreOpen:
		return models.EventStatusPreOpen
	case taskPreClose:
		return models.EventStatusPreClosed
	case taskTicketOpen:
		return models.EventStatusOpen
	default:
		return models.EventStatusClosed
	}
}
