package service

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/vogiaan1904/ticketbottle-admission/internal/errors"
	"github.com/vogiaan1904/ticketbottle-admission/internal/kafka"
	"github.com/vogiaan1904/ticketbottle-admission/internal/metrics"
	"github.com/vogiaan1904/ticketbottle-admission/internal/models"
	redisrepo "github.com/vogiaan1904/ticketbottle-admission/internal/repository/redis"
	sqlrepo "github.com/vogiaan1904/ticketbottle-admission/internal/repository/sql"
	"github.com/vogiaan1904/ticketbottle-admission/pkg/logger"
)

// AdmissionService moves WAITING entries into their ENTERED window, in
// rank order, in batches. Entering starts the purchase countdown.
type AdmissionService interface {
	EnterUser(ctx context.Context, eventID, userID string) (*models.QueueEntry, error)
	ProcessOpenEvents(ctx context.Context) (*BatchResult, error)
	GetMyQueueStatus(ctx context.Context, eventID, userID string) (*QueueStatusOutput, error)
}

type AdmissionConfig struct {
	EntryWindow time.Duration
	BatchSize   int
}

type admissionService struct {
	cfg         AdmissionConfig
	eventRepo   sqlrepo.EventRepository
	entryRepo   sqlrepo.QueueEntryRepository
	counterRepo redisrepo.CounterRepository
	locker      Locker
	prod        kafka.Producer
	l           logger.Logger
}

func NewAdmissionService(
	cfg AdmissionConfig,
	eventRepo sqlrepo.EventRepository,
	entryRepo sqlrepo.QueueEntryRepository,
	counterRepo redisrepo.CounterRepository,
	locker Locker,
	prod kafka.Producer,
	l logger.Logger,
) AdmissionService {
	return &admissionService{
		cfg:         cfg,
		eventRepo:   eventRepo,
		entryRepo:   entryRepo,
		counterRepo: counterRepo,
		locker:      locker,
		prod:        prod,
		l:           l,
	}
}

// EnterUser admits one entry. The WAITING->ENTERED flip is a
// conditional update, so two admitters racing on the same entry
// resolve to exactly one winner; the loser gets a typed cause.
func (s *admissionService) EnterUser(ctx context.Context, eventID, userID string) (*models.QueueEntry, error) {
	entry, err := s.entryRepo.FindByEventAndUser(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	if err := entryNotWaitingCause(entry); err != nil {
		return nil, err
	}

	now := time.Now()
	expiresAt := now.Add(s.cfg.EntryWindow)

	ok, err := s.entryRepo.MarkEntered(ctx, entry.ID, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to mark entry entered: %w", err)
	}
	if !ok {
		// Lost the race; re-read for the real cause.
		fresh, err := s.entryRepo.FindByEventAndUser(ctx, eventID, userID)
		if err != nil {
			return nil, err
		}
		if err := entryNotWaitingCause(fresh); err != nil {
			return nil, err
		}
		return nil, apperrors.ErrConcurrencyConflict
	}

	entry.Status = models.QueueEntryStatusEntered
	entry.EnteredAt = &now
	entry.ExpiresAt = &expiresAt

	if err := s.counterRepo.MoveToEntered(ctx, eventID, userID); err != nil {
		s.l.Errorf(ctx, "admissionService.EnterUser: move counter: %v", err)
	}

	if err := s.prod.PublishQueueEntered(ctx, kafka.QueueEnteredEvent{
		EntryID:   entry.ID,
		EventID:   eventID,
		UserID:    userID,
		Rank:      entry.Rank,
		EnteredAt: now,
		ExpiresAt: expiresAt,
	}); err != nil {
		s.l.Errorf(ctx, "admissionService.EnterUser: publish: %v", err)
	}

	s.l.Infof(ctx, "User %s entered event %s (rank %d, window until %s)",
		userID, eventID, entry.Rank, expiresAt.Format(time.RFC3339))

	return entry, nil
}

// ProcessOpenEvents runs one admission batch per OPEN event. Each
// event is guarded by its own lock so multiple instances split the
// work without double-admitting.
func (s *admissionService) ProcessOpenEvents(ctx context.Context) (*BatchResult, error) {
	events, err := s.eventRepo.FindByStatus(ctx, models.EventStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to list open events: %w", err)
	}

	total := &BatchResult{}
	for _, event := range events {
		eventID := event.ID
		executed, err := s.locker.ExecuteWithLock(ctx, "admission:"+eventID, func(ctx context.Context) error {
			result, err := s.admitBatch(ctx, eventID)
			if err != nil {
				return err
			}
			total.add(*result)
			return nil
		})
		if err != nil {
			s.l.Errorf(ctx, "admissionService.ProcessOpenEvents: event %s: %v", eventID, err)
			continue
		}
		if !executed {
			s.l.Debugf(ctx, "Admission for event %s held by another instance", eventID)
		}
	}

	return total, nil
}

func (s *admissionService) admitBatch(ctx context.Context, eventID string) (*BatchResult, error) {
	waiting, err := s.entryRepo.FindWaiting(ctx, eventID, s.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load waiting entries: %w", err)
	}

	result := &BatchResult{}
	for _, entry := range waiting {
		if _, err := s.EnterUser(ctx, eventID, entry.UserID); err != nil {
			s.l.Errorf(ctx, "admissionService.admitBatch: entry %s: %v", entry.ID, err)
			result.Failed++
			metrics.RecordAdmission("failed")
			continue
		}
		result.Succeeded++
		metrics.RecordAdmission("succeeded")
	}

	if result.Succeeded > 0 || result.Failed > 0 {
		s.l.Infof(ctx, "Admission batch for event %s: %d entered, %d failed",
			eventID, result.Succeeded, result.Failed)
	}

	return result, nil
}

func (s *admissionService) GetMyQueueStatus(ctx context.Context, eventID, userID string) (*QueueStatusOutput, error) {
	entry, err := s.entryRepo.FindByEventAndUser(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	out := &QueueStatusOutput{
		EventID:      eventID,
		UserID:       userID,
		Rank:         entry.Rank,
		Status:       entry.Status,
		WaitingAhead: -1,
		EnteredAt:    entry.EnteredAt,
		ExpiresAt:    entry.ExpiresAt,
	}

	if entry.IsWaiting() {
		ahead, err := s.counterRepo.WaitingAhead(ctx, eventID, userID)
		if err != nil {
			s.l.Errorf(ctx, "admissionService.GetMyQueueStatus: waiting ahead: %v", err)
		} else {
			out.WaitingAhead = ahead
		}
	}

	return out, nil
}

func entryNotWaitingCause(entry *models.QueueEntry) error {
	switch entry.Status {
	case models.QueueEntryStatusWaiting:
		return nil
	case models.QueueEntryStatusEntered:
		return apperrors.ErrAlreadyEntered
	case models.QueueEntryStatusExpired:
		return apperrors.ErrAlreadyExpired
	default:
		return apperrors.ErrNotWaiting
	}
}
