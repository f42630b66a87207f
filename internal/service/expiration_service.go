package service

import (
	"context"
	"errors"
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

// ExpirationService sweeps ENTERED entries whose purchase window
// lapsed, flips them to EXPIRED and frees any seat they still held.
type ExpirationService interface {
	ProcessExpirations(ctx context.Context) (*BatchResult, error)
}

type expirationService struct {
	entryRepo       sqlrepo.QueueEntryRepository
	reservationRepo sqlrepo.ReservationRepository
	counterRepo     redisrepo.CounterRepository
	seatSvc         SeatService
	locker          Locker
	prod            kafka.Producer
	l               logger.Logger
}

func NewExpirationService(
	entryRepo sqlrepo.QueueEntryRepository,
	reservationRepo sqlrepo.ReservationRepository,
	counterRepo redisrepo.CounterRepository,
	seatSvc SeatService,
	locker Locker,
	prod kafka.Producer,
	l logger.Logger,
) ExpirationService {
	return &expirationService{
		entryRepo:       entryRepo,
		reservationRepo: reservationRepo,
		counterRepo:     counterRepo,
		seatSvc:         seatSvc,
		locker:          locker,
		prod:            prod,
		l:               l,
	}
}

// ProcessExpirations runs one sweep under a cluster-wide lock. A held
// lock means another instance is already sweeping, which is fine: the
// next tick retries.
func (s *expirationService) ProcessExpirations(ctx context.Context) (*BatchResult, error) {
	result := &BatchResult{}

	executed, err := s.locker.ExecuteWithLock(ctx, "expiration", func(ctx context.Context) error {
		r, err := s.sweep(ctx)
		if err != nil {
			return err
		}
		*result = *r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !executed {
		s.l.Debugf(ctx, "Expiration sweep held by another instance")
	}

	return result, nil
}

func (s *expirationService) sweep(ctx context.Context) (*BatchResult, error) {
	overdue, err := s.entryRepo.FindOverdue(ctx, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to load overdue entries: %w", err)
	}

	result := &BatchResult{}
	for _, entry := range overdue {
		if err := s.expireEntry(ctx, entry); err != nil {
			s.l.Errorf(ctx, "expirationService.sweep: entry %s: %v", entry.ID, err)
			result.Failed++
			continue
		}
		result.Succeeded++
	}

	if result.Succeeded > 0 || result.Failed > 0 {
		s.l.Infof(ctx, "Expiration sweep: %d expired, %d failed", result.Succeeded, result.Failed)
	}

	return result, nil
}

func (s *expirationService) expireEntry(ctx context.Context, entry *models.QueueEntry) error {
	ok, err := s.entryRepo.MarkExpired(ctx, entry.ID)
	if err != nil {
		return fmt.Errorf("failed to mark entry expired: %w", err)
	}
	if !ok {
		// Completed (or already expired) between the sweep query and
		// here; nothing to do.
		return nil
	}

	metrics.RecordExpiration()

	if err := s.counterRepo.RemoveEntered(ctx, entry.EventID, entry.UserID); err != nil {
		s.l.Errorf(ctx, "expirationService.expireEntry: remove counter: %v", err)
	}

	s.releaseHeldSeat(ctx, entry)

	if err := s.prod.PublishQueueExpired(ctx, kafka.QueueExpiredEvent{
		EntryID: entry.ID,
		EventID: entry.EventID,
		UserID:  entry.UserID,
	}); err != nil {
		s.l.Errorf(ctx, "expirationService.expireEntry: publish: %v", err)
	}

	s.l.Infof(ctx, "Entry %s expired for user %s on event %s", entry.ID, entry.UserID, entry.EventID)

	return nil
}

// releaseHeldSeat frees the seat a lapsed user still had selected.
// Failures are logged only; the entry stays EXPIRED regardless.
func (s *expirationService) releaseHeldSeat(ctx context.Context, entry *models.QueueEntry) {
	reservation, err := s.reservationRepo.FindByEventAndUser(ctx, entry.EventID, entry.UserID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrReservationNotFound) {
			s.l.Errorf(ctx, "expirationService.releaseHeldSeat: find reservation: %v", err)
		}
		return
	}
	if !reservation.HasSeat() {
		return
	}

	if err := s.seatSvc.MarkAvailable(ctx, entry.EventID, reservation.SeatID); err != nil {
		s.l.Errorf(ctx, "expirationService.releaseHeldSeat: release seat %s: %v", reservation.SeatID, err)
		return
	}

	if err := s.reservationRepo.ClearSeat(ctx, reservation.ID); err != nil {
		s.l.Errorf(ctx, "expirationService.releaseHeldSeat: clear reservation: %v", err)
	}
}
