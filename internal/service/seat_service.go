package service

import (
	"context"
	"fmt"

	apperrors "github.com/vogiaan1904/ticketbottle-admission/internal/errors"
	"github.com/vogiaan1904/ticketbottle-admission/internal/kafka"
	"github.com/vogiaan1904/ticketbottle-admission/internal/metrics"
	"github.com/vogiaan1904/ticketbottle-admission/internal/models"
	sqlrepo "github.com/vogiaan1904/ticketbottle-admission/internal/repository/sql"
	pkgErrors "github.com/vogiaan1904/ticketbottle-admission/pkg/errors"
	"github.com/vogiaan1904/ticketbottle-admission/pkg/logger"
)

// SeatService is the single race-free primitive for inventory
// allocation. Every transition is a conditional update; losing callers
// get a cause-specific failure after a disambiguating re-read.
type SeatService interface {
	Reserve(ctx context.Context, eventID, seatID, userID string) (*models.Seat, error)
	MarkSold(ctx context.Context, eventID, seatID string) (*models.Seat, error)
	MarkAvailable(ctx context.Context, eventID, seatID string) error
}

type seatService struct {
	seatRepo sqlrepo.SeatRepository
	prod     kafka.Producer
	l        logger.Logger
}

func NewSeatService(seatRepo sqlrepo.SeatRepository, prod kafka.Producer, l logger.Logger) SeatService {
	return &seatService{
		seatRepo: seatRepo,
		prod:     prod,
		l:        l,
	}
}

func (s *seatService) Reserve(ctx context.Context, eventID, seatID, userID string) (*models.Seat, error) {
	ok, err := s.seatRepo.Reserve(ctx, eventID, seatID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve seat: %w", err)
	}

	if !ok {
		seat, err := s.seatRepo.Find(ctx, eventID, seatID)
		if err != nil {
			return nil, err
		}

		var cause *pkgErrors.BusinessError
		switch seat.Status {
		case models.SeatStatusSold:
			cause = apperrors.ErrSeatAlreadySold
		case models.SeatStatusReserved:
			cause = apperrors.ErrSeatAlreadyReserved
		default:
			cause = apperrors.ErrConcurrencyConflict
		}

		metrics.RecordSeatTransitionFailure("reserve", cause.Code)
		return nil, cause
	}

	metrics.RecordSeatTransition("reserve")

	seat, err := s.seatRepo.Find(ctx, eventID, seatID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload reserved seat: %w", err)
	}

	s.publishStatusChanged(ctx, seat)

	s.l.Infof(ctx, "Seat %s reserved for user %s on event %s", seatID, userID, eventID)

	return seat, nil
}

func (s *seatService) MarkSold(ctx context.Context, eventID, seatID string) (*models.Seat, error) {
	ok, err := s.seatRepo.MarkSold(ctx, eventID, seatID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark seat sold: %w", err)
	}

	if !ok {
		seat, err := s.seatRepo.Find(ctx, eventID, seatID)
		if err != nil {
			return nil, err
		}

		var cause *pkgErrors.BusinessError
		switch seat.Status {
		case models.SeatStatusSold:
			cause = apperrors.ErrSeatAlreadySold
		case models.SeatStatusAvailable:
			cause = apperrors.ErrSeatNotReserved
		default:
			cause = apperrors.ErrConcurrencyConflict
		}

		metrics.RecordSeatTransitionFailure("mark_sold", cause.Code)
		return nil, cause
	}

	metrics.RecordSeatTransition("mark_sold")

	seat, err := s.seatRepo.Find(ctx, eventID, seatID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload sold seat: %w", err)
	}

	s.publishStatusChanged(ctx, seat)

	return seat, nil
}

// MarkAvailable releases a held seat. Multiple independent release
// paths (expiration, deselect, payment failure) may race to free the
// same seat, so an already-AVAILABLE seat counts as success.
func (s *seatService) MarkAvailable(ctx context.Context, eventID, seatID string) error {
	ok, err := s.seatRepo.Release(ctx, eventID, seatID)
	if err != nil {
		return fmt.Errorf("failed to release seat: %w", err)
	}

	if !ok {
		seat, err := s.seatRepo.Find(ctx, eventID, seatID)
		if err != nil {
			return err
		}

		switch seat.Status {
		case models.SeatStatusAvailable:
			return nil
		case models.SeatStatusSold:
			metrics.RecordSeatTransitionFailure("release", apperrors.ErrSeatAlreadySold.Code)
			return apperrors.ErrSeatAlreadySold
		default:
			metrics.RecordSeatTransitionFailure("release", apperrors.ErrConcurrencyConflict.Code)
			return apperrors.ErrConcurrencyConflict
		}
	}

	metrics.RecordSeatTransition("release")

	if seat, err := s.seatRepo.Find(ctx, eventID, seatID); err == nil {
		s.publishStatusChanged(ctx, seat)
	}

	s.l.Infof(ctx, "Seat %s released on event %s", seatID, eventID)

	return nil
}

func (s *seatService) publishStatusChanged(ctx context.Context, seat *models.Seat) {
	if err := s.prod.PublishSeatStatusChanged(ctx, kafka.SeatStatusChangedEvent{
		EventID: seat.EventID,
		SeatID:  seat.ID,
		Code:    seat.Code,
		Status:  string(seat.Status),
		UserID:  seat.ReservedBy,
	}); err != nil {
		s.l.Errorf(ctx, "seatService.publishStatusChanged: %v", err)
	}
}
