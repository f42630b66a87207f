package service

import (
	"context"
	"fmt"

	apperrors "github.com/vogiaan1904/ticketbottle-admission/internal/errors"
	"github.com/vogiaan1904/ticketbottle-admission/internal/kafka"
	"github.com/vogiaan1904/ticketbottle-admission/internal/models"
	"github.com/vogiaan1904/ticketbottle-admission/internal/payment"
	redisrepo "github.com/vogiaan1904/ticketbottle-admission/internal/repository/redis"
	sqlrepo "github.com/vogiaan1904/ticketbottle-admission/internal/repository/sql"
	"github.com/vogiaan1904/ticketbottle-admission/pkg/logger"
)

// ReservationService is the purchase path for an admitted user: pick a
// seat, swap it, drop it, pay for it. Every call checks the caller is
// inside an active ENTERED window first.
type ReservationService interface {
	SelectSeat(ctx context.Context, eventID, userID, seatID string) (*models.DraftReservation, error)
	DeselectSeat(ctx context.Context, eventID, userID string) error
	ConfirmPayment(ctx context.Context, eventID, userID string) (*ConfirmPaymentOutput, error)
}

type reservationService struct {
	entryRepo       sqlrepo.QueueEntryRepository
	reservationRepo sqlrepo.ReservationRepository
	seatRepo        sqlrepo.SeatRepository
	counterRepo     redisrepo.CounterRepository
	seatSvc         SeatService
	gateway         payment.Gateway
	prod            kafka.Producer
	l               logger.Logger
}

func NewReservationService(
	entryRepo sqlrepo.QueueEntryRepository,
	reservationRepo sqlrepo.ReservationRepository,
	seatRepo sqlrepo.SeatRepository,
	counterRepo redisrepo.CounterRepository,
	seatSvc SeatService,
	gateway payment.Gateway,
	prod kafka.Producer,
	l logger.Logger,
) ReservationService {
	return &reservationService{
		entryRepo:       entryRepo,
		reservationRepo: reservationRepo,
		seatRepo:        seatRepo,
		counterRepo:     counterRepo,
		seatSvc:         seatSvc,
		gateway:         gateway,
		prod:            prod,
		l:               l,
	}
}

// SelectSeat swaps the caller onto a new seat. The new seat is
// reserved before the old one is released, so a failed swap never
// leaves the user seatless.
func (s *reservationService) SelectSeat(ctx context.Context, eventID, userID, seatID string) (*models.DraftReservation, error) {
	if err := s.requireEntered(ctx, eventID, userID); err != nil {
		return nil, err
	}

	reservation, err := s.reservationRepo.GetOrCreate(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft reservation: %w", err)
	}

	if reservation.SeatID == seatID {
		return reservation, nil
	}

	if _, err := s.seatSvc.Reserve(ctx, eventID, seatID, userID); err != nil {
		return nil, err
	}

	if reservation.HasSeat() {
		if err := s.seatSvc.MarkAvailable(ctx, eventID, reservation.SeatID); err != nil {
			s.l.Errorf(ctx, "reservationService.SelectSeat: release old seat %s: %v",
				reservation.SeatID, err)
		}
	}

	if err := s.reservationRepo.SetSeat(ctx, reservation.ID, seatID); err != nil {
		return nil, fmt.Errorf("failed to attach seat to reservation: %w", err)
	}

	reservation.SeatID = seatID
	return reservation, nil
}

// DeselectSeat drops the held seat but keeps the draft around for the
// next pick. No seat held is a no-op.
func (s *reservationService) DeselectSeat(ctx context.Context, eventID, userID string) error {
	if err := s.requireEntered(ctx, eventID, userID); err != nil {
		return err
	}

	reservation, err := s.reservationRepo.FindByEventAndUser(ctx, eventID, userID)
	if err != nil {
		return err
	}
	if !reservation.HasSeat() {
		return nil
	}

	if err := s.seatSvc.MarkAvailable(ctx, eventID, reservation.SeatID); err != nil {
		return err
	}

	if err := s.reservationRepo.ClearSeat(ctx, reservation.ID); err != nil {
		return fmt.Errorf("failed to clear reservation: %w", err)
	}

	return nil
}

// ConfirmPayment charges the held seat and completes the entry. A
// declined payment leaves the seat RESERVED so the user can retry
// inside their window.
func (s *reservationService) ConfirmPayment(ctx context.Context, eventID, userID string) (*ConfirmPaymentOutput, error) {
	entry, err := s.entryRepo.FindByEventAndUser(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if !entry.IsEntered() {
		return nil, apperrors.ErrNotEntered
	}

	reservation, err := s.reservationRepo.FindByEventAndUser(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if !reservation.HasSeat() {
		return nil, apperrors.ErrSeatNotReserved
	}

	seat, err := s.seatRepo.Find(ctx, eventID, reservation.SeatID)
	if err != nil {
		return nil, err
	}
	if seat.ReservedBy != userID {
		return nil, apperrors.ErrUnauthorized
	}

	confirmation, err := s.gateway.Confirm(ctx, reservation.ID, seat.Price)
	if err != nil {
		s.l.Errorf(ctx, "reservationService.ConfirmPayment: gateway: %v", err)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPaymentFailed, err)
	}

	if _, err := s.seatSvc.MarkSold(ctx, eventID, seat.ID); err != nil {
		return nil, err
	}

	if ok, err := s.entryRepo.MarkCompleted(ctx, entry.ID); err != nil {
		s.l.Errorf(ctx, "reservationService.ConfirmPayment: complete entry: %v", err)
	} else if !ok {
		s.l.Warnf(ctx, "Entry %s was not ENTERED when completing; seat %s already sold", entry.ID, seat.ID)
	}

	if err := s.counterRepo.RemoveEntered(ctx, eventID, userID); err != nil {
		s.l.Errorf(ctx, "reservationService.ConfirmPayment: remove counter: %v", err)
	}

	if err := s.prod.PublishPaymentCompleted(ctx, kafka.PaymentCompletedEvent{
		EventID:  eventID,
		UserID:   userID,
		SeatID:   seat.ID,
		OrderRef: confirmation.Reference,
		Amount:   seat.Price.String(),
	}); err != nil {
		s.l.Errorf(ctx, "reservationService.ConfirmPayment: publish: %v", err)
	}

	s.l.Infof(ctx, "Payment confirmed for user %s on event %s: seat %s (%s)",
		userID, eventID, seat.Code, seat.Price.String())

	return &ConfirmPaymentOutput{
		OrderRef: confirmation.Reference,
		SeatID:   seat.ID,
		SeatCode: seat.Code,
		Amount:   seat.Price,
	}, nil
}

func (s *reservationService) requireEntered(ctx context.Context, eventID, userID string) error {
	entry, err := s.entryRepo.FindByEventAndUser(ctx, eventID, userID)
	if err != nil {
		return err
	}
	if !entry.IsEntered() {
		return apperrors.ErrNotEntered
	}
	return nil
}
