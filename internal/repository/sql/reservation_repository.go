package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	apperrors "github.com/vogiaan1904/ticketbottle-admission/internal/errors"
	"github.com/vogiaan1904/ticketbottle-admission/internal/models"
	"github.com/vogiaan1904/ticketbottle-admission/pkg/logger"
)

type ReservationRepository interface {
	GetOrCreate(ctx context.Context, eventID, userID string) (*models.DraftReservation, error)
	FindByEventAndUser(ctx context.Context, eventID, userID string) (*models.DraftReservation, error)
	SetSeat(ctx context.Context, reservationID, seatID string) error
	ClearSeat(ctx context.Context, reservationID string) error
}

type sqlReservationRepository struct {
	db *dbx.DB
	l  logger.Logger
}

func NewSQLReservationRepository(db *dbx.DB, l logger.Logger) ReservationRepository {
	return &sqlReservationRepository{
		db: db,
		l:  l,
	}
}

// GetOrCreate returns the user's single draft for the event, creating
// it on first use. The UNIQUE (event_id, user_id) constraint arbitrates
// concurrent first calls; the loser re-reads the winner's row.
func (r *sqlReservationRepository) GetOrCreate(ctx context.Context, eventID, userID string) (*models.DraftReservation, error) {
	existing, err := r.FindByEventAndUser(ctx, eventID, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperrors.ErrReservationNotFound) {
		return nil, err
	}

	now := time.Now()
	draft := &models.DraftReservation{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.db.Insert("draft_reservations", dbx.Params{
		"id":         draft.ID,
		"event_id":   draft.EventID,
		"user_id":    draft.UserID,
		"seat_id":    draft.SeatID,
		"created_at": draft.CreatedAt,
		"updated_at": draft.UpdatedAt,
	}).WithContext(ctx).Execute()
	if err != nil {
		// Lost the unique-constraint race; the row exists now.
		if existing, findErr := r.FindByEventAndUser(ctx, eventID, userID); findErr == nil {
			return existing, nil
		}

		r.l.Errorf(ctx, "sqlReservationRepository.GetOrCreate: %v", err)
		return nil, err
	}

	return draft, nil
}

func (r *sqlReservationRepository) FindByEventAndUser(ctx context.Context, eventID, userID string) (*models.DraftReservation, error) {
	var d models.DraftReservation

	err := r.db.Select().
		From("draft_reservations").
		Where(dbx.HashExp{"event_id": eventID, "user_id": userID}).
		WithContext(ctx).
		One(&d)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrReservationNotFound
		}

		r.l.Errorf(ctx, "sqlReservationRepository.FindByEventAndUser: %v", err)
		return nil, err
	}

	return &d, nil
}

func (r *sqlReservationRepository) SetSeat(ctx context.Context, reservationID, seatID string) error {
	return r.updateSeat(ctx, reservationID, seatID)
}

func (r *sqlReservationRepository) ClearSeat(ctx context.Context, reservationID string) error {
	return r.updateSeat(ctx, reservationID, "")
}

func (r *sqlReservationRepository) updateSeat(ctx context.Context, reservationID, seatID string) error {
	res, err := r.db.Update("draft_reservations", dbx.Params{
		"seat_id":    seatID,
		"updated_at": time.Now(),
	}, dbx.HashExp{"id": reservationID}).WithContext(ctx).Execute()
	if err != nil {
		r.l.Errorf(ctx, "sqlReservationRepository.updateSeat: %v", err)
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrReservationNotFound
	}

	return nil
}
