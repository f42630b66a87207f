package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pocketbase/dbx"
	apperrors "github.com/vogiaan1904/ticketbottle-admission/internal/errors"
	"github.com/vogiaan1904/ticketbottle-admission/internal/models"
	"github.com/vogiaan1904/ticketbottle-admission/pkg/logger"
)

type SeatRepository interface {
	BulkCreate(ctx context.Context, seats []*models.Seat) error
	Find(ctx context.Context, eventID, seatID string) (*models.Seat, error)
	FindByEvent(ctx context.Context, eventID string) ([]*models.Seat, error)

	// Conditional single-row transitions. The boolean reports whether
	// the row matched; false means the seat was not in the expected
	// state and the caller must re-read to disambiguate.
	Reserve(ctx context.Context, eventID, seatID, userID string) (bool, error)
	MarkSold(ctx context.Context, eventID, seatID string) (bool, error)
	Release(ctx context.Context, eventID, seatID string) (bool, error)
}

type sqlSeatRepository struct {
	db *dbx.DB
	l  logger.Logger
}

func NewSQLSeatRepository(db *dbx.DB, l logger.Logger) SeatRepository {
	return &sqlSeatRepository{
		db: db,
		l:  l,
	}
}

func (r *sqlSeatRepository) BulkCreate(ctx context.Context, seats []*models.Seat) error {
	err := r.db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
		for _, s := range seats {
			_, err := tx.Insert("seats", dbx.Params{
				"id":          s.ID,
				"event_id":    s.EventID,
				"code":        s.Code,
				"grade":       s.Grade,
				"price":       s.Price,
				"status":      s.Status,
				"reserved_by": s.ReservedBy,
				"created_at":  s.CreatedAt,
				"updated_at":  s.UpdatedAt,
			}).WithContext(ctx).Execute()
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.l.Errorf(ctx, "sqlSeatRepository.BulkCreate: %v", err)
		return err
	}

	return nil
}

func (r *sqlSeatRepository) Find(ctx context.Context, eventID, seatID string) (*models.Seat, error) {
	var s models.Seat

	err := r.db.Select().
		From("seats").
		Where(dbx.HashExp{"event_id": eventID, "id": seatID}).
		WithContext(ctx).
		One(&s)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrSeatNotFound
		}

		r.l.Errorf(ctx, "sqlSeatRepository.Find: %v", err)
		return nil, err
	}

	return &s, nil
}

func (r *sqlSeatRepository) FindByEvent(ctx context.Context, eventID string) ([]*models.Seat, error) {
	var seats []*models.Seat

	err := r.db.Select().
		From("seats").
		Where(dbx.HashExp{"event_id": eventID}).
		OrderBy("grade ASC", "code ASC").
		WithContext(ctx).
		All(&seats)
	if err != nil {
		r.l.Errorf(ctx, "sqlSeatRepository.FindByEvent: %v", err)
		return nil, err
	}

	return seats, nil
}

// Reserve flips AVAILABLE -> RESERVED in a single conditional update.
// The WHERE clause is the entire race arbiter: exactly one concurrent
// caller can match the AVAILABLE row.
func (r *sqlSeatRepository) Reserve(ctx context.Context, eventID, seatID, userID string) (bool, error) {
	return r.transition(ctx, eventID, seatID, dbx.Params{
		"status":      models.SeatStatusReserved,
		"reserved_by": userID,
	}, models.SeatStatusAvailable)
}

func (r *sqlSeatRepository) MarkSold(ctx context.Context, eventID, seatID string) (bool, error) {
	return r.transition(ctx, eventID, seatID, dbx.Params{
		"status": models.SeatStatusSold,
	}, models.SeatStatusReserved)
}

func (r *sqlSeatRepository) Release(ctx context.Context, eventID, seatID string) (bool, error) {
	return r.transition(ctx, eventID, seatID, dbx.Params{
		"status":      models.SeatStatusAvailable,
		"reserved_by": "",
	}, models.SeatStatusReserved)
}

func (r *sqlSeatRepository) transition(ctx context.Context, eventID, seatID string, params dbx.Params, from models.SeatStatus) (bool, error) {
	params["updated_at"] = time.Now()

	res, err := r.db.Update("seats", params, dbx.HashExp{
		"event_id": eventID,
		"id":       seatID,
		"status":   from,
	}).WithContext(ctx).Execute()
	if err != nil {
		r.l.Errorf(ctx, "sqlSeatRepository.transition: %v", err)
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}
