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

type QueueEntryRepository interface {
	BulkCreate(ctx context.Context, entries []*models.QueueEntry) error
	CountByEvent(ctx context.Context, eventID string) (int64, error)
	FindByEventAndUser(ctx context.Context, eventID, userID string) (*models.QueueEntry, error)
	FindByEvent(ctx context.Context, eventID string) ([]*models.QueueEntry, error)
	FindWaiting(ctx context.Context, eventID string, limit int) ([]*models.QueueEntry, error)
	FindOverdue(ctx context.Context, now time.Time) ([]*models.QueueEntry, error)
	MarkEntered(ctx context.Context, entryID string, enteredAt, expiresAt time.Time) (bool, error)
	MarkExpired(ctx context.Context, entryID string) (bool, error)
	MarkCompleted(ctx context.Context, entryID string) (bool, error)
}

type sqlQueueEntryRepository struct {
	db *dbx.DB
	l  logger.Logger
}

func NewSQLQueueEntryRepository(db *dbx.DB, l logger.Logger) QueueEntryRepository {
	return &sqlQueueEntryRepository{
		db: db,
		l:  l,
	}
}

// BulkCreate inserts the shuffled entries in one transaction so a
// partially written queue is never visible.
func (r *sqlQueueEntryRepository) BulkCreate(ctx context.Context, entries []*models.QueueEntry) error {
	err := r.db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
		for _, e := range entries {
			_, err := tx.Insert("queue_entries", dbx.Params{
				"id":         e.ID,
				"event_id":   e.EventID,
				"user_id":    e.UserID,
				"rank":       e.Rank,
				"status":     e.Status,
				"created_at": e.CreatedAt,
				"entered_at": e.EnteredAt,
				"expires_at": e.ExpiresAt,
			}).WithContext(ctx).Execute()
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.l.Errorf(ctx, "sqlQueueEntryRepository.BulkCreate: %v", err)
		return err
	}

	return nil
}

func (r *sqlQueueEntryRepository) CountByEvent(ctx context.Context, eventID string) (int64, error) {
	var count int64

	err := r.db.Select("COUNT(*)").
		From("queue_entries").
		Where(dbx.HashExp{"event_id": eventID}).
		WithContext(ctx).
		Row(&count)
	if err != nil {
		r.l.Errorf(ctx, "sqlQueueEntryRepository.CountByEvent: %v", err)
		return 0, err
	}

	return count, nil
}

func (r *sqlQueueEntryRepository) FindByEventAndUser(ctx context.Context, eventID, userID string) (*models.QueueEntry, error) {
	var e models.QueueEntry

	err := r.db.Select().
		From("queue_entries").
		Where(dbx.HashExp{"event_id": eventID, "user_id": userID}).
		WithContext(ctx).
		One(&e)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrEntryNotFound
		}

		r.l.Errorf(ctx, "sqlQueueEntryRepository.FindByEventAndUser: %v", err)
		return nil, err
	}

	return &e, nil
}

func (r *sqlQueueEntryRepository) FindByEvent(ctx context.Context, eventID string) ([]*models.QueueEntry, error) {
	var entries []*models.QueueEntry

	err := r.db.Select().
		From("queue_entries").
		Where(dbx.HashExp{"event_id": eventID}).
		OrderBy("rank ASC").
		WithContext(ctx).
		All(&entries)
	if err != nil {
		r.l.Errorf(ctx, "sqlQueueEntryRepository.FindByEvent: %v", err)
		return nil, err
	}

	return entries, nil
}

// FindWaiting returns the next WAITING entries in rank order. Rank only
// advises iteration order; racing batch runs may interleave.
func (r *sqlQueueEntryRepository) FindWaiting(ctx context.Context, eventID string, limit int) ([]*models.QueueEntry, error) {
	var entries []*models.QueueEntry

	err := r.db.Select().
		From("queue_entries").
		Where(dbx.HashExp{"event_id": eventID, "status": models.QueueEntryStatusWaiting}).
		OrderBy("rank ASC").
		Limit(int64(limit)).
		WithContext(ctx).
		All(&entries)
	if err != nil {
		r.l.Errorf(ctx, "sqlQueueEntryRepository.FindWaiting: %v", err)
		return nil, err
	}

	return entries, nil
}

// FindOverdue returns ENTERED entries whose deadline is strictly past.
func (r *sqlQueueEntryRepository) FindOverdue(ctx context.Context, now time.Time) ([]*models.QueueEntry, error) {
	var entries []*models.QueueEntry

	err := r.db.Select().
		From("queue_entries").
		Where(dbx.And(
			dbx.HashExp{"status": models.QueueEntryStatusEntered},
			dbx.NewExp("expires_at < {:now}", dbx.Params{"now": now}),
		)).
		OrderBy("expires_at ASC").
		WithContext(ctx).
		All(&entries)
	if err != nil {
		r.l.Errorf(ctx, "sqlQueueEntryRepository.FindOverdue: %v", err)
		return nil, err
	}

	return entries, nil
}

func (r *sqlQueueEntryRepository) MarkEntered(ctx context.Context, entryID string, enteredAt, expiresAt time.Time) (bool, error) {
	return r.transition(ctx, entryID, dbx.Params{
		"status":     models.QueueEntryStatusEntered,
		"entered_at": enteredAt,
		"expires_at": expiresAt,
	}, models.QueueEntryStatusWaiting)
}

func (r *sqlQueueEntryRepository) MarkExpired(ctx context.Context, entryID string) (bool, error) {
	return r.transition(ctx, entryID, dbx.Params{
		"status": models.QueueEntryStatusExpired,
	}, models.QueueEntryStatusEntered)
}

func (r *sqlQueueEntryRepository) MarkCompleted(ctx context.Context, entryID string) (bool, error) {
	return r.transition(ctx, entryID, dbx.Params{
		"status": models.QueueEntryStatusCompleted,
	}, models.QueueEntryStatusEntered)
}

// transition performs the forward-only status change as a conditional
// update; zero rows affected means the entry was not in the expected
// state and the caller lost the race.
func (r *sqlQueueEntryRepository) transition(ctx context.Context, entryID string, params dbx.Params, from models.QueueEntryStatus) (bool, error) {
	res, err := r.db.Update("queue_entries", params, dbx.HashExp{
		"id":     entryID,
		"status": from,
	}).WithContext(ctx).Execute()
	if err != nil {
		r.l.Errorf(ctx, "sqlQueueEntryRepository.transition: %v", err)
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}
