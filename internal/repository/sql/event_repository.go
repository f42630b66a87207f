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

type EventRepository interface {
	Create(ctx context.Context, e *models.Event) error
	Find(ctx context.Context, eventID string) (*models.Event, error)
	FindByStatus(ctx context.Context, status models.EventStatus) ([]*models.Event, error)
	FindWithFutureTransition(ctx context.Context, now time.Time) ([]*models.Event, error)
	AdvanceStatus(ctx context.Context, eventID string, to models.EventStatus) (bool, error)
	UpdateSchedule(ctx context.Context, e *models.Event) error
	Delete(ctx context.Context, eventID string) error
}

type sqlEventRepository struct {
	db *dbx.DB
	l  logger.Logger
}

func NewSQLEventRepository(db *dbx.DB, l logger.Logger) EventRepository {
	return &sqlEventRepository{
		db: db,
		l:  l,
	}
}

func (r *sqlEventRepository) Create(ctx context.Context, e *models.Event) error {
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := r.db.Insert(e.TableName(), dbx.Params{
		"id":              e.ID,
		"name":            e.Name,
		"status":          e.Status,
		"pre_open_at":     e.PreOpenAt,
		"pre_close_at":    e.PreCloseAt,
		"ticket_open_at":  e.TicketOpenAt,
		"ticket_close_at": e.TicketCloseAt,
		"created_at":      e.CreatedAt,
		"updated_at":      e.UpdatedAt,
	}).WithContext(ctx).Execute()
	if err != nil {
		r.l.Errorf(ctx, "sqlEventRepository.Create: %v", err)
		return err
	}

	return nil
}

func (r *sqlEventRepository) Find(ctx context.Context, eventID string) (*models.Event, error) {
	var e models.Event

	err := r.db.Select().
		From(e.TableName()).
		Where(dbx.HashExp{"id": eventID}).
		WithContext(ctx).
		One(&e)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrEventNotFound
		}

		r.l.Errorf(ctx, "sqlEventRepository.Find: %v", err)
		return nil, err
	}

	return &e, nil
}

func (r *sqlEventRepository) FindByStatus(ctx context.Context, status models.EventStatus) ([]*models.Event, error) {
	var events []*models.Event

	err := r.db.Select().
		From("events").
		Where(dbx.HashExp{"status": status}).
		OrderBy("ticket_open_at ASC").
		WithContext(ctx).
		All(&events)
	if err != nil {
		r.l.Errorf(ctx, "sqlEventRepository.FindByStatus: %v", err)
		return nil, err
	}

	return events, nil
}

func (r *sqlEventRepository) FindWithFutureTransition(ctx context.Context, now time.Time) ([]*models.Event, error) {
	var events []*models.Event

	err := r.db.Select().
		From("events").
		Where(dbx.Or(
			dbx.NewExp("pre_open_at > {:now}", dbx.Params{"now": now}),
			dbx.NewExp("pre_close_at > {:now}", dbx.Params{"now": now}),
			dbx.NewExp("ticket_open_at > {:now}", dbx.Params{"now": now}),
			dbx.NewExp("ticket_close_at > {:now}", dbx.Params{"now": now}),
		)).
		OrderBy("ticket_open_at ASC").
		WithContext(ctx).
		All(&events)
	if err != nil {
		r.l.Errorf(ctx, "sqlEventRepository.FindWithFutureTransition: %v", err)
		return nil, err
	}

	return events, nil
}

// AdvanceStatus moves the event forward to the target status. The
// conditional update only matches statuses with a lower rank, so the
// lifecycle never regresses no matter how late a timer fires.
func (r *sqlEventRepository) AdvanceStatus(ctx context.Context, eventID string, to models.EventStatus) (bool, error) {
	before := models.StatusesBefore(to)
	allowed := make([]any, len(before))
	for i, s := range before {
		allowed[i] = s
	}

	res, err := r.db.Update("events", dbx.Params{
		"status":     to,
		"updated_at": time.Now(),
	}, dbx.And(
		dbx.HashExp{"id": eventID},
		dbx.In("status", allowed...),
	)).WithContext(ctx).Execute()
	if err != nil {
		r.l.Errorf(ctx, "sqlEventRepository.AdvanceStatus: %v", err)
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func (r *sqlEventRepository) UpdateSchedule(ctx context.Context, e *models.Event) error {
	e.UpdatedAt = time.Now()

	res, err := r.db.Update("events", dbx.Params{
		"name":            e.Name,
		"pre_open_at":     e.PreOpenAt,
		"pre_close_at":    e.PreCloseAt,
		"ticket_open_at":  e.TicketOpenAt,
		"ticket_close_at": e.TicketCloseAt,
		"updated_at":      e.UpdatedAt,
	}, dbx.HashExp{"id": e.ID}).WithContext(ctx).Execute()
	if err != nil {
		r.l.Errorf(ctx, "sqlEventRepository.UpdateSchedule: %v", err)
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrEventNotFound
	}

	return nil
}

func (r *sqlEventRepository) Delete(ctx context.Context, eventID string) error {
	_, err := r.db.Delete("events", dbx.HashExp{"id": eventID}).WithContext(ctx).Execute()
	if err != nil {
		r.l.Errorf(ctx, "sqlEventRepository.Delete: %v", err)
		return err
	}

	return nil
}
