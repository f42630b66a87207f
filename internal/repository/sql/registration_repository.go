package repository

import (
	"context"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/vogiaan1904/ticketbottle-admission/pkg/logger"
)

// RegistrationRepository holds the pre-registration roster the shuffle
// draws from. Registration itself happens upstream; this service only
// reads the roster back.
type RegistrationRepository interface {
	Register(ctx context.Context, eventID, userID string) error
	ListUserIDs(ctx context.Context, eventID string) ([]string, error)
}

type sqlRegistrationRepository struct {
	db *dbx.DB
	l  logger.Logger
}

func NewSQLRegistrationRepository(db *dbx.DB, l logger.Logger) RegistrationRepository {
	return &sqlRegistrationRepository{
		db: db,
		l:  l,
	}
}

func (r *sqlRegistrationRepository) Register(ctx context.Context, eventID, userID string) error {
	_, err := r.db.NewQuery(
		`INSERT OR IGNORE INTO registrations (event_id, user_id, created_at)
		 VALUES ({:eventID}, {:userID}, {:now})`,
	).Bind(dbx.Params{
		"eventID": eventID,
		"userID":  userID,
		"now":     time.Now(),
	}).WithContext(ctx).Execute()
	if err != nil {
		r.l.Errorf(ctx, "sqlRegistrationRepository.Register: %v", err)
		return err
	}

	return nil
}

func (r *sqlRegistrationRepository) ListUserIDs(ctx context.Context, eventID string) ([]string, error) {
	var userIDs []string

	err := r.db.Select("user_id").
		From("registrations").
		Where(dbx.HashExp{"event_id": eventID}).
		OrderBy("created_at ASC", "user_id ASC").
		WithContext(ctx).
		Column(&userIDs)
	if err != nil {
		r.l.Errorf(ctx, "sqlRegistrationRepository.ListUserIDs: %v", err)
		return nil, err
	}

	return userIDs, nil
}
