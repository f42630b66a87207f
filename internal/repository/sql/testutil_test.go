package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vogiaan1904/ticketbottle-admission/internal/models"
	"github.com/vogiaan1904/ticketbottle-admission/pkg/logger"
)

func newTestDB(t *testing.T) *dbx.DB {
	t.Helper()

	db, err := dbx.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	// One connection: every handle sees the same in-memory database
	// and concurrent writers queue instead of failing with SQLITE_BUSY.
	db.DB().SetMaxOpenConns(1)

	require.NoError(t, Bootstrap(context.Background(), db))

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func newTestEvent(status models.EventStatus, ticketOpenAt time.Time) *models.Event {
	now := time.Now()
	return &models.Event{
		ID:            uuid.NewString(),
		Name:          "test event",
		Status:        status,
		PreOpenAt:     ticketOpenAt.Add(-2 * time.Hour),
		PreCloseAt:    ticketOpenAt.Add(-1 * time.Hour),
		TicketOpenAt:  ticketOpenAt,
		TicketCloseAt: ticketOpenAt.Add(1 * time.Hour),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func testLogger() logger.Logger {
	return logger.InitializeTestZapLogger()
}
