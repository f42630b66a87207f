package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vogiaan1904/ticketbottle-admission/internal/models"
	redisrepo "github.com/vogiaan1904/ticketbottle-admission/internal/repository/redis"
	sqlrepo "github.com/vogiaan1904/ticketbottle-admission/internal/repository/sql"
	"github.com/vogiaan1904/ticketbottle-admission/pkg/logger"
)

// localLocker runs tasks inline under an in-process mutex per name,
// mirroring the cluster lock's contract: busy means executed=false.
type localLocker struct {
	mu    sync.Mutex
	held  map[string]bool
	calls []string
}

func newLocalLocker() *localLocker {
	return &localLocker{held: make(map[string]bool)}
}

func (l *localLocker) ExecuteWithLock(ctx context.Context, name string, task func(ctx context.Context) error) (bool, error) {
	l.mu.Lock()
	if l.held[name] {
		l.mu.Unlock()
		return false, nil
	}
	l.held[name] = true
	l.calls = append(l.calls, name)
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.held[name] = false
		l.mu.Unlock()
	}()

	return true, task(ctx)
}

func (l *localLocker) lockNames() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// memCounter is an in-memory stand-in for the Redis mirror.
type memCounter struct {
	mu      sync.Mutex
	waiting map[string][]string
	entered map[string]map[string]bool
	seedErr error
}

func newMemCounter() *memCounter {
	return &memCounter{
		waiting: make(map[string][]string),
		entered: make(map[string]map[string]bool),
	}
}

func (c *memCounter) SeedWaiting(_ context.Context, eventID string, userIDsByRank []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seedErr != nil {
		return c.seedErr
	}
	c.waiting[eventID] = append([]string(nil), userIDsByRank...)
	c.entered[eventID] = make(map[string]bool)
	return nil
}

func (c *memCounter) MoveToEntered(_ context.Context, eventID, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rest := c.waiting[eventID][:0]
	for _, id := range c.waiting[eventID] {
		if id != userID {
			rest = append(rest, id)
		}
	}
	c.waiting[eventID] = rest
	if c.entered[eventID] == nil {
		c.entered[eventID] = make(map[string]bool)
	}
	c.entered[eventID][userID] = true
	return nil
}

func (c *memCounter) RemoveEntered(_ context.Context, eventID, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entered[eventID], userID)
	return nil
}

func (c *memCounter) Counts(_ context.Context, eventID string) (*redisrepo.AdmissionCounts, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &redisrepo.AdmissionCounts{
		Waiting: int64(len(c.waiting[eventID])),
		Entered: int64(len(c.entered[eventID])),
	}, nil
}

func (c *memCounter) WaitingAhead(_ context.Context, eventID, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, id := range c.waiting[eventID] {
		if id == userID {
			return int64(i), nil
		}
	}
	return -1, nil
}

// deps bundles everything the service tests wire over one in-memory
// SQLite database.
type deps struct {
	db               *dbx.DB
	eventRepo        sqlrepo.EventRepository
	entryRepo        sqlrepo.QueueEntryRepository
	seatRepo         sqlrepo.SeatRepository
	reservationRepo  sqlrepo.ReservationRepository
	registrationRepo sqlrepo.RegistrationRepository
	counter          *memCounter
	locker           *localLocker
	l                logger.Logger
}

func newDeps(t *testing.T) *deps {
	t.Helper()

	db, err := dbx.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	db.DB().SetMaxOpenConns(1)
	require.NoError(t, sqlrepo.Bootstrap(context.Background(), db))
	t.Cleanup(func() { _ = db.Close() })

	l := logger.InitializeTestZapLogger()

	return &deps{
		db:               db,
		eventRepo:        sqlrepo.NewSQLEventRepository(db, l),
		entryRepo:        sqlrepo.NewSQLQueueEntryRepository(db, l),
		seatRepo:         sqlrepo.NewSQLSeatRepository(db, l),
		reservationRepo:  sqlrepo.NewSQLReservationRepository(db, l),
		registrationRepo: sqlrepo.NewSQLRegistrationRepository(db, l),
		counter:          newMemCounter(),
		locker:           newLocalLocker(),
		l:                l,
	}
}

func (d *deps) createEvent(t *testing.T, status models.EventStatus, ticketOpenAt time.Time) *models.Event {
	t.Helper()

	now := time.Now()
	event := &models.Event{
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
	require.NoError(t, d.eventRepo.Create(context.Background(), event))

	return event
}
