package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/vogiaan1904/ticketbottle-admission/internal/models"
	redisrepo "github.com/vogiaan1904/ticketbottle-admission/internal/repository/redis"
	sqlrepo "github.com/vogiaan1904/ticketbottle-admission/internal/repository/sql"
	"github.com/vogiaan1904/ticketbottle-admission/pkg/logger"
)

// ShuffleService turns the registered roster of an event into a
// randomized queue. Ranks are a uniform random permutation, assigned
// once; a queue that already exists is never reshuffled.
type ShuffleService interface {
	TriggerShuffle(ctx context.Context, eventID string) error
}

type shuffleService struct {
	eventRepo        sqlrepo.EventRepository
	entryRepo        sqlrepo.QueueEntryRepository
	registrationRepo sqlrepo.RegistrationRepository
	counterRepo      redisrepo.CounterRepository
	locker           Locker
	l                logger.Logger
}

func NewShuffleService(
	eventRepo sqlrepo.EventRepository,
	entryRepo sqlrepo.QueueEntryRepository,
	registrationRepo sqlrepo.RegistrationRepository,
	counterRepo redisrepo.CounterRepository,
	locker Locker,
	l logger.Logger,
) ShuffleService {
	return &shuffleService{
		eventRepo:        eventRepo,
		entryRepo:        entryRepo,
		registrationRepo: registrationRepo,
		counterRepo:      counterRepo,
		locker:           locker,
		l:                l,
	}
}

func (s *shuffleService) TriggerShuffle(ctx context.Context, eventID string) error {
	if _, err := s.eventRepo.Find(ctx, eventID); err != nil {
		return err
	}

	executed, err := s.locker.ExecuteWithLock(ctx, "shuffle:"+eventID, func(ctx context.Context) error {
		return s.shuffle(ctx, eventID)
	})
	if err != nil {
		return err
	}
	if !executed {
		s.l.Infof(ctx, "Shuffle for event %s already running elsewhere, skipping", eventID)
	}

	return nil
}

func (s *shuffleService) shuffle(ctx context.Context, eventID string) error {
	// Idempotency gate: an existing queue means a previous shuffle
	// already committed, even a crashed one that got this far.
	count, err := s.entryRepo.CountByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to count queue entries: %w", err)
	}
	if count > 0 {
		s.l.Infof(ctx, "Queue for event %s already built (%d entries), skipping shuffle", eventID, count)
		return nil
	}

	userIDs, err := s.registrationRepo.ListUserIDs(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to load registrations: %w", err)
	}
	if len(userIDs) == 0 {
		s.l.Warnf(ctx, "No registrations for event %s, queue left empty", eventID)
		return nil
	}

	rand.Shuffle(len(userIDs), func(i, j int) {
		userIDs[i], userIDs[j] = userIDs[j], userIDs[i]
	})

	now := time.Now()
	entries := make([]*models.QueueEntry, 0, len(userIDs))
	for i, userID := range userIDs {
		entries = append(entries, &models.QueueEntry{
			ID:        uuid.NewString(),
			EventID:   eventID,
			UserID:    userID,
			Rank:      i + 1,
			Status:    models.QueueEntryStatusWaiting,
			CreatedAt: now,
		})
	}

	if err := s.entryRepo.BulkCreate(ctx, entries); err != nil {
		return fmt.Errorf("failed to persist shuffled queue: %w", err)
	}

	// Mirror is advisory; a failed seed only degrades position lookups.
	if err := s.counterRepo.SeedWaiting(ctx, eventID, userIDs); err != nil {
		s.l.Errorf(ctx, "shuffleService.shuffle: seed waiting mirror: %v", err)
	}

	s.l.Infof(ctx, "Shuffled queue built for event %s: %d entries", eventID, len(entries))

	return nil
}
