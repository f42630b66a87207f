package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/ticketbottle-admission/pkg/logger"
)

// AdmissionCounts is the advisory per-event mirror: fast to read,
// allowed to drift, never consulted for correctness decisions.
type AdmissionCounts struct {
	Waiting int64 `json:"waiting"`
	Entered int64 `json:"entered"`
}

type CounterRepository interface {
	// SeedWaiting fully overwrites the event's mirror with the shuffled
	// waiting order.
	SeedWaiting(ctx context.Context, eventID string, userIDsByRank []string) error
	MoveToEntered(ctx context.Context, eventID, userID string) error
	RemoveEntered(ctx context.Context, eventID, userID string) error
	Counts(ctx context.Context, eventID string) (*AdmissionCounts, error)
	// WaitingAhead returns how many users sit before the given user in
	// the waiting mirror; -1 when the user is not in it.
	WaitingAhead(ctx context.Context, eventID, userID string) (int64, error)
}

type redisCounterRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisCounterRepository(cli *redis.Client, l logger.Logger) CounterRepository {
	return &redisCounterRepository{
		cli: cli,
		l:   l,
	}
}

func (r *redisCounterRepository) SeedWaiting(ctx context.Context, eventID string, userIDsByRank []string) error {
	wKey := r.waitingKey(eventID)
	eKey := r.enteredKey(eventID)

	members := make([]redis.Z, len(userIDsByRank))
	for i, userID := range userIDsByRank {
		members[i] = redis.Z{
			Score:  float64(i + 1),
			Member: userID,
		}
	}

	pipe := r.cli.TxPipeline()
	pipe.Del(ctx, wKey, eKey)
	if len(members) > 0 {
		pipe.ZAdd(ctx, wKey, members...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisCounterRepository.SeedWaiting: %v", err)
		return err
	}

	r.l.Debugf(ctx, "Seeded waiting mirror for event %s with %d users", eventID, len(userIDsByRank))

	return nil
}

func (r *redisCounterRepository) MoveToEntered(ctx context.Context, eventID, userID string) error {
	pipe := r.cli.TxPipeline()
	pipe.ZRem(ctx, r.waitingKey(eventID), userID)
	pipe.SAdd(ctx, r.enteredKey(eventID), userID)

	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisCounterRepository.MoveToEntered: %v", err)
		return err
	}

	return nil
}

func (r *redisCounterRepository) RemoveEntered(ctx context.Context, eventID, userID string) error {
	if err := r.cli.SRem(ctx, r.enteredKey(eventID), userID).Err(); err != nil {
		r.l.Errorf(ctx, "redisCounterRepository.RemoveEntered: %v", err)
		return err
	}

	return nil
}

func (r *redisCounterRepository) Counts(ctx context.Context, eventID string) (*AdmissionCounts, error) {
	pipe := r.cli.Pipeline()
	waitingCmd := pipe.ZCard(ctx, r.waitingKey(eventID))
	enteredCmd := pipe.SCard(ctx, r.enteredKey(eventID))

	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisCounterRepository.Counts: %v", err)
		return nil, err
	}

	return &AdmissionCounts{
		Waiting: waitingCmd.Val(),
		Entered: enteredCmd.Val(),
	}, nil
}

func (r *redisCounterRepository) WaitingAhead(ctx context.Context, eventID, userID string) (int64, error) {
	rank, err := r.cli.ZRank(ctx, r.waitingKey(eventID), userID).Result()
	if err != nil {
		if err == redis.Nil {
			return -1, nil // Not in the waiting mirror
		}

		r.l.Errorf(ctx, "redisCounterRepository.WaitingAhead: %v", err)
		return 0, err
	}

	return rank, nil
}

func (r *redisCounterRepository) waitingKey(eventID string) string {
	return fmt.Sprintf("admission:%s:waiting", eventID)
}

func (r *redisCounterRepository) enteredKey(eventID string) string {
	return fmt.Sprintf("admission:%s:entered", eventID)
}
