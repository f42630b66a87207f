package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/ticketbottle-admission/pkg/logger"
)

// RedisLock provides cluster-wide mutual exclusion over a shared Redis
// instance with ShedLock-style hold bounds:
//
//   - atMostFor: the key's TTL. A crashed holder can block other
//     instances for at most this long.
//   - atLeastFor: the minimum time the lock stays held after a task
//     finishes, so a fast task on one node does not let a slightly
//     skewed clock on another node re-run the same unit of work.
//
// Only the instance that set the token may release or shorten the key.
type RedisLock struct {
	cli        *redis.Client
	atMostFor  time.Duration
	atLeastFor time.Duration
	l          logger.Logger
}

func New(cli *redis.Client, atMostFor, atLeastFor time.Duration, l logger.Logger) *RedisLock {
	return &RedisLock{
		cli:        cli,
		atMostFor:  atMostFor,
		atLeastFor: atLeastFor,
		l:          l,
	}
}

// releaseScript deletes the key only if the caller still owns it.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// shortenScript reduces the key's TTL to the remaining at-least-for
// window, again only if the caller still owns it.
var shortenScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	end
	return 0
`)

// ExecuteWithLock runs task while holding the named lock. It returns
// executed=false without error when another instance holds the lock;
// the task's own error is passed through when it ran.
func (r *RedisLock) ExecuteWithLock(ctx context.Context, name string, task func(ctx context.Context) error) (bool, error) {
	key := r.lockKey(name)
	token := uuid.NewString()

	ok, err := r.cli.SetNX(ctx, key, token, r.atMostFor).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %q: %w", name, err)
	}
	if !ok {
		r.l.Debugf(ctx, "lock %q held elsewhere, skipping", name)
		return false, nil
	}

	start := time.Now()
	defer r.release(ctx, name, key, token, start)

	return true, task(ctx)
}

func (r *RedisLock) release(ctx context.Context, name, key, token string, start time.Time) {
	held := time.Since(start)

	if remaining := r.atLeastFor - held; remaining > 0 {
		// Keep the lock alive for the rest of the at-least-for window
		// instead of deleting it.
		if err := shortenScript.Run(ctx, r.cli, []string{key}, token, remaining.Milliseconds()).Err(); err != nil {
			r.l.Errorf(ctx, "RedisLock.release: failed to shorten lock %q: %v", name, err)
		}
		return
	}

	if err := releaseScript.Run(ctx, r.cli, []string{key}, token).Err(); err != nil {
		r.l.Errorf(ctx, "RedisLock.release: failed to release lock %q: %v", name, err)
	}
}

func (r *RedisLock) lockKey(name string) string {
	return fmt.Sprintf("admission:lock:%s", name)
}
