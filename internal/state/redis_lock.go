package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPattern     = "dialogue:lock:%d"
	defaultLockTTL     = 5 * time.Second
	defaultLockRetry   = 20 * time.Millisecond
	lockReleaseTimeout = time.Second
)

// ErrStateLocked indicates that another replica held the conversation lock until ctx ended.
var ErrStateLocked = errors.New("state is locked, try again later")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker orders callers inside the process with a Sequencer and
// excludes other replicas with a SETNX key owned by a random token.
type RedisLocker struct {
	local  *Sequencer
	client redis.Cmdable
	log    *slog.Logger
	ttl    time.Duration
	retry  time.Duration
}

var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker builds a RedisLocker. Zero ttl or retry fall back to defaults.
func NewRedisLocker(client redis.Cmdable, log *slog.Logger, ttl, retry time.Duration) *RedisLocker {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if retry <= 0 {
		retry = defaultLockRetry
	}

	return &RedisLocker{
		local:  NewSequencer(),
		client: client,
		log:    log,
		ttl:    ttl,
		retry:  retry,
	}
}

// Lock takes the local turn first, then polls the Redis key until it is acquired.
func (l *RedisLocker) Lock(ctx context.Context, id ConversationID) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, id)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf(lockKeyPattern, int64(id))
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			unlockLocal()
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrStateLocked, ctx.Err())
			}
			l.log.Error("failed to acquire conversation lock", slog.String("conversation_id", id.String()), slog.Any("error", err))
			return nil, fmt.Errorf("acquire conversation lock: %w", err)
		}
		if acquired {
			break
		}

		select {
		case <-ctx.Done():
			unlockLocal()
			l.log.Warn("conversation lock still held by another replica", slog.String("conversation_id", id.String()))
			return nil, fmt.Errorf("%w: %v", ErrStateLocked, ctx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.release(ctx, key, token, id)
			unlockLocal()
		})
	}, nil
}

func (l *RedisLocker) release(ctx context.Context, key, token string, id ConversationID) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
	defer cancel()

	if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		l.log.Error("failed to release conversation lock", slog.String("conversation_id", id.String()), slog.Any("error", err))
	}
}
