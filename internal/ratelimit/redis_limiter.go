package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// RedisLimiter implements Limiter using Redis sorted sets and a sliding window,
// so every replica shares the same budget.
type RedisLimiter struct {
	client redis.Cmdable
	log    *slog.Logger
	now    func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client redis.Cmdable, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{
		client: client,
		log:    log,
		now:    time.Now,
	}
}

// Allow adds the request to the window and withdraws it again when the window was already full.
func (l *RedisLimiter) Allow(ctx context.Context, key string, rule Rule) (Result, error) {
	if err := rule.validate(); err != nil {
		return Result{}, err
	}

	now := l.now()
	redisKey := redisKeyPrefix + key
	member := uuid.NewString()
	cutoff := now.Add(-rule.Window).UnixMilli()

	var (
		countCmd  *redis.IntCmd
		oldestCmd *redis.ZSliceCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(cutoff, 10))
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMilli()), Member: member})
		countCmd = pipe.ZCard(ctx, redisKey)
		oldestCmd = pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
		pipe.PExpire(ctx, redisKey, rule.Window)
		return nil
	})
	if err != nil {
		l.log.Error("rate limiter pipeline failed", slog.String("key", key), slog.Any("error", err))
		return Result{}, fmt.Errorf("rate limit check: %w", err)
	}

	count := int(countCmd.Val())
	if count <= rule.Limit {
		return Result{Allowed: true, Remaining: rule.Limit - count}, nil
	}

	// rejected requests must not extend the window
	if err := l.client.ZRem(ctx, redisKey, member).Err(); err != nil {
		l.log.Warn("failed to withdraw rejected request", slog.String("key", key), slog.Any("error", err))
	}

	retryAfter := rule.Window
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		retryAfter = time.UnixMilli(int64(oldest[0].Score)).Add(rule.Window).Sub(now)
	}

	return Result{Allowed: false, RetryAfter: retryAfter}, nil
}
