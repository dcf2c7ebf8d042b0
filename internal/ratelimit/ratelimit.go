// Package ratelimit enforces per-user daily quotas with Redis counters.
// All counting goes through INCR and DECR so concurrent requests never lose
// or double an increment.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vbonduro/domeok/internal/domain"
)

// Action names a quota bucket. Each action has its own daily limit.
type Action string

const (
	ActionRecipe  Action = "recipe"
	ActionReceipt Action = "receipt"
)

type Limiter struct {
	rdb    redis.Cmdable
	logger *slog.Logger
	now    func() time.Time
}

func NewLimiter(rdb redis.Cmdable, logger *slog.Logger) *Limiter {
	return &Limiter{rdb: rdb, logger: logger, now: time.Now}
}

// Key returns the counter key for userID and action on the local calendar day
// containing now.
func Key(action Action, userID string, now time.Time) string {
	return fmt.Sprintf("quota:%s:%s:%s", action, userID, now.Format("20060102"))
}

// UntilMidnight returns the whole seconds left until the next local midnight,
// never less than one second.
func UntilMidnight(now time.Time) time.Duration {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	left := midnight.Sub(now).Truncate(time.Second)
	if left < time.Second {
		return time.Second
	}
	return left
}

// CheckAndConsume takes one unit of today's quota and returns the count
// after the increment. The first increment of a day sets the key to expire
// at local midnight. Over the limit, the increment is undone and
// QuotaExceeded is returned.
func (l *Limiter) CheckAndConsume(ctx context.Context, userID string, action Action, limit int) (int64, error) {
	now := l.now()
	key := Key(action, userID, now)

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, domain.WrapError(domain.KindServiceUnavailable, "quota store unavailable", err)
	}

	if count == 1 {
		// Only the request that created the key sets its expiry.
		if err := l.rdb.Expire(ctx, key, UntilMidnight(now)).Err(); err != nil {
			l.logger.Error("failed to set quota expiry", "key", key, "error", err)
		}
	}

	if count > int64(limit) {
		if err := l.rdb.Decr(ctx, key).Err(); err != nil {
			l.logger.Error("failed to roll back quota increment", "key", key, "error", err)
		}
		l.logger.Info("daily quota exceeded", "user_id", userID, "action", string(action), "limit", limit)
		return 0, domain.NewError(domain.KindQuotaExceeded,
			fmt.Sprintf("daily %s limit of %d reached, try again tomorrow", action, limit))
	}
	return count, nil
}

// Remaining reports how many units of today's quota are left without
// consuming any.
func (l *Limiter) Remaining(ctx context.Context, userID string, action Action, limit int) (int64, error) {
	used, err := l.rdb.Get(ctx, Key(action, userID, l.now())).Int64()
	if errors.Is(err, redis.Nil) {
		return int64(limit), nil
	}
	if err != nil {
		return 0, domain.WrapError(domain.KindServiceUnavailable, "quota store unavailable", err)
	}
	return max(int64(limit)-used, 0), nil
}
