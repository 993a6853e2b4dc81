// Package ratelimit throttles password guessing against a single account.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps backend failures. Callers may treat the check as
// passed.
var ErrUnavailable = errors.New("login limiter unavailable")

// LoginLimiter counts failed logins per key (normalized email).
type LoginLimiter interface {
	// Allow reports whether another attempt for key is permitted.
	Allow(ctx context.Context, key string) (bool, error)
	// Fail records a failed attempt.
	Fail(ctx context.Context, key string) error
	// Reset clears the counter after a successful login.
	Reset(ctx context.Context, key string) error
}

// Nop never throttles.
type Nop struct{}

func (Nop) Allow(context.Context, string) (bool, error) { return true, nil }
func (Nop) Fail(context.Context, string) error          { return nil }
func (Nop) Reset(context.Context, string) error         { return nil }

// RedisLimiter is a fixed window counter: the first failure starts a window
// of length window; once maxAttempts failures are counted inside it, Allow
// returns false until the key expires.
type RedisLimiter struct {
	redis       redis.UniversalClient
	maxAttempts int
	window      time.Duration
}

func NewRedisLimiter(client redis.UniversalClient, maxAttempts int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{redis: client, maxAttempts: maxAttempts, window: window}
}

func (l *RedisLimiter) key(k string) string {
	return "login:fail:" + k
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.redis.Get(ctx, l.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return true, nil
		}
		return true, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count < int64(l.maxAttempts), nil
}

func (l *RedisLimiter) Fail(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, l.key(key)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(key), l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
