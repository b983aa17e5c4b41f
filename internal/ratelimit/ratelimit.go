// Package ratelimit provides a redis-backed fixed-window request limiter
// for the REST adapter. When no redis address is configured the limiter is
// nil and every request is allowed; the engine never requires redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts requests per key in fixed windows.
type Limiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides time for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithPrefix namespaces the limiter's redis keys.
func WithPrefix(prefix string) Option {
	return func(l *Limiter) { l.prefix = prefix }
}

// New connects to redis and returns a limiter allowing limit requests per
// window per key.
func New(addr string, limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		rdb:    redis.NewClient(&redis.Options{Addr: addr}),
		limit:  limit,
		window: window,
		prefix: "nile:ratelimit",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether the key may make another request in the current
// window. Redis being unreachable fails open: availability over strictness.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	redisKey := l.bucketKey(key, l.now())

	count, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		// First hit in the window owns the expiry.
		l.rdb.Expire(ctx, redisKey, l.window)
	}
	return count <= int64(l.limit)
}

// Close releases the redis connection.
func (l *Limiter) Close() error { return l.rdb.Close() }

// bucketKey derives the fixed-window redis key for a client key at a given
// time. Exported behavior is covered by tests via the clock option.
func (l *Limiter) bucketKey(key string, at time.Time) string {
	bucket := at.UnixNano() / int64(l.window)
	return fmt.Sprintf("%s:%s:%d", l.prefix, key, bucket)
}
