// Package ratelimit throttles requests per actor with a Redis sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/teamspace-hq/teamspace/common/httputil"
	"github.com/teamspace-hq/teamspace/common/logging"
	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
	"github.com/teamspace-hq/teamspace/workspace/internal/metrics"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

// slidingWindow admits a request when fewer than limit requests were
// admitted in the last window. Members are unique so that two requests in
// the same nanosecond both count.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

	local current = redis.call('ZCARD', key)
	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('EXPIRE', key, ttl)
		return 1
	end
	return 0
`)

// RedisLimiter implements Limiter on Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter connects to Redis and checks the connection.
func NewRedisLimiter(ctx context.Context, opt *redis.Options, prefix string, limit int, window time.Duration) (*RedisLimiter, error) {
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return newRedisLimiter(client, prefix, limit, window), nil
}

func newRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

// Allow records one request for key and reports whether it is within the limit.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := r.now().UnixNano()
	windowStart := now - r.window.Nanoseconds()
	ttl := int64(r.window.Seconds()) + 1

	result, err := slidingWindow.Run(ctx, r.client,
		[]string{"ratelimit:" + r.prefix + ":" + key},
		now, windowStart, r.limit, ttl, strconv.FormatInt(now, 10)+"-"+uuid.NewString(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return result == 1, nil
}

func (r *RedisLimiter) Close() error {
	return r.client.Close()
}

// NoOpLimiter always allows requests.
type NoOpLimiter struct{}

func (NoOpLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

func (NoOpLimiter) Close() error { return nil }

// Middleware rejects requests over the limit with 429. Requests are keyed
// by the authenticated actor, or by client IP when there is none. Limiter
// failures let the request through.
func Middleware(limiter Limiter, retryAfter time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + httputil.GetClientIP(r)
			if actor, ok := execution.ActorFromContext(r.Context()); ok {
				key = "user:" + actor.ID
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable", logging.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				metrics.SearchRateLimited.Inc()
				httputil.WriteTooManyRequests(w, int(retryAfter.Seconds()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
