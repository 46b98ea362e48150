package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig is a fixed window limit: at most RequestsPerWindow requests
// per caller within Window.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	KeyPrefix         string
}

// rateLimitSubject is the authenticated user when there is one, otherwise the
// remote host without its port
func rateLimitSubject(r *http.Request) string {
	if userID, ok := GetUserID(r.Context()); ok {
		return "user:" + userID.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// countHit records one request in the window stored at key and returns the
// count so far and the time left in the window.
func countHit(ctx context.Context, rdb *redis.Client, key string, window time.Duration) (int64, time.Duration, error) {
	var (
		count *redis.IntCmd
		ttl   *redis.DurationCmd
	)
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, window)
		count = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return count.Val(), ttl.Val(), nil
}

// RateLimitMiddleware limits callers with a Redis backed counter. When Redis
// is unreachable requests are let through.
func RateLimitMiddleware(rdb *redis.Client, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	limit := strconv.Itoa(config.RequestsPerWindow)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := rateLimitSubject(r)
			key := config.KeyPrefix + ":" + subject

			count, ttl, err := countHit(r.Context(), rdb, key, config.Window)
			if err != nil {
				logger.Error("Rate limiter unavailable", zap.Error(err), zap.String("key", key))
				next.ServeHTTP(w, r)
				return
			}
			if ttl <= 0 {
				ttl = config.Window
			}

			remaining := int64(config.RequestsPerWindow) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count <= int64(config.RequestsPerWindow) {
				next.ServeHTTP(w, r)
				return
			}

			logger.Warn("Rate limit exceeded",
				zap.String("subject", subject),
				zap.Int64("count", count),
				zap.Int("limit", config.RequestsPerWindow),
			)

			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
			RespondWithError(w, http.StatusTooManyRequests, "Too Many Attempts.")
		})
	}
}
