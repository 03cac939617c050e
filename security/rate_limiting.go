package security

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ru-ticket/monitoring"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window request counter kept in Redis, keyed by
// scope and client IP.
type RateLimiter struct {
	redis  redis.Cmdable
	limit  int64
	window time.Duration
}

func NewRateLimiter(redisClient redis.Cmdable, perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &RateLimiter{redis: redisClient, limit: int64(perMinute), window: time.Minute}
}

// Allow counts one hit for key and reports whether it is within the limit.
// Redis errors fail open.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return true, fmt.Errorf("rate limit incr %s: %w", key, err)
	}
	if count == 1 {
		if err := r.redis.Expire(ctx, key, r.window).Err(); err != nil {
			return true, fmt.Errorf("rate limit expire %s: %w", key, err)
		}
	}
	return count <= r.limit, nil
}

// Limit returns middleware limiting requests per client IP for scope.
// Clients announcing themselves as crawlers are refused outright.
func (r *RateLimiter) Limit(scope string) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if isSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
			monitoring.TrackRateLimited(scope + ":bot")
			return e.JSON(http.StatusForbidden, map[string]string{"erro": "Acesso negado"})
		}

		key := fmt.Sprintf("ratelimit:%s:%s", scope, e.RealIP())
		allowed, err := r.Allow(e.Request.Context(), key)
		if err != nil {
			e.App.Logger().Warn("Rate limiter unavailable", "scope", scope, "error", err)
		}
		if !allowed {
			monitoring.TrackRateLimited(scope)
			e.Response.Header().Set("Retry-After", fmt.Sprintf("%d", int(r.window.Seconds())))
			return e.JSON(http.StatusTooManyRequests, map[string]string{
				"erro": "Muitas requisições. Tente novamente em instantes.",
			})
		}

		return e.Next()
	}
}

func isSuspiciousUserAgent(ua string) bool {
	ua = strings.ToLower(ua)
	for _, pattern := range []string{"bot", "crawler", "spider", "scraper"} {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
