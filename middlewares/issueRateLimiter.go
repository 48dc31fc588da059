package middlewares

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Counter decides whether another request under key fits in the limit for
// the current window.
type Counter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

// RedisCounter counts requests in fixed windows shared by every instance.
// Every request counts, rejected ones included, until the window expires.
type RedisCounter struct {
	Client *redis.Client
}

func (r RedisCounter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	// Increment user's count with TTL
	count, err := r.Client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}

	// Set TTL only for the first increment (when count = 1)
	if count == 1 {
		if err := r.Client.Expire(ctx, key, window).Err(); err != nil {
			return false, 0, err
		}
	}

	if count > int64(limit) {
		retryAfter, err := r.Client.TTL(ctx, key).Result()
		if err != nil {
			return false, 0, err
		}
		return false, retryAfter, nil
	}
	return true, 0, nil
}

const maxLocalKeys = 10000

// LocalCounter is a per-process token bucket per key, used when Redis is
// not configured. A bucket holds limit tokens and refills one every
// window/limit; rejected requests do not take a token, so retryAfter is the
// wait for the next one rather than the end of a fixed window.
type LocalCounter struct {
	mu       sync.Mutex
	limiters map[string]*localLimiter
}

type localLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLocalCounter() *LocalCounter {
	return &LocalCounter{limiters: make(map[string]*localLimiter)}
}

func (l *LocalCounter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.limiters) >= maxLocalKeys {
		for k, v := range l.limiters {
			if now.Sub(v.lastSeen) > window {
				delete(l.limiters, k)
			}
		}
	}

	entry, ok := l.limiters[key]
	if !ok {
		entry = &localLimiter{
			limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
		}
		l.limiters[key] = entry
	}
	entry.lastSeen = now

	res := entry.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, window, nil
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}

// RateLimiter allows each authenticated user at most limit requests of the
// given scope per window. It must run after AuthMiddleware.
func RateLimiter(counter Counter, prefix, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(UserIDKey)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			c.Abort()
			return
		}

		// Create individual key for each user
		userKey := prefix + ":" + scope + ":" + userID

		allowed, retryAfter, err := counter.Allow(c.Request.Context(), userKey, limit, window)
		if err != nil {
			log.Printf("[%s] rate limiter error: %v", c.GetString(RequestIDKey), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "rate limiter unavailable"})
			c.Abort()
			return
		}

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
