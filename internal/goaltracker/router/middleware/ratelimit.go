package middleware

import (
	"math"
	"sync"
	"time"

	"github.com/SakuraBurst/goaltracker/internal/goaltracker/types"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// defaultMaxLimiters caps the number of tracked callers.
	defaultMaxLimiters = 10000
	maxIdleAfter       = 24 * time.Hour
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller.
type RateLimiter struct {
	limiters    map[string]*limiterEntry
	mu          sync.Mutex
	rate        rate.Limit
	burst       int
	maxLimiters int
	// idleAfter is how long a bucket takes to refill completely. Entries idle
	// for longer hold a full bucket and can be dropped without effect.
	idleAfter time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewRateLimiter(requestsPerSecond float64, burst int, logger *zap.Logger) *RateLimiter {
	idleAfter := maxIdleAfter
	if requestsPerSecond > 0 {
		refill := math.Min(float64(burst)/requestsPerSecond, maxIdleAfter.Seconds())
		idleAfter = max(time.Minute, time.Duration(refill*float64(time.Second)))
	}
	return &RateLimiter{
		limiters:    make(map[string]*limiterEntry),
		rate:        rate.Limit(requestsPerSecond),
		burst:       burst,
		maxLimiters: defaultMaxLimiters,
		idleAfter:   idleAfter,
		now:         time.Now,
		logger:      logger,
	}
}

// allow takes a token from key's bucket.
func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, exists := rl.limiters[key]
	if !exists {
		if len(rl.limiters) >= rl.maxLimiters {
			rl.evict(now)
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// evict drops entries whose buckets have refilled. When every tracked caller
// is still active, only the least recently seen one is dropped.
// Must be called with mu held.
func (rl *RateLimiter) evict(now time.Time) {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) >= rl.idleAfter {
			delete(rl.limiters, key)
			continue
		}
		if oldestKey == "" || entry.lastSeen.Before(oldest) {
			oldestKey, oldest = key, entry.lastSeen
		}
	}
	if len(rl.limiters) >= rl.maxLimiters && oldestKey != "" {
		delete(rl.limiters, oldestKey)
	}
}

// Handler limits by the authenticated user id, falling back to the client IP.
func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := UserID(c)
		if key == "" {
			key = c.IP()
		}
		if !rl.allow(key) {
			rl.logger.Warn("rate limit exceeded",
				zap.String("key", key),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
			)
			c.Status(fiber.StatusTooManyRequests)
			return c.JSON(types.Response{Success: false, Message: "too many requests", Error: "RATE_LIMITED"})
		}
		return c.Next()
	}
}
