// Package middleware - request rate limiting.
//
// Fixed-window counter with in-memory buckets. Good enough for a single API
// node; a multi-node deployment should move the counters to redis.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitConfig configures one limiter.
type RateLimitConfig struct {
	Limit   int
	Window  time.Duration
	KeyFunc func(*gin.Context) string
}

// DefaultRateLimitConfig limits by client IP.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		Limit:  100,
		Window: time.Minute,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	}
}

type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	config  *RateLimitConfig
}

type bucket struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(config *RateLimitConfig) *rateLimiter {
	rl := &rateLimiter{
		buckets: make(map[string]*bucket),
		config:  config,
	}
	go rl.cleanup()
	return rl
}

func (rl *rateLimiter) allow(key string) (bool, int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, exists := rl.buckets[key]

	if !exists || now.Sub(b.lastReset) >= rl.config.Window {
		rl.buckets[key] = &bucket{tokens: rl.config.Limit - 1, lastReset: now}
		return true, rl.config.Limit - 1, rl.config.Window
	}

	retryAfter := rl.config.Window - now.Sub(b.lastReset)
	if b.tokens <= 0 {
		return false, 0, retryAfter
	}
	b.tokens--
	return true, b.tokens, retryAfter
}

func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.Window * 2)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, b := range rl.buckets {
			if now.Sub(b.lastReset) > rl.config.Window*2 {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimit enforces the configured limit and sets X-RateLimit-* headers.
func RateLimit(config *RateLimitConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultRateLimitConfig()
	}

	limiter := newRateLimiter(config)

	return func(c *gin.Context) {
		key := config.KeyFunc(c)
		allowed, remaining, retryAfter := limiter.allow(key)

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(time.Now().Add(retryAfter).Unix())))

		if !allowed {
			retrySeconds := int(retryAfter.Seconds())
			if retrySeconds < 1 {
				retrySeconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(retrySeconds))

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":        "TOO_MANY_REQUESTS",
					"message":     "Rate limit exceeded, please try again later",
					"retry_after": retrySeconds,
				},
				"request_id": GetRequestID(c),
				"timestamp":  time.Now().UTC(),
			})
			return
		}

		c.Next()
	}
}

// PurchaseRateLimit throttles purchase endpoints per user. Tighter than the
// general limit since each request can move money.
func PurchaseRateLimit() gin.HandlerFunc {
	return RateLimit(&RateLimitConfig{
		Limit:  20,
		Window: time.Minute,
		KeyFunc: func(c *gin.Context) string {
			if userID := GetAuthUserID(c); userID.String() != "00000000-0000-0000-0000-000000000000" {
				return "user:" + userID.String()
			}
			return "ip:" + c.ClientIP()
		},
	})
}

// PinRateLimit throttles PIN validation attempts on top of the wallet-level
// attempt counter.
func PinRateLimit() gin.HandlerFunc {
	return RateLimit(&RateLimitConfig{
		Limit:  10,
		Window: time.Minute,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP() + ":" + c.Request.URL.Path
		},
	})
}
