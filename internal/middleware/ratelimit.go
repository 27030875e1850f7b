package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per key (client IP). Buckets idle for
// longer than idleTTL are dropped.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*keyLimiter
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows burst requests per key, refilled evenly over window.
func NewRateLimiter(burst int, window time.Duration) *RateLimiter {
	rl := NewRateLimiterWithNow(burst, window, time.Now)
	go rl.cleanup()
	return rl
}

func NewRateLimiterWithNow(burst int, window time.Duration, now func() time.Time) *RateLimiter {
	limit := rate.Inf
	if burst > 0 && window > 0 {
		limit = rate.Every(window / time.Duration(burst))
	}
	idle := window
	if idle < time.Minute {
		idle = time.Minute
	}
	return &RateLimiter{
		limiters: make(map[string]*keyLimiter),
		limit:    limit,
		burst:    burst,
		idleTTL:  idle,
		now:      now,
	}
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.idleTTL)
	defer ticker.Stop()

	for range ticker.C {
		rl.sweep()
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, l := range rl.limiters {
		if now.Sub(l.lastSeen) > rl.idleTTL {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	l, ok := rl.limiters[key]
	if !ok {
		l = &keyLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = l
	}
	l.lastSeen = now
	return l.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) retryAfter() string {
	if rl.limit == rate.Inf || rl.limit <= 0 {
		return "1"
	}
	return strconv.Itoa(max(int(1/float64(rl.limit)), 1))
}

func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !rl.Allow(key) {
			c.Header("Retry-After", rl.retryAfter())
			c.JSON(http.StatusTooManyRequests, gin.H{"message": "Rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
