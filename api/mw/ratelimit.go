package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

func ClientIP(c *gin.Context) string { return c.ClientIP() }

// limiterSet hands out one token bucket per key.
type limiterSet struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

func newLimiterSet(r rate.Limit, b int) *limiterSet {
	return &limiterSet{limiters: make(map[string]*rate.Limiter), r: r, b: b}
}

func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(s.r, s.b)
		s.limiters[key] = l
	}
	return l
}

// RateLimiter rejects requests over r per second (burst b) per client IP.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	return RateLimiterBy(r, b, ClientIP)
}

// RateLimiterBy is RateLimiter with a custom bucket key. An empty key falls
// back to the client IP.
func RateLimiterBy(r rate.Limit, b int, key KeyFunc) gin.HandlerFunc {
	set := newLimiterSet(r, b)
	return func(c *gin.Context) {
		k := key(c)
		if k == "" {
			k = c.ClientIP()
		}
		if !set.get(k).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
