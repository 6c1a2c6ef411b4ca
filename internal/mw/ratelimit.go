package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ClientRateLimiter keeps one token bucket per client key.
type ClientRateLimiter struct {
	clients map[string]*rate.Limiter
	mu      sync.RWMutex
	r       rate.Limit
	b       int
}

// NewClientRateLimiter creates a limiter allowing r requests per second with burst b.
func NewClientRateLimiter(r rate.Limit, b int) *ClientRateLimiter {
	return &ClientRateLimiter{
		clients: make(map[string]*rate.Limiter),
		r:       r,
		b:       b,
	}
}

// Limiter returns the bucket for key, creating it on first use.
func (l *ClientRateLimiter) Limiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.clients[key]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, exists = l.clients[key]; !exists {
		limiter = rate.NewLimiter(l.r, l.b)
		l.clients[key] = limiter
	}
	return limiter
}

// clientKey identifies the caller: the authenticated technician when known,
// otherwise the client IP.
func clientKey(c *gin.Context) string {
	if id, ok := AuthUserID(c); ok && id != "" {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}

// RateLimiter is a middleware for per-client rate limiting.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewClientRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.Limiter(clientKey(c)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
