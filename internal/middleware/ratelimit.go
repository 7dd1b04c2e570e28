package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// now is a small indirection to allow test stubbing.
var now = time.Now

// window counts hits for one client until resetAt.
type window struct {
	hits    int
	resetAt time.Time
}

// RateLimiter is a fixed-window, in-memory limiter keyed by client IP.
// Expired windows are replaced lazily on the next hit or dropped by Purge.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	period  time.Duration
	windows map[string]window
	logger  *logrus.Logger
}

func NewRateLimiter(limit int, period time.Duration, logger *logrus.Logger) *RateLimiter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RateLimiter{
		limit:   limit,
		period:  period,
		windows: make(map[string]window),
		logger:  logger,
	}
}

// Allow records a hit for key and reports whether it is within the limit,
// how many hits remain and when the window resets.
func (l *RateLimiter) Allow(key string) (bool, int, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := now()
	w, ok := l.windows[key]
	if !ok || !ts.Before(w.resetAt) {
		w = window{resetAt: ts.Add(l.period)}
	}
	w.hits++
	l.windows[key] = w

	remaining := l.limit - w.hits
	if remaining < 0 {
		remaining = 0
	}
	return w.hits <= l.limit, remaining, w.resetAt
}

// Purge drops windows that have already reset.
func (l *RateLimiter) Purge() {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := now()
	for k, w := range l.windows {
		if !ts.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
}

// Len returns the number of tracked clients.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Handler limits requests per client IP and answers 429 once exhausted.
func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining, reset := l.Allow(c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			l.logger.WithFields(logrus.Fields{
				"client_ip": c.ClientIP(),
				"path":      c.FullPath(),
			}).Warn("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests, please try again later",
			})
			return
		}
		c.Next()
	}
}
