package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"retailpos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const purgeInterval = 5 * time.Minute

// rateEntry tracks request counts per IP within a fixed window.
type rateEntry struct {
	count     int
	windowEnd time.Time
}

// RateLimiter is a per-IP fixed-window limiter. Limits are per instance.
type RateLimiter struct {
	limit   int
	window  time.Duration
	mu      sync.Mutex
	entries map[string]*rateEntry
	now     func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		entries: make(map[string]*rateEntry),
		now:     time.Now,
	}
}

// allow records one hit for ip and reports whether it is within the limit,
// plus the end of the current window.
func (l *RateLimiter) allow(ip string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[ip]
	if !ok || now.After(entry.windowEnd) {
		entry = &rateEntry{windowEnd: now.Add(l.window)}
		l.entries[ip] = entry
	}
	entry.count++
	return entry.count <= l.limit, entry.windowEnd
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, windowEnd := l.allow(c.ClientIP())
		if !ok {
			retry := int(time.Until(windowEnd).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.WithCode("RATE_LIMITED", "too many requests, retry shortly"))
			return
		}
		c.Next()
	}
}

// RunPurge drops expired entries every few minutes until ctx is done.
func (l *RateLimiter) RunPurge(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.purge(); n > 0 {
				log.Debug().Int("purged", n).Msg("rate limiter entries purged")
			}
		}
	}
}

func (l *RateLimiter) purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	purged := 0
	for ip, entry := range l.entries {
		if now.After(entry.windowEnd) {
			delete(l.entries, ip)
			purged++
		}
	}
	return purged
}
