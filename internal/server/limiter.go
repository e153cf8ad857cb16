package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/time/rate"
)

// KeyFunc extracts the rate limit key from a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// RateLimiter allows each key a burst of Max requests, refilled evenly over window.
//
// State lives in process memory and is lost on restart.
type RateLimiter struct {
	burst  int
	window time.Duration
	every  rate.Limit
	now    func() time.Time

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a [RateLimiter] from a configured [shared.Limit].
func NewRateLimiter(limit shared.Limit) *RateLimiter {
	burst, window := limit.Max, limit.Window.Duration
	if burst <= 0 {
		burst = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	return &RateLimiter{
		burst:   burst,
		window:  window,
		every:   rate.Every(window / time.Duration(burst)),
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// Allow reports whether key may make another request now.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.every, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now

	return c.limiter.AllowN(now, 1)
}

// sweep drops keys idle for a full window, whose buckets have refilled anyway.
func (l *RateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now

	for key, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.window {
			delete(l.clients, key)
		}
	}
}

// Middleware rejects requests over the limit with a 429 JSON body.
func (l *RateLimiter) Middleware(key KeyFunc) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k != "" && !l.Allow(k) {
				w.Header().Set("Retry-After", strconv.Itoa(int(l.window/time.Duration(l.burst)/time.Second)))
				writeJSON(w, http.StatusTooManyRequests, map[string]any{
					"message": "Too many requests.",
					"status":  http.StatusTooManyRequests,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ByIP keys requests by client address.
func ByIP(r *http.Request) string {
	return clientIP(r)
}
