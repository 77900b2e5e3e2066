package api

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/clubpulse/clubpulse-data/internal/api/respond"
)

// --------------------------------------------------------------------------
// Request timing middleware
// --------------------------------------------------------------------------

// TimingMiddleware adds X-Process-Time header to all responses.
func TimingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		elapsed := time.Since(start)
		w.Header().Set("X-Process-Time", fmt.Sprintf("%.2fms", float64(elapsed.Microseconds())/1000.0))
	})
}

// --------------------------------------------------------------------------
// Rate limiting middleware (actor-keyed token bucket)
// --------------------------------------------------------------------------

// A whole club answers presence pings from the same clubhouse network, so
// IP-only buckets would let the parents starve the coach logging a live
// match. Identified actors get their own bucket; only anonymous traffic
// shares the per-IP one. Admin actors bypass the limiter.

type clientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newClientLimiter(requestsPerWindow int, window time.Duration) *clientLimiter {
	rps := float64(requestsPerWindow) / window.Seconds()
	return &clientLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    requestsPerWindow / 2,
	}
}

func (l *clientLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, exists := l.limiters[key]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters[key] = limiter
	return limiter
}

// limitKey picks the bucket for a request: the acting user when identified,
// the client IP otherwise.
func limitKey(r *http.Request) string {
	if actor := r.Header.Get("X-Actor-ID"); actor != "" {
		return "actor:" + actor
	}
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	if ip == "" {
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}

// RateLimitMiddleware returns middleware that rate-limits per actor, falling
// back to the client IP for unidentified requests.
func RateLimitMiddleware(requestsPerWindow int, window time.Duration) func(http.Handler) http.Handler {
	limiter := newClientLimiter(requestsPerWindow, window)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Actor-Role") == "admin" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.get(limitKey(r)).Allow() {
				w.Header().Set("Retry-After", "60")
				respond.Error(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
