package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type keyedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimitByIP applies per-IP rate limiting. Uses chi's RealIP middleware
// value via r.RemoteAddr. Stale entries are cleaned up every 10 minutes.
func RateLimitByIP(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	return rateLimit(ctx, requestsPerSecond, burst, clientIP)
}

// RateLimitBySession limits each session separately; requests without a
// session share their IP's budget.
func RateLimitBySession(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	return rateLimit(ctx, requestsPerSecond, burst, func(r *http.Request) string {
		if id, ok := SessionIDFromContext(r.Context()); ok {
			return "session:" + id
		}
		return "ip:" + clientIP(r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func rateLimit(ctx context.Context, requestsPerSecond float64, burst int, keyOf func(*http.Request) string) func(http.Handler) http.Handler {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*keyedLimiter)
	)

	// Background cleanup of stale limiters.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				mu.Lock()
				cutoff := time.Now().Add(-30 * time.Minute)
				for key, kl := range limiters {
					if kl.lastAccess.Before(cutoff) {
						delete(limiters, key)
					}
				}
				mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	limiterFor := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		kl, ok := limiters[key]
		if !ok {
			kl = &keyedLimiter{
				limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
				lastAccess: time.Now(),
			}
			limiters[key] = kl
		} else {
			kl.lastAccess = time.Now()
		}
		return kl.limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lim := limiterFor(keyOf(r))
			if !lim.Allow() {
				w.Header().Set("Content-Type", "application/problem+json")
				http.Error(w, `{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
