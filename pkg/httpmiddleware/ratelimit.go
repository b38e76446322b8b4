package httpmiddleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client token bucket limiter.
type RateLimitConfig struct {
	// Max is the bucket capacity: the number of requests a client may burst.
	Max int
	// Window is the time it takes an empty bucket to refill completely.
	Window time.Duration
	// KeyFunc extracts the limiter key from a request. Defaults to the
	// client IP.
	KeyFunc func(*http.Request) string
}

// bucket is a token bucket with lazy refill.
type bucket struct {
	tokens   float64
	lastSeen time.Time
}

type rateLimiter struct {
	cfg     RateLimitConfig
	rate    float64 // tokens per second
	mu      sync.Mutex
	buckets map[string]*bucket
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIP
	}
	return &rateLimiter{
		cfg:     cfg,
		rate:    float64(cfg.Max) / cfg.Window.Seconds(),
		buckets: make(map[string]*bucket),
	}
}

// take spends one token for key. It returns the remaining whole tokens and,
// when the bucket is empty, the wait until the next token.
func (rl *rateLimiter) take(key string, now time.Time) (remaining int, retryAfter time.Duration, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, found := rl.buckets[key]
	if !found {
		b = &bucket{tokens: float64(rl.cfg.Max), lastSeen: now}
		rl.buckets[key] = b
	} else {
		b.tokens += now.Sub(b.lastSeen).Seconds() * rl.rate
		if b.tokens > float64(rl.cfg.Max) {
			b.tokens = float64(rl.cfg.Max)
		}
		b.lastSeen = now
	}

	if b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / rl.rate * float64(time.Second))
		return 0, wait, false
	}
	b.tokens--
	return int(b.tokens), 0, true
}

func (rl *rateLimiter) evictStale(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) >= 2*rl.cfg.Window {
			delete(rl.buckets, key)
		}
	}
}

// RateLimit enforces a per-client token bucket limit. Rejected requests get
// 429 with a JSON body and a Retry-After header. A background goroutine
// evicts buckets idle for two windows; it stops when ctx is cancelled.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	rl := newRateLimiter(cfg)

	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				rl.evictStale(now)
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, retryAfter, ok := rl.take(rl.cfg.KeyFunc(r), time.Now())

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   "rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the caller's address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
