package httpmiddleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func limited(t *testing.T, cfg RateLimitConfig) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return RateLimit(ctx, cfg)(okHandler())
}

func hit(h http.Handler, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BurstWithinCapacity(t *testing.T) {
	h := limited(t, RateLimitConfig{Max: 5, Window: time.Minute})

	for i := range 5 {
		w := hit(h, "192.168.1.1:12345")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimit_ExhaustedBucketRejects(t *testing.T) {
	h := limited(t, RateLimitConfig{Max: 2, Window: time.Minute})

	for range 2 {
		require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:9999").Code)
	}

	w := hit(h, "10.0.0.1:9999")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "rate limit exceeded", body["error"])
}

func TestRateLimit_KeysAreIndependent(t *testing.T) {
	h := limited(t, RateLimitConfig{Max: 1, Window: time.Minute})

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1111").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:2222").Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:1111").Code)
}

func TestRateLimit_ForwardedForTakesPrecedence(t *testing.T) {
	h := limited(t, RateLimitConfig{Max: 1, Window: time.Minute})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1111"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// Same forwarded client from another proxy hop is still the same bucket.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:2222"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimit_RefillOverTime(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 2, Window: 2 * time.Second})
	now := time.Now()

	for range 2 {
		_, _, ok := rl.take("k", now)
		require.True(t, ok)
	}
	_, retryAfter, ok := rl.take("k", now)
	require.False(t, ok)
	assert.Positive(t, retryAfter)

	// One second refills one token.
	_, _, ok = rl.take("k", now.Add(time.Second))
	assert.True(t, ok)
	_, _, ok = rl.take("k", now.Add(time.Second))
	assert.False(t, ok)
}

func TestRateLimit_StaleBucketsEvicted(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	now := time.Now()

	rl.take("old", now)
	rl.take("fresh", now.Add(90*time.Second))
	rl.evictStale(now.Add(3 * time.Minute))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.buckets, "old")
	assert.Contains(t, rl.buckets, "fresh")
}
