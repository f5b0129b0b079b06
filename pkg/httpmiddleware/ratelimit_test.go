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

func hit(h http.Handler, remoteAddr string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/catalog", nil)
	req.RemoteAddr = remoteAddr
	for _, m := range mutate {
		m(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_UnderLimit(t *testing.T) {
	h := limited(t, RateLimitConfig{Max: 5, Window: time.Minute})

	for i := range 5 {
		w := hit(h, "192.168.1.1:12345")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
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
	assert.Equal(t, float64(429), body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimit_PerClient(t *testing.T) {
	h := limited(t, RateLimitConfig{Max: 1, Window: time.Minute})

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:5678").Code)
}

func TestRateLimit_XForwardedFor(t *testing.T) {
	h := limited(t, RateLimitConfig{Max: 1, Window: time.Minute})
	xff := func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18") }

	assert.Equal(t, http.StatusOK, hit(h, "192.168.1.1:4444", xff).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.168.1.2:5555", xff).Code)
}

func TestRateLimit_Skip(t *testing.T) {
	h := limited(t, RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		Skip:   SkipPaths("/livez", "/readyz"),
	})
	probe := func(r *http.Request) { r.URL.Path = "/readyz" }

	for range 3 {
		w := hit(h, "10.0.0.1:1", probe)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:1").Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	h := limited(t, RateLimitConfig{})

	for range 10 {
		w := hit(h, "10.0.0.1:1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 4, Window: time.Minute})
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for range 4 {
		_, _, ok := rl.allow("k", start)
		require.True(t, ok)
	}
	_, _, ok := rl.allow("k", start.Add(30*time.Second))
	require.False(t, ok)

	// A quarter into the next window, 3/4 of the previous count still
	// weighs in: 4*0.75 = 3, so one request fits.
	next := start.Add(75 * time.Second)
	_, _, ok = rl.allow("k", next)
	require.True(t, ok)
	_, _, ok = rl.allow("k", next)
	require.False(t, ok)

	// Two windows later the history is gone.
	remaining, _, ok := rl.allow("k", start.Add(3*time.Minute))
	require.True(t, ok)
	assert.Equal(t, 3, remaining)
}

func TestRateLimiter_Evict(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	now := time.Now()

	rl.allow("old", now.Add(-3*time.Minute))
	rl.allow("fresh", now)
	rl.evict(now)

	assert.NotContains(t, rl.windows, "old")
	assert.Contains(t, rl.windows, "fresh")
}
