package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window. Zero disables limiting.
	Max int
	// Window is the length of one window.
	Window time.Duration
	// KeyFunc groups requests. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
	// Skip exempts matching requests, e.g. health probes.
	Skip func(*http.Request) bool
}

// window holds counts for the current and the previous fixed window; the
// previous one is weighted by how much it still overlaps the sliding window.
type window struct {
	prevCount float64
	currCount float64
	currStart time.Time
}

type rateLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	windows map[string]*window
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	return &rateLimiter{
		cfg:     cfg,
		windows: make(map[string]*window),
	}
}

// allow records a request for key at now and reports whether it fits.
func (rl *rateLimiter) allow(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	size := rl.cfg.Window
	w, found := rl.windows[key]
	if !found {
		w = &window{currStart: now}
		rl.windows[key] = w
	}

	if elapsed := now.Sub(w.currStart); elapsed >= size {
		// Two or more windows ago: nothing left to carry over.
		if elapsed >= 2*size {
			w.prevCount = 0
		} else {
			w.prevCount = w.currCount
		}
		w.currCount = 0
		w.currStart = now.Truncate(size)
	}

	overlap := 1 - now.Sub(w.currStart).Seconds()/size.Seconds()
	overlap = math.Max(overlap, 0)
	used := w.prevCount*overlap + w.currCount
	resetAt = w.currStart.Add(size)

	if used >= float64(rl.cfg.Max) {
		return 0, resetAt, false
	}
	w.currCount++
	remaining = max(int(float64(rl.cfg.Max)-used-1), 0)
	return remaining, resetAt, true
}

// evict drops windows that can no longer affect a decision.
func (rl *rateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, w := range rl.windows {
		if now.Sub(w.currStart) >= 2*rl.cfg.Window {
			delete(rl.windows, key)
		}
	}
}

func (rl *rateLimiter) runEviction(ctx context.Context) {
	ticker := time.NewTicker(2 * rl.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.evict(now)
		}
	}
}

// RateLimit returns a middleware enforcing a per-key sliding window limit.
// Limited requests get 429 with Retry-After; every response carries the
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset headers.
// Idle keys are evicted in the background until ctx is cancelled.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	rl := newRateLimiter(cfg)
	go rl.runEviction(ctx)

	limit := strconv.Itoa(cfg.Max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			remaining, resetAt, ok := rl.allow(rl.cfg.KeyFunc(r), time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !ok {
				retry := max(time.Until(resetAt), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SkipPaths returns a Skip func matching exact request paths.
func SkipPaths(paths ...string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.URL.Path]
		return ok
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
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
