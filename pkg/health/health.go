// Package health serves liveness and readiness probes for the cart server.
//
// Checks run periodically in the background. A check flips to unhealthy
// only after FailureThreshold consecutive failures and back to healthy
// after SuccessThreshold consecutive successes, so a single slow ping does
// not take the instance out of rotation.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Option tunes a single check.
type Option func(*check)

// WithTimeout bounds one execution of the check. Default is 1s.
func WithTimeout(d time.Duration) Option {
	return func(c *check) { c.timeout = d }
}

// WithThresholds sets how many consecutive failures mark the check
// unhealthy and how many consecutive successes mark it healthy again.
// Defaults are 3 and 1.
func WithThresholds(failure, success int) Option {
	return func(c *check) {
		c.failureThreshold = max(failure, 1)
		c.successThreshold = max(success, 1)
	}
}

type check struct {
	name             string
	fn               CheckFunc
	timeout          time.Duration
	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	// Only touched by the goroutine running the check.
	fails int
	oks   int
}

func newCheck(name string, fn CheckFunc, opts []Option) *check {
	c := &check{
		name:             name,
		fn:               fn,
		timeout:          time.Second,
		failureThreshold: 3,
		successThreshold: 1,
	}
	for _, o := range opts {
		o(c)
	}
	c.healthy.Store(true)
	return c
}

// run executes the check once and reports whether its state flipped.
func (c *check) run(ctx context.Context) (changed bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)

	was := c.healthy.Load()
	if err != nil {
		c.oks = 0
		c.fails++
		if c.fails >= c.failureThreshold {
			c.healthy.Store(false)
		}
	} else {
		c.fails = 0
		c.oks++
		if c.oks >= c.successThreshold {
			c.healthy.Store(true)
		}
	}
	return was != c.healthy.Load()
}

// failure returns the message reported for an unhealthy check.
func (c *check) failure() string {
	if p := c.lastErr.Load(); p != nil && *p != nil {
		return (*p).Error()
	}
	return "check is unhealthy"
}

// Health holds the liveness and readiness checks of the process.
type Health struct {
	lg    *zap.Logger
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
}

// New creates a Health that is not ready until SetReady(true).
func New(lg *zap.Logger) *Health {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Health{lg: lg}
}

// AddLivenessCheck registers a check that decides whether the process should
// be restarted.
func (h *Health) AddLivenessCheck(name string, fn CheckFunc, opts ...Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newCheck(name, fn, opts))
}

// AddReadinessCheck registers a check that decides whether the process
// should receive traffic.
func (h *Health) AddReadinessCheck(name string, fn CheckFunc, opts ...Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newCheck(name, fn, opts))
}

// Run executes every registered check each interval until ctx is done.
// Checks registered after Run started are not picked up.
func (h *Health) Run(ctx context.Context, interval time.Duration) error {
	h.mu.RLock()
	checks := slices.Concat(h.liveness, h.readiness)
	h.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.loop(ctx, c, interval)
		}()
	}
	wg.Wait()
	return nil
}

func (h *Health) loop(ctx context.Context, c *check, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if c.run(ctx) {
			if c.healthy.Load() {
				h.lg.Info("Check recovered", zap.String("check", c.name))
			} else {
				h.lg.Warn("Check failing", zap.String("check", c.name), zap.String("error", c.failure()))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SetReady toggles the manual readiness flag. Set it to false at the start
// of graceful shutdown so load balancers drain the instance.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the instance is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.readiness {
		if !c.healthy.Load() {
			return false
		}
	}
	return true
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	failures := collectFailures(h.liveness)
	h.mu.RUnlock()

	writeStatus(w, failures)
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	failures := collectFailures(h.readiness)
	h.mu.RUnlock()

	if !h.ready.Load() {
		failures = append(failures, failure{name: "_readiness", msg: "service is not ready"})
	}
	writeStatus(w, failures)
}

type failure struct {
	name string
	msg  string
}

func collectFailures(checks []*check) []failure {
	var out []failure
	for _, c := range checks {
		if !c.healthy.Load() {
			out = append(out, failure{name: c.name, msg: c.failure()})
		}
	}
	return out
}

// writeStatus writes {"status":"ok"} or
// {"status":"unhealthy","checks":{"name":"error",...}} with 503.
func writeStatus(w http.ResponseWriter, failures []failure) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	status := http.StatusOK
	e.Obj(func(e *jx.Encoder) {
		if len(failures) == 0 {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			return
		}
		status = http.StatusServiceUnavailable
		e.Field("status", func(e *jx.Encoder) { e.Str("unhealthy") })
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, f := range failures {
					e.Field(f.name, func(e *jx.Encoder) { e.Str(f.msg) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
