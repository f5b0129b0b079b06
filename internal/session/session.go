// Package session keeps one cart store per UI session.
//
// Each session serializes its own intents, so a store is only ever touched
// by one goroutine at a time. Idle sessions are evicted by a sweeper once
// they have not been used for the configured TTL.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/shopping-cart/internal/domain/cart"
	"github.com/xenking/shopping-cart/internal/domain/catalog"
)

var (
	// ErrNotFound is returned for unknown or expired session IDs.
	ErrNotFound = errors.New("session not found")
	// ErrLimitReached is returned by Create when MaxSessions is reached.
	ErrLimitReached = errors.New("session limit reached")
)

// Session is a single UI session owning a cart store.
type Session struct {
	ID string

	mu    sync.Mutex
	store *cart.Store

	// lastSeen is unix nanoseconds, read by the sweeper without taking mu.
	lastSeen atomic.Int64
}

// Do runs fn with exclusive access to the session store.
func (s *Session) Do(fn func(*cart.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.store)
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

// Config controls session lifetime.
type Config struct {
	// TTL is how long a session may stay idle before it is evicted.
	TTL time.Duration
	// SweepInterval is how often idle sessions are looked for.
	// Defaults to TTL/2.
	SweepInterval time.Duration
	// MaxSessions caps live sessions. Zero means unlimited.
	MaxSessions int
}

// Registry creates, looks up and expires sessions.
type Registry struct {
	catalog catalog.Repository
	cfg     Config
	now     func() time.Time
	lg      *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	created metric.Int64Counter
	expired metric.Int64Counter
	active  metric.Int64UpDownCounter
}

// NewRegistry returns a Registry that seeds new sessions from repo.
func NewRegistry(repo catalog.Repository, cfg Config, lg *zap.Logger, mp metric.MeterProvider) (*Registry, error) {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = cfg.TTL / 2
	}
	meter := mp.Meter("github.com/xenking/shopping-cart/internal/session")

	created, err := meter.Int64Counter("cart.sessions.created",
		metric.WithDescription("Sessions created"))
	if err != nil {
		return nil, errors.Wrap(err, "create sessions.created counter")
	}
	expired, err := meter.Int64Counter("cart.sessions.expired",
		metric.WithDescription("Sessions evicted after being idle"))
	if err != nil {
		return nil, errors.Wrap(err, "create sessions.expired counter")
	}
	active, err := meter.Int64UpDownCounter("cart.sessions.active",
		metric.WithDescription("Live sessions"))
	if err != nil {
		return nil, errors.Wrap(err, "create sessions.active counter")
	}

	return &Registry{
		catalog:  repo,
		cfg:      cfg,
		now:      time.Now,
		lg:       lg,
		sessions: make(map[string]*Session),
		created:  created,
		expired:  expired,
		active:   active,
	}, nil
}

// Create starts a new session with the seeded cart and the current catalog.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	entries, err := r.catalog.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}

	s := &Session{
		ID:    uuid.New().String(),
		store: cart.NewStore(entries, cart.SeedItems()...),
	}
	s.touch(r.now())

	r.mu.Lock()
	if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		r.mu.Unlock()
		return nil, ErrLimitReached
	}
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.created.Add(ctx, 1)
	r.active.Add(ctx, 1)
	return s, nil
}

// Get returns the session with the given ID and marks it as used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(r.now())
	return s, nil
}

// Delete ends a session.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	r.active.Add(ctx, -1)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for at least TTL and returns how many were removed.
// A non-positive TTL disables expiry.
func (r *Registry) Sweep(ctx context.Context) int {
	if r.cfg.TTL <= 0 {
		return 0
	}
	now := r.now()

	r.mu.Lock()
	var evicted int
	for id, s := range r.sessions {
		if s.idleSince(now) >= r.cfg.TTL {
			delete(r.sessions, id)
			evicted++
		}
	}
	r.mu.Unlock()

	if evicted > 0 {
		r.expired.Add(ctx, int64(evicted))
		r.active.Add(ctx, -int64(evicted))
		r.lg.Debug("Expired idle sessions", zap.Int("count", evicted))
	}
	return evicted
}

// Run sweeps idle sessions every SweepInterval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) error {
	if r.cfg.TTL <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}
