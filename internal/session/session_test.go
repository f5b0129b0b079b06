package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/shopping-cart/internal/domain/cart"
	"github.com/xenking/shopping-cart/internal/domain/catalog"
)

type failingRepo struct{}

func (failingRepo) List(context.Context) ([]catalog.Entry, error) {
	return nil, errors.New("db down")
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(t *testing.T, cfg Config) (*Registry, *fakeClock) {
	t.Helper()
	r, err := NewRegistry(catalog.NewStatic(catalog.Seed()), cfg, zap.NewNop(), noop.NewMeterProvider())
	require.NoError(t, err)
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	r.now = clock.Now
	return r, clock
}

func TestCreateAndGet(t *testing.T) {
	r, _ := newTestRegistry(t, Config{TTL: time.Minute})
	ctx := context.Background()

	s, err := r.Create(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 1, r.Len())

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	err = got.Do(func(st *cart.Store) error {
		assert.Equal(t, 3, st.Len())
		assert.Len(t, st.Catalog(), 8)
		return nil
	})
	require.NoError(t, err)
}

func TestSessionsAreIsolated(t *testing.T) {
	r, _ := newTestRegistry(t, Config{TTL: time.Minute})
	ctx := context.Background()

	a, err := r.Create(ctx)
	require.NoError(t, err)
	b, err := r.Create(ctx)
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)

	require.NoError(t, a.Do(func(st *cart.Store) error { return st.Remove(0) }))

	require.NoError(t, b.Do(func(st *cart.Store) error {
		assert.Equal(t, 3, st.Len())
		return nil
	}))
}

func TestGet_Unknown(t *testing.T) {
	r, _ := newTestRegistry(t, Config{TTL: time.Minute})

	_, err := r.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	r, _ := newTestRegistry(t, Config{TTL: time.Minute})
	ctx := context.Background()

	s, err := r.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, s.ID))
	assert.Equal(t, 0, r.Len())
	require.ErrorIs(t, r.Delete(ctx, s.ID), ErrNotFound)
}

func TestCreate_Limit(t *testing.T) {
	r, _ := newTestRegistry(t, Config{TTL: time.Minute, MaxSessions: 1})
	ctx := context.Background()

	_, err := r.Create(ctx)
	require.NoError(t, err)

	_, err = r.Create(ctx)
	require.ErrorIs(t, err, ErrLimitReached)
	assert.Equal(t, 1, r.Len())
}

func TestCreate_CatalogError(t *testing.T) {
	r, err := NewRegistry(failingRepo{}, Config{TTL: time.Minute}, zap.NewNop(), noop.NewMeterProvider())
	require.NoError(t, err)

	_, err = r.Create(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load catalog")
	assert.Equal(t, 0, r.Len())
}

func TestSweep(t *testing.T) {
	r, clock := newTestRegistry(t, Config{TTL: time.Minute})
	ctx := context.Background()

	idle, err := r.Create(ctx)
	require.NoError(t, err)
	clock.Advance(40 * time.Second)

	active, err := r.Create(ctx)
	require.NoError(t, err)
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, r.Sweep(ctx))

	_, err = r.Get(idle.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = r.Get(active.ID)
	require.NoError(t, err)
}

func TestSweep_GetKeepsAlive(t *testing.T) {
	r, clock := newTestRegistry(t, Config{TTL: time.Minute})
	ctx := context.Background()

	s, err := r.Create(ctx)
	require.NoError(t, err)

	for range 5 {
		clock.Advance(45 * time.Second)
		_, err := r.Get(s.ID)
		require.NoError(t, err)
		assert.Zero(t, r.Sweep(ctx))
	}
}

func TestSweep_DisabledWithoutTTL(t *testing.T) {
	r, clock := newTestRegistry(t, Config{})
	ctx := context.Background()

	_, err := r.Create(ctx)
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)

	assert.Zero(t, r.Sweep(ctx))
	assert.Equal(t, 1, r.Len())
}

func TestRun_StopsOnCancel(t *testing.T) {
	r, _ := newTestRegistry(t, Config{TTL: time.Minute, SweepInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestDo_Serializes(t *testing.T) {
	r, _ := newTestRegistry(t, Config{TTL: time.Minute})
	s, err := r.Create(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do(func(st *cart.Store) error {
				d := cart.Draft{Name: "Lucky coin", Quantity: 1, Price: decimal.NewFromInt(30)}
				_, err := st.AddItem(&d)
				return err
			})
		}()
	}
	wg.Wait()

	require.NoError(t, s.Do(func(st *cart.Store) error {
		assert.Equal(t, 53, st.Len())
		return nil
	}))
}
