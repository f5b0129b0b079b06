package cartsvc

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/shopping-cart/internal/domain/cart"
	"github.com/xenking/shopping-cart/internal/domain/catalog"
	"github.com/xenking/shopping-cart/internal/session"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	mp := metricnoop.NewMeterProvider()
	reg, err := session.NewRegistry(catalog.NewStatic(catalog.Seed()), session.Config{TTL: time.Hour}, zap.NewNop(), mp)
	require.NoError(t, err)
	svc, err := NewService(reg, tracenoop.NewTracerProvider(), mp)
	require.NoError(t, err)
	return svc
}

func names(lines []cart.Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Name
	}
	return out
}

func TestNewSession(t *testing.T) {
	svc := newTestService(t)

	st, err := svc.NewSession(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, st.SessionID)
	assert.Equal(t, []string{"Lux Soap", "Panteene Shampoo", "Maggie"}, names(st.Items))
	assert.Len(t, st.Catalog, 8)
	assert.True(t, st.Draft.IsZero())
}

func TestRemove(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	st, err := svc.NewSession(ctx)
	require.NoError(t, err)

	st, err = svc.Remove(ctx, st.SessionID, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lux Soap", "Maggie"}, names(st.Items))
}

func TestRemove_Drain(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	st, err := svc.NewSession(ctx)
	require.NoError(t, err)
	id := st.SessionID

	for range 3 {
		_, err := svc.Remove(ctx, id, 0)
		require.NoError(t, err)
	}

	_, err = svc.Remove(ctx, id, 0)
	require.ErrorIs(t, err, cart.ErrIndexOutOfRange)

	st, err = svc.View(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, st.Items)
}

func TestAddItem(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	st, err := svc.NewSession(ctx)
	require.NoError(t, err)

	st, err = svc.AddItem(ctx, st.SessionID, cart.Draft{
		Name:     "Wine bottle",
		Quantity: 5,
		Price:    decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	require.Len(t, st.Items, 4)

	last := st.Items[3]
	assert.Equal(t, "Wine bottle", last.Name)
	assert.Equal(t, 5, last.Quantity)
	assert.True(t, decimal.NewFromInt(1000).Equal(last.Price))
	assert.True(t, st.Draft.IsZero())
}

func TestDraftFlow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	st, err := svc.NewSession(ctx)
	require.NoError(t, err)
	id := st.SessionID

	st, err = svc.SelectCatalog(ctx, id, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, "lunch box", st.Draft.Name)
	assert.Equal(t, 2, st.Draft.Quantity)

	st, err = svc.SetDraft(ctx, id, cart.Draft{Name: "lunch box", Quantity: 4, Price: decimal.NewFromInt(450)})
	require.NoError(t, err)
	assert.Equal(t, 4, st.Draft.Quantity)

	st, err = svc.CommitDraft(ctx, id)
	require.NoError(t, err)
	assert.True(t, st.Draft.IsZero())
	assert.Equal(t, "lunch box", st.Items[len(st.Items)-1].Name)
	assert.Equal(t, 4, st.Items[len(st.Items)-1].Quantity)

	_, err = svc.SelectCatalog(ctx, id, 42, 1)
	require.ErrorIs(t, err, cart.ErrIndexOutOfRange)
}

func TestUnknownSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.View(ctx, "nope")
	require.ErrorIs(t, err, session.ErrNotFound)

	_, err = svc.Remove(ctx, "nope", 0)
	require.ErrorIs(t, err, session.ErrNotFound)

	require.ErrorIs(t, svc.EndSession(ctx, "nope"), session.ErrNotFound)
}

func TestEndSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	st, err := svc.NewSession(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.EndSession(ctx, st.SessionID))

	_, err = svc.View(ctx, st.SessionID)
	require.ErrorIs(t, err, session.ErrNotFound)
}
