//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/shopping-cart/internal/domain/catalog"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "cart",
				"POSTGRES_PASSWORD": "cart",
				"POSTGRES_DB":       "cart",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://cart:cart@%s:%s/cart?sslmode=disable", host, port.Port())
}

func TestCatalogRepository_List(t *testing.T) {
	ctx := context.Background()
	pool, err := NewPool(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))
	require.NoError(t, RunMigrations(ctx, pool))

	repo := NewCatalogRepository(pool)
	require.NoError(t, repo.Ping(ctx))

	entries, err := repo.List(ctx)
	require.NoError(t, err)

	seed := catalog.Seed()
	require.Len(t, entries, len(seed))
	for i := range seed {
		assert.Equal(t, seed[i].Name, entries[i].Name)
		assert.True(t, seed[i].Price.Equal(entries[i].Price), "price of %s", seed[i].Name)
	}
}

func TestCatalogRepository_Empty(t *testing.T) {
	ctx := context.Background()
	pool, err := NewPool(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	_, err = pool.Exec(ctx, `DELETE FROM catalog_entries`)
	require.NoError(t, err)

	_, err = NewCatalogRepository(pool).List(ctx)
	require.ErrorIs(t, err, catalog.ErrEmpty)
}

func TestCatalogRepository_DecimalPrices(t *testing.T) {
	ctx := context.Background()
	pool, err := NewPool(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	_, err = pool.Exec(ctx, `UPDATE catalog_entries SET price = 12.34 WHERE position = 0`)
	require.NoError(t, err)

	entries, err := NewCatalogRepository(pool).List(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.34").Equal(entries[0].Price))
}

func TestCatalogRepository_Replace(t *testing.T) {
	ctx := context.Background()
	pool, err := NewPool(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	repo := NewCatalogRepository(pool)

	want := []catalog.Entry{
		{Name: "Tea", Price: decimal.NewFromInt(25)},
		{Name: "Biscuits", Price: decimal.RequireFromString("12.50")},
	}
	require.NoError(t, repo.Replace(ctx, want))

	got, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Tea", got[0].Name)
	assert.Equal(t, "Biscuits", got[1].Name)
	assert.True(t, want[1].Price.Equal(got[1].Price))

	// Re-running migrations does not bring the seed rows back.
	require.NoError(t, RunMigrations(ctx, pool))
	got, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.ErrorIs(t, repo.Replace(ctx, nil), catalog.ErrEmpty)

	// Prices the column would round are refused and leave the catalog as is.
	err = repo.Replace(ctx, []catalog.Entry{{Name: "Tea", Price: decimal.RequireFromString("1.005")}})
	require.ErrorIs(t, err, catalog.ErrInvalidPrice)
	got, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
