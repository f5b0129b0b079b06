package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shopping-cart/internal/domain/catalog"
)

const listCatalogSQL = `SELECT name, price FROM catalog_entries ORDER BY position`

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// List returns catalog entries in display order.
func (r *CatalogRepository) List(ctx context.Context) ([]catalog.Entry, error) {
	rows, err := r.pool.Query(ctx, listCatalogSQL)
	if err != nil {
		return nil, fmt.Errorf("listing catalog: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("scanning catalog: %w", err)
	}
	if len(entries) == 0 {
		return nil, catalog.ErrEmpty
	}
	return entries, nil
}

// Replace swaps the whole catalog for entries in one transaction. Sessions
// created afterwards see the new catalog; live sessions keep the one they
// were seeded with.
func (r *CatalogRepository) Replace(ctx context.Context, entries []catalog.Entry) error {
	if len(entries) == 0 {
		return catalog.ErrEmpty
	}
	// NUMERIC(12,2) would round or reject these silently.
	for i, e := range entries {
		if err := catalog.CheckPrice(e.Price); err != nil {
			return fmt.Errorf("catalog entry %d (%s): %w", i, e.Name, err)
		}
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM catalog_entries`); err != nil {
			return fmt.Errorf("clearing catalog: %w", err)
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"catalog_entries"},
			[]string{"position", "name", "price"},
			pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
				return []any{i, entries[i].Name, entries[i].Price}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copying %d catalog entries: %w", len(entries), err)
		}
		return nil
	})
}

// Ping reports whether the database is reachable.
func (r *CatalogRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanEntry(row pgx.CollectableRow) (catalog.Entry, error) {
	var e catalog.Entry
	err := row.Scan(&e.Name, &e.Price)
	return e, err
}
