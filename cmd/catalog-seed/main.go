// Command catalog-seed loads a catalog into PostgreSQL for cart-server.
//
// Without -file the built-in catalog is written. The file is a JSON array of
// {"name": "...", "price": 12.5} objects in display order, optionally
// gzip-compressed when its name ends in ".gz".
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/xenking/shopping-cart/internal/domain/catalog"
	"github.com/xenking/shopping-cart/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		file        string
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or CART_DATABASE_URL, DATABASE_URL env)")
	flag.StringVar(&file, "file", "", "path to catalog JSON file; empty writes the built-in catalog")
	flag.Parse()

	for _, env := range []string{"CART_DATABASE_URL", "DATABASE_URL"} {
		if databaseURL == "" {
			databaseURL = os.Getenv(env)
		}
	}

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		if databaseURL == "" {
			return errors.New("database URL is required: set -database-url or DATABASE_URL")
		}
		return run(ctx, lg, databaseURL, file)
	})
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, file string) error {
	entries := catalog.Seed()
	if file != "" {
		lg.Info("Reading catalog file", zap.String("path", file))
		data, err := readFile(file)
		if err != nil {
			return errors.Wrap(err, "read catalog file")
		}
		if entries, err = decodeEntries(data); err != nil {
			return errors.Wrapf(err, "parse %s", file)
		}
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	if err := postgres.NewCatalogRepository(pool).Replace(ctx, entries); err != nil {
		return errors.Wrap(err, "replace catalog")
	}

	for i, e := range entries {
		lg.Debug("Catalog entry", zap.Int("position", i), zap.String("name", e.Name), zap.Stringer("price", e.Price))
	}
	lg.Info("Catalog written", zap.Int("entries", len(entries)))
	return nil
}

func readFile(name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if !strings.HasSuffix(name, ".gz") {
		return io.ReadAll(f)
	}
	zr, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "gzip")
	}
	defer func() { _ = zr.Close() }()
	return io.ReadAll(zr)
}
