// Command seed-db loads a JSON catalog file into the database: products with
// their option groups and options. Existing rows are upserted by id, so the
// command is safe to re-run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/petalmarket/petal/internal/repository"
)

type productJSON struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	BasePrice    decimal.Decimal   `json:"basePrice"`
	CategoryID   string            `json:"categoryId"`
	OwnerID      string            `json:"ownerId"`
	OptionGroups []optionGroupJSON `json:"optionGroups"`
}

type optionGroupJSON struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	IsRequired bool         `json:"isRequired"`
	MinSelect  int          `json:"minSelect"`
	MaxSelect  int          `json:"maxSelect"`
	Options    []optionJSON `json:"options"`
}

type optionJSON struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	PriceModifier decimal.Decimal `json:"priceModifier"`
}

const (
	upsertProductSQL = `INSERT INTO products (id, name, base_price, category_id, owner_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, base_price = EXCLUDED.base_price,
			category_id = EXCLUDED.category_id, owner_id = EXCLUDED.owner_id`

	upsertGroupSQL = `INSERT INTO option_groups (id, product_id, name, is_required, min_select, max_select, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, is_required = EXCLUDED.is_required,
			min_select = EXCLUDED.min_select, max_select = EXCLUDED.max_select,
			position = EXCLUDED.position`

	upsertOptionSQL = `INSERT INTO options (id, group_id, name, price_modifier, position)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, price_modifier = EXCLUDED.price_modifier,
			position = EXCLUDED.position`
)

func main() {
	var (
		databaseURL string
		catalogFile string
		workers     int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.IntVar(&workers, "workers", 4, "concurrent product upserts")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, workers); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string, workers int) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range products {
		g.Go(func() error {
			if err := upsertProduct(gctx, pool, p); err != nil {
				return errors.Wrapf(err, "upsert product %s", p.ID)
			}
			slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
			return nil
		})
	}
	return g.Wait()
}

func upsertProduct(ctx context.Context, pool *pgxpool.Pool, p productJSON) error {
	if _, err := pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.BasePrice, p.CategoryID, p.OwnerID); err != nil {
		return err
	}
	for gi, g := range p.OptionGroups {
		if _, err := pool.Exec(ctx, upsertGroupSQL,
			g.ID, p.ID, g.Name, g.IsRequired, g.MinSelect, g.MaxSelect, gi); err != nil {
			return errors.Wrapf(err, "option group %s", g.ID)
		}
		for oi, o := range g.Options {
			if _, err := pool.Exec(ctx, upsertOptionSQL,
				o.ID, g.ID, o.Name, o.PriceModifier, oi); err != nil {
				return errors.Wrapf(err, "option %s", o.ID)
			}
		}
	}
	return nil
}
