// Command catalog-ingest imports vendor catalog feeds: gzip-compressed
// JSON-lines files, one product per line, typically one file per vendor.
//
// Feeds overlap: vendors re-export their full catalog on every run, and the
// same product can appear in several feeds. A bloom filter over already
// written product ids skips the bulk of those repeats cheaply; the rare
// false positive only means a product keeps its previously imported state,
// which the upsert would have rewritten identically anyway.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/petalmarket/petal/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

type productLine struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	BasePrice    decimal.Decimal   `json:"basePrice"`
	CategoryID   string            `json:"categoryId"`
	OwnerID      string            `json:"ownerId"`
	OptionGroups []optionGroupLine `json:"optionGroups"`
}

type optionGroupLine struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	IsRequired bool         `json:"isRequired"`
	MinSelect  int          `json:"minSelect"`
	MaxSelect  int          `json:"maxSelect"`
	Options    []optionLine `json:"options"`
}

type optionLine struct {
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
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "feeds", "directory containing vendor *.jsonl.gz feed files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "list feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz feed files in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Pipeline: one decoder goroutine per feed, one writer. The writer owns
	// the bloom filter, so membership checks need no locking.
	lines := make(chan productLine, 256)

	g, gctx := errgroup.WithContext(ctx)

	decoders, dctx := errgroup.WithContext(gctx)
	for _, f := range files {
		decoders.Go(decodeFeed(dctx, f, lines))
	}
	g.Go(func() error {
		defer close(lines)
		return decoders.Wait()
	})

	g.Go(writeProducts(gctx, pool, lines))

	return g.Wait()
}

// decodeFeed streams one gzip feed file and sends every decoded product line.
func decodeFeed(ctx context.Context, path string, out chan<- productLine) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()

		var count uint64
		scanner := bufio.NewScanner(gz)
		scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
		for scanner.Scan() {
			var p productLine
			if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
				return errors.Wrapf(err, "parse line %d of %s", count+1, path)
			}

			select {
			case out <- p:
			case <-ctx.Done():
				return ctx.Err()
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("decode progress",
					slog.String("feed", filepath.Base(path)),
					slog.Uint64("products", count),
				)
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("feed decoded",
			slog.String("feed", filepath.Base(path)),
			slog.Uint64("products", count),
		)
		return nil
	}
}

// writeProducts upserts products from the channel, skipping ids the bloom
// filter says were already written in this run.
func writeProducts(ctx context.Context, pool *pgxpool.Pool, in <-chan productLine) func() error {
	return func() error {
		seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var written, skipped uint64

		for p := range in {
			if p.ID == "" {
				continue
			}
			if seen.TestString(p.ID) {
				skipped++
				continue
			}

			if err := upsertProduct(ctx, pool, p); err != nil {
				return errors.Wrapf(err, "upsert product %s", p.ID)
			}
			seen.AddString(p.ID)

			written++
			if written%progressEvery == 0 {
				slog.Info("write progress",
					slog.Uint64("written", written),
					slog.Uint64("skipped", skipped),
				)
			}
		}

		slog.Info("write complete",
			slog.Uint64("written", written),
			slog.Uint64("skipped", skipped),
		)
		return nil
	}
}

func upsertProduct(ctx context.Context, pool *pgxpool.Pool, p productLine) error {
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
