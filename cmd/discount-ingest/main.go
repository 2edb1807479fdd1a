package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/storage/postgres"
)

const (
	bloomFPR  = 0.001
	batchSize = 1000
)

func main() {
	var (
		dataDir     string
		databaseURL string
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.csv.gz discount files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and deduplicate without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, dryRun); err != nil {
		slog.Error("discount ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("discount ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, dryRun bool) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "list files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.csv.gz files in %s", dataDir)
	}
	sort.Strings(files)

	// Pass 1: parse files concurrently.
	slog.Info("pass 1: parsing files", slog.Int("files", len(files)))

	parsed, err := parseFiles(ctx, files)
	if err != nil {
		return errors.Wrap(err, "parse files")
	}

	// Pass 2: drop repeated codes, first file wins.
	slog.Info("pass 2: removing duplicate codes")

	unique, dropped := dedupe(parsed)

	slog.Info("discounts ready",
		slog.Int("unique", len(unique)),
		slog.Int("duplicates", dropped),
	)

	if dryRun || len(unique) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := writeDiscounts(ctx, pool, unique); err != nil {
		return errors.Wrap(err, "write discounts to database")
	}

	return nil
}

// parseFiles reads every file concurrently and returns the rows grouped by
// file, in the order of files.
func parseFiles(ctx context.Context, files []string) ([][]discount.Discount, error) {
	out := make([][]discount.Discount, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			rows, err := readFile(ctx, path)
			if err != nil {
				return errors.Wrapf(err, "file %s", filepath.Base(path))
			}
			slog.Info("pass 1 complete",
				slog.String("file", filepath.Base(path)),
				slog.Int("rows", len(rows)),
			)
			out[i] = rows
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// dedupe keeps the first occurrence of each code. A bloom filter flags codes
// that may repeat; only those are tracked exactly, so memory stays bounded by
// the number of real and false-positive repeats rather than all codes.
func dedupe(files [][]discount.Discount) ([]discount.Discount, int) {
	var total int
	for _, rows := range files {
		total += len(rows)
	}
	if total == 0 {
		return nil, 0
	}

	filter := bloom.NewWithEstimates(uint(total), bloomFPR)
	suspects := make(map[string]struct{})
	for _, rows := range files {
		for _, d := range rows {
			if filter.TestOrAddString(d.Code) {
				suspects[d.Code] = struct{}{}
			}
		}
	}

	seen := make(map[string]struct{}, len(suspects))
	unique := make([]discount.Discount, 0, total)
	for _, rows := range files {
		for _, d := range rows {
			if _, ok := suspects[d.Code]; ok {
				if _, dup := seen[d.Code]; dup {
					continue
				}
				seen[d.Code] = struct{}{}
			}
			unique = append(unique, d)
		}
	}

	return unique, total - len(unique)
}

// writeDiscounts inserts discounts in batches. Codes already in the database
// are left untouched.
func writeDiscounts(ctx context.Context, pool *pgxpool.Pool, discounts []discount.Discount) error {
	slog.Info("writing discounts to database", slog.Int("count", len(discounts)))

	var inserted int64
	for start := 0; start < len(discounts); start += batchSize {
		end := min(start+batchSize, len(discounts))

		batch := &pgx.Batch{}
		for _, d := range discounts[start:end] {
			batch.Queue(`
				INSERT INTO discounts (
					id, code, type, percentage, value, max_discount_value, min_order_value,
					max_uses, starts_at, expires_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT (code) DO NOTHING`,
				d.ID, d.Code, string(d.Type), d.Percentage, d.Value, d.MaxDiscountValue, d.MinOrderValue,
				d.MaxUses, d.StartsAt, d.ExpiresAt,
			)
		}

		br := pool.SendBatch(ctx, batch)
		for _, d := range discounts[start:end] {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return errors.Wrapf(err, "insert discount %s", d.Code)
			}
			inserted += tag.RowsAffected()
		}
		if err := br.Close(); err != nil {
			return errors.Wrap(err, "close batch")
		}

		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(discounts)))
	}

	slog.Info("write complete",
		slog.Int64("inserted", inserted),
		slog.Int64("existing", int64(len(discounts))-inserted),
	)

	return nil
}
