// Command coupon-import bulk-loads influencer coupon codes from gzipped
// line-delimited files. Campaign platforms export millions of single-use
// codes; a bloom filter screens in-stream duplicates so most repeats never
// reach the database, and the unique (store_id, code) constraint catches the
// rest.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/itadmit/quickshop-pricing/internal/storage/postgres"
)

const (
	bloomCapacity = 50_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	minCodeLen    = 6
	maxCodeLen    = 12
	batchSize     = 500
)

func main() {
	var (
		databaseURL   string
		storeSlug     string
		influencerID  int64
		discountValue string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&storeSlug, "store-slug", "", "slug of the store receiving the codes")
	flag.Int64Var(&influencerID, "influencer-id", 0, "influencer to credit for the imported codes (0 for none)")
	flag.StringVar(&discountValue, "discount-value", "10", "percentage discount granted by each code")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if storeSlug == "" {
		slog.Error("store slug is required: set --store-slug")
		os.Exit(1)
	}
	files := flag.Args()
	if len(files) == 0 {
		slog.Error("no input files: pass one or more .gz files as arguments")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, storeSlug, influencerID, discountValue, files); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, databaseURL, storeSlug string, influencerID int64, discountValue string, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	var storeID int64
	if err := pool.QueryRow(ctx, `SELECT id FROM stores WHERE slug = $1`, storeSlug).Scan(&storeID); err != nil {
		return errors.Wrapf(err, "resolve store %q", storeSlug)
	}

	var infID *int64
	if influencerID > 0 {
		infID = &influencerID
	}

	// Producers stream files concurrently; one consumer owns the bloom filter
	// and the database writes, so neither needs locking.
	codes := make(chan string, 4096)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(codes)

		fg, ctx := errgroup.WithContext(ctx)
		for _, f := range files {
			fg.Go(streamFile(ctx, f, codes))
		}
		return fg.Wait()
	})

	var imported, skipped uint64
	g.Go(func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		w := &couponWriter{pool: pool, storeID: storeID, influencerID: infID, value: discountValue}

		for code := range codes {
			if filter.TestOrAddString(code) {
				skipped++
				continue
			}
			if err := w.add(ctx, code); err != nil {
				return err
			}
			imported++
			if imported%progressEvery == 0 {
				slog.Info("import progress",
					slog.Uint64("imported", imported),
					slog.Uint64("skipped", skipped),
				)
			}
		}
		return w.flush(ctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("import finished",
		slog.Uint64("imported", imported),
		slog.Uint64("skipped_duplicates", skipped),
	)
	return nil
}

// streamFile reads a gzip-compressed file line by line and sends well-formed
// codes to out.
func streamFile(ctx context.Context, path string, out chan<- string) func() error {
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

		scanner := bufio.NewScanner(gz)
		for scanner.Scan() {
			code := strings.ToUpper(strings.TrimSpace(scanner.Text()))
			if len(code) < minCodeLen || len(code) > maxCodeLen {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- code:
			}
		}

		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}
		return nil
	}
}

// couponWriter buffers codes and writes them in multi-row inserts.
type couponWriter struct {
	pool         *pgxpool.Pool
	storeID      int64
	influencerID *int64
	value        string
	buf          []string
}

func (w *couponWriter) add(ctx context.Context, code string) error {
	w.buf = append(w.buf, code)
	if len(w.buf) < batchSize {
		return nil
	}
	return w.flush(ctx)
}

func (w *couponWriter) flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}

	const q = `INSERT INTO coupons (store_id, code, name, discount_type, discount_value, influencer_id)
		SELECT $1, unnest($2::text[]), 'Imported promo code', 'PERCENTAGE', $3::numeric, $4
		ON CONFLICT (store_id, code) DO NOTHING`

	if _, err := w.pool.Exec(ctx, q, w.storeID, w.buf, w.value, w.influencerID); err != nil {
		return errors.Wrap(err, "insert coupon batch")
	}
	w.buf = w.buf[:0]
	return nil
}
