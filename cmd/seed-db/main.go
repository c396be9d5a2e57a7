// Command seed-db provisions a demo store with coupons, automatic discounts,
// an influencer, and an API key for the internal endpoints. Intended for
// local development and staging environments.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itadmit/quickshop-pricing/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		storeSlug    string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&storeSlug, "store-slug", "demo", "slug of the demo store to create")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or PRICING_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or PRICING_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("PRICING_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or PRICING_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("PRICING_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, storeSlug, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, storeSlug, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	storeID, err := seedStore(ctx, pool, storeSlug)
	if err != nil {
		return errors.Wrap(err, "seed store")
	}

	influencerID, err := seedInfluencer(ctx, pool, storeID)
	if err != nil {
		return errors.Wrap(err, "seed influencer")
	}

	if err := seedCoupons(ctx, pool, storeID, influencerID); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAutomaticDiscounts(ctx, pool, storeID); err != nil {
		return errors.Wrap(err, "seed automatic discounts")
	}

	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedStore(ctx context.Context, pool *pgxpool.Pool, slug string) (int64, error) {
	slog.Info("upserting demo store", slog.String("slug", slug))

	const q = `INSERT INTO stores (slug, name, currency, free_shipping_threshold, shipping_rate)
		VALUES ($1, $2, 'ILS', 200, 25)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`

	var id int64
	if err := pool.QueryRow(ctx, q, slug, "Demo Store").Scan(&id); err != nil {
		return 0, errors.Wrap(err, "upsert store")
	}
	return id, nil
}

func seedInfluencer(ctx context.Context, pool *pgxpool.Pool, storeID int64) (int64, error) {
	slog.Info("upserting demo influencer")

	const find = `SELECT id FROM influencers WHERE store_id = $1 AND email = $2`
	const insert = `INSERT INTO influencers (store_id, name, email, commission_rate)
		VALUES ($1, $2, $3, 0.10) RETURNING id`

	var id int64
	err := pool.QueryRow(ctx, find, storeID, "dana@example.com").Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, errors.Wrap(err, "find influencer")
	}

	if err := pool.QueryRow(ctx, insert, storeID, "Dana Levi", "dana@example.com").Scan(&id); err != nil {
		return 0, errors.Wrap(err, "insert influencer")
	}
	return id, nil
}

// couponSeed mirrors the coupons table; JSONB columns take raw JSON text.
type couponSeed struct {
	code          string
	name          string
	discountType  string
	value         string
	minimumAmount *string
	maxDiscount   *string
	usageLimit    *int
	customerLimit *int
	buyQuantity   *int
	getQuantity   *int
	tieredRules   *string
	influencer    bool
}

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, storeID, influencerID int64) error {
	seeds := []couponSeed{
		{
			code: "WELCOME10", name: "Welcome 10% off",
			discountType: "PERCENTAGE", value: "10",
			minimumAmount: strp("100"),
		},
		{
			code: "SAVE50", name: "50 off big orders",
			discountType: "FIXED_AMOUNT", value: "50",
			minimumAmount: strp("200"), usageLimit: intp(1000),
		},
		{
			code: "FREESHIP", name: "Free shipping",
			discountType: "FREE_SHIPPING", value: "0",
		},
		{
			code: "BUY2GET1", name: "Buy 2 get 1 free",
			discountType: "BUY_X_GET_Y", value: "0",
			buyQuantity: intp(2), getQuantity: intp(1),
		},
		{
			code: "SPEND-MORE", name: "Tiered spend discount",
			discountType: "TIERED", value: "0",
			tieredRules: strp(`[
				{"minAmount": "200", "discountType": "PERCENTAGE", "discountValue": "5"},
				{"minAmount": "500", "discountType": "PERCENTAGE", "discountValue": "10", "maxDiscount": "120"},
				{"minAmount": "1000", "discountType": "FIXED_AMOUNT", "discountValue": "150"}
			]`),
		},
		{
			code: "DANA20", name: "Dana's followers 20% off",
			discountType: "PERCENTAGE", value: "20",
			maxDiscount: strp("100"), customerLimit: intp(1),
			influencer: true,
		},
	}

	const q = `INSERT INTO coupons (
			store_id, code, name, discount_type, discount_value,
			minimum_amount, maximum_discount, usage_limit, customer_limit,
			buy_quantity, get_quantity, tiered_rules, influencer_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (store_id, code) DO UPDATE SET
			name = EXCLUDED.name,
			discount_type = EXCLUDED.discount_type,
			discount_value = EXCLUDED.discount_value`

	for _, s := range seeds {
		var infID *int64
		if s.influencer {
			infID = &influencerID
		}
		if _, err := pool.Exec(ctx, q,
			storeID, s.code, s.name, s.discountType, s.value,
			s.minimumAmount, s.maxDiscount, s.usageLimit, s.customerLimit,
			s.buyQuantity, s.getQuantity, s.tieredRules, infID,
		); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", s.code)
		}
		slog.Info("upserted coupon", slog.String("code", s.code), slog.String("type", s.discountType))
	}

	return nil
}

func seedAutomaticDiscounts(ctx context.Context, pool *pgxpool.Pool, storeID int64) error {
	const q = `INSERT INTO automatic_discounts (
			store_id, name, discount_type, discount_value,
			minimum_amount, priority, stackable, applicable_categories
		) SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE NOT EXISTS (
			SELECT 1 FROM automatic_discounts WHERE store_id = $1 AND name = $2
		)`

	discounts := []struct {
		name       string
		kind       string
		value      string
		minimum    *string
		priority   int
		stackable  bool
		categories *string
	}{
		{name: "Summer sale 15%", kind: "PERCENTAGE", value: "15", priority: 10, stackable: true, categories: strp(`[3, 7]`)},
		{name: "Big basket 25 off", kind: "FIXED_AMOUNT", value: "25", minimum: strp("300"), priority: 5, stackable: false},
	}

	for _, d := range discounts {
		if _, err := pool.Exec(ctx, q,
			storeID, d.name, d.kind, d.value, d.minimum, d.priority, d.stackable, d.categories,
		); err != nil {
			return errors.Wrapf(err, "insert automatic discount %q", d.name)
		}
		slog.Info("seeded automatic discount", slog.String("name", d.name))
	}

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	const q = `INSERT INTO api_keys (id, key_hash, name, scopes, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (id) DO UPDATE SET key_hash = EXCLUDED.key_hash`

	if _, err := pool.Exec(ctx, q,
		"default", keyHash, "Default internal key",
		[]string{"record_usage", "read_stats"},
	); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"))
	return nil
}
