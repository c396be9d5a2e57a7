package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/itadmit/quickshop-pricing/internal/domain/discount"
)

// Time-window and minimum-amount filters beyond this query run in the
// engine; the query only narrows to ACTIVE rows inside their window.
const listActiveDiscountsSQL = `SELECT id, store_id, name, description, status,
	discount_type, discount_value, minimum_amount, maximum_discount,
	starts_at, expires_at, priority, stackable,
	applicable_products, applicable_categories, excluded_products, excluded_categories,
	buy_quantity, get_quantity, bogo_mode, tiered_rules, influencer_id, created_at
	FROM automatic_discounts
	WHERE store_id = $1
	  AND status = 'ACTIVE'
	  AND (starts_at IS NULL OR starts_at <= $2)
	  AND (expires_at IS NULL OR expires_at >= $2)
	ORDER BY priority DESC, created_at DESC`

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// ListActive returns the store's automatic discounts that are ACTIVE and
// inside their time window at now, ordered by priority descending then
// creation time descending.
func (r *DiscountRepository) ListActive(ctx context.Context, storeID int64, now time.Time) ([]discount.Automatic, error) {
	rows, err := r.pool.Query(ctx, listActiveDiscountsSQL, storeID, now)
	if err != nil {
		return nil, fmt.Errorf("listing automatic discounts for store %d: %w", storeID, err)
	}

	discounts, err := pgx.CollectRows(rows, scanAutomatic)
	if err != nil {
		return nil, fmt.Errorf("listing automatic discounts for store %d: %w", storeID, err)
	}
	return discounts, nil
}

func scanAutomatic(row pgx.CollectableRow) (discount.Automatic, error) {
	var (
		a           discount.Automatic
		status      string
		dtype       string
		bogoMode    string
		minAmount   *decimal.Decimal
		maxDiscount *decimal.Decimal
		startsAt    *time.Time
		expiresAt   *time.Time
		buyQty      *int32
		getQty      *int32
		applProds   []byte
		applCats    []byte
		exclProds   []byte
		exclCats    []byte
		tiers       []byte
	)

	err := row.Scan(
		&a.ID, &a.StoreID, &a.Name, &a.Description, &status,
		&dtype, &a.Value, &minAmount, &maxDiscount,
		&startsAt, &expiresAt, &a.Priority, &a.Stackable,
		&applProds, &applCats, &exclProds, &exclCats,
		&buyQty, &getQty, &bogoMode, &tiers, &a.InfluencerID, &a.CreatedAt,
	)
	if err != nil {
		return a, err
	}

	a.Status = discount.Status(status)
	a.Type = discount.Type(dtype)
	a.BogoMode = discount.BogoMode(bogoMode)
	a.MinimumAmount = minAmount
	a.MaximumDiscount = maxDiscount
	a.StartsAt = startsAt
	a.ExpiresAt = expiresAt
	if buyQty != nil {
		a.BuyQuantity = int(*buyQty)
	}
	if getQty != nil {
		a.GetQuantity = int(*getQty)
	}
	if a.Scope, err = scanScope(applProds, applCats, exclProds, exclCats); err != nil {
		return a, err
	}
	if a.Tiers, err = scanTiers(tiers); err != nil {
		return a, err
	}
	return a, nil
}
