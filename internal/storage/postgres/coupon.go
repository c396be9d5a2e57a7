package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/itadmit/quickshop-pricing/internal/domain/coupon"
	"github.com/itadmit/quickshop-pricing/internal/domain/discount"
)

const (
	findCouponByCodeSQL = `SELECT id, store_id, code, name, description, status,
		discount_type, discount_value, minimum_amount, maximum_discount,
		starts_at, expires_at, usage_limit, usage_count, customer_limit,
		applicable_products, applicable_categories, excluded_products, excluded_categories,
		buy_quantity, get_quantity, bogo_mode, tiered_rules, influencer_id
		FROM coupons
		WHERE store_id = $1 AND UPPER(code) = UPPER($2) AND status = 'ACTIVE'`

	countCustomerUsageSQL = `SELECT COUNT(*) FROM coupon_usages
		WHERE coupon_id = $1 AND customer_id = $2`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an active coupon by store and code (case-insensitive).
// Returns coupon.ErrNotFound when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, storeID int64, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findCouponByCodeSQL, storeID, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// CountCustomerUsage counts prior redemptions of a coupon by one customer.
func (r *CouponRepository) CountCustomerUsage(ctx context.Context, couponID, customerID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, countCustomerUsageSQL, couponID, customerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting usage for coupon %d: %w", couponID, err)
	}
	return count, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c           coupon.Coupon
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
		&c.ID, &c.StoreID, &c.Code, &c.Name, &c.Description, &status,
		&dtype, &c.Value, &minAmount, &maxDiscount,
		&startsAt, &expiresAt, &c.UsageLimit, &c.UsageCount, &c.CustomerLimit,
		&applProds, &applCats, &exclProds, &exclCats,
		&buyQty, &getQty, &bogoMode, &tiers, &c.InfluencerID,
	)
	if err != nil {
		return c, err
	}

	c.Status = discount.Status(status)
	c.Type = discount.Type(dtype)
	c.BogoMode = discount.BogoMode(bogoMode)
	c.MinimumAmount = minAmount
	c.MaximumDiscount = maxDiscount
	c.StartsAt = startsAt
	c.ExpiresAt = expiresAt
	if buyQty != nil {
		c.BuyQuantity = int(*buyQty)
	}
	if getQty != nil {
		c.GetQuantity = int(*getQty)
	}
	if c.Scope, err = scanScope(applProds, applCats, exclProds, exclCats); err != nil {
		return c, err
	}
	if c.Tiers, err = scanTiers(tiers); err != nil {
		return c, err
	}
	return c, nil
}

// scanScope decodes the four JSONB id arrays; NULL columns stay nil, meaning
// "no restriction".
func scanScope(applProds, applCats, exclProds, exclCats []byte) (discount.Scope, error) {
	var s discount.Scope
	for _, col := range []struct {
		raw  []byte
		dest *[]int64
	}{
		{applProds, &s.ApplicableProducts},
		{applCats, &s.ApplicableCategories},
		{exclProds, &s.ExcludedProducts},
		{exclCats, &s.ExcludedCategories},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return s, fmt.Errorf("decoding scope ids: %w", err)
		}
	}
	return s, nil
}

func scanTiers(raw []byte) ([]discount.Tier, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var tiers []discount.Tier
	if err := json.Unmarshal(raw, &tiers); err != nil {
		return nil, fmt.Errorf("decoding tiered rules: %w", err)
	}
	return tiers, nil
}
