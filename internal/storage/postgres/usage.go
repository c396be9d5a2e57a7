package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/itadmit/quickshop-pricing/internal/domain/usage"
)

const (
	// ON CONFLICT DO NOTHING + affected-rows check is the idempotency
	// guarantee: a replayed order id inserts nothing and aborts the
	// transaction before any counter moves.
	insertUsageSQL = `INSERT INTO coupon_usages
		(coupon_id, order_id, customer_id, session_id, discount_amount, order_total, used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (coupon_id, order_id) DO NOTHING`

	// The increment is guarded so two in-flight checkouts cannot push
	// usage_count past usage_limit: the losing transaction matches no row.
	incrementUsageCountSQL = `UPDATE coupons
		SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)
		RETURNING influencer_id`

	findCommissionRateSQL = `SELECT commission_rate FROM influencers WHERE id = $1`

	upsertDailyStatsSQL = `INSERT INTO influencer_stats
		(influencer_id, date, orders, revenue, commission, coupon_uses)
		VALUES ($1, $2, 1, $3, $4, 1)
		ON CONFLICT (influencer_id, date) DO UPDATE SET
			orders      = influencer_stats.orders + 1,
			revenue     = influencer_stats.revenue + EXCLUDED.revenue,
			commission  = influencer_stats.commission + EXCLUDED.commission,
			coupon_uses = influencer_stats.coupon_uses + 1`

	bumpInfluencerTotalsSQL = `UPDATE influencers
		SET total_earnings = total_earnings + $2,
		    total_orders   = total_orders + 1
		WHERE id = $1`

	listStatsSQL = `SELECT date, orders, revenue, commission, coupon_uses
		FROM influencer_stats
		WHERE influencer_id = $1
		  AND ($2::date IS NULL OR date >= $2)
		  AND ($3::date IS NULL OR date <= $3)
		ORDER BY date DESC`
)

var (
	_ usage.Store       = (*UsageRepository)(nil)
	_ usage.StatsReader = (*UsageRepository)(nil)
)

// UsageRepository implements the transactional usage store and the stats
// read side, backed by PostgreSQL.
type UsageRepository struct {
	pool *pgxpool.Pool
}

// NewUsageRepository returns a UsageRepository that uses the given pool.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// RecordUsage performs the three-step redemption update as one transaction:
// usage row insert, guarded coupon counter increment, and influencer
// bookkeeping when the coupon is affiliate-linked.
func (r *UsageRepository) RecordUsage(ctx context.Context, rec usage.Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin usage transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, insertUsageSQL,
		rec.CouponID, rec.OrderID, rec.CustomerID, nullString(rec.SessionID),
		rec.DiscountAmount, rec.OrderTotal, rec.UsedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting usage for coupon %d: %w", rec.CouponID, err)
	}
	if tag.RowsAffected() == 0 {
		return usage.ErrDuplicateOrder
	}

	var influencerID *int64
	err = tx.QueryRow(ctx, incrementUsageCountSQL, rec.CouponID).Scan(&influencerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return usage.ErrUsageLimitExceeded
		}
		return fmt.Errorf("incrementing usage count for coupon %d: %w", rec.CouponID, err)
	}

	if influencerID != nil {
		if err := r.updateInfluencer(ctx, tx, *influencerID, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit usage transaction: %w", err)
	}
	return nil
}

func (r *UsageRepository) updateInfluencer(ctx context.Context, tx pgx.Tx, influencerID int64, rec usage.Record) error {
	var rate decimal.Decimal
	if err := tx.QueryRow(ctx, findCommissionRateSQL, influencerID).Scan(&rate); err != nil {
		return fmt.Errorf("finding influencer %d: %w", influencerID, err)
	}

	commission := rec.OrderTotal.Mul(rate).Round(2)
	day := rec.UsedAt.UTC().Truncate(24 * time.Hour)

	if _, err := tx.Exec(ctx, upsertDailyStatsSQL, influencerID, day, rec.OrderTotal, commission); err != nil {
		return fmt.Errorf("upserting stats for influencer %d: %w", influencerID, err)
	}
	if _, err := tx.Exec(ctx, bumpInfluencerTotalsSQL, influencerID, commission); err != nil {
		return fmt.Errorf("updating totals for influencer %d: %w", influencerID, err)
	}
	return nil
}

// ListStats returns an influencer's daily stats, newest first. Zero from/to
// times mean an open-ended range.
func (r *UsageRepository) ListStats(ctx context.Context, influencerID int64, from, to time.Time) ([]usage.DailyStat, error) {
	rows, err := r.pool.Query(ctx, listStatsSQL, influencerID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, fmt.Errorf("listing stats for influencer %d: %w", influencerID, err)
	}

	stats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (usage.DailyStat, error) {
		var s usage.DailyStat
		err := row.Scan(&s.Date, &s.Orders, &s.Revenue, &s.Commission, &s.CouponUses)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing stats for influencer %d: %w", influencerID, err)
	}
	return stats, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
