// Package usage records coupon redemptions after an order is durably
// created, and propagates them into affiliate commission bookkeeping. It is
// the sole mutating entry point of the pricing engine.
package usage

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrDuplicateOrder is returned when a usage record for the (coupon, order)
// pair already exists. Duplicates are rejected, never retried or merged.
var ErrDuplicateOrder = errors.New("coupon usage already recorded for order")

// ErrUsageLimitExceeded is returned when the guarded counter increment finds
// the coupon's global ceiling already reached.
var ErrUsageLimitExceeded = errors.New("coupon usage limit exceeded")

// Record is one redemption of a coupon by an order.
type Record struct {
	CouponID       int64
	OrderID        string
	CustomerID     *int64
	SessionID      string
	DiscountAmount decimal.Decimal
	OrderTotal     decimal.Decimal
	UsedAt         time.Time
}

// Store persists a redemption atomically: the usage row insert, the coupon
// counter increment, and the influencer bookkeeping must commit or fail as a
// unit. Implementations enforce idempotency via the unique (coupon, order)
// constraint.
type Store interface {
	RecordUsage(ctx context.Context, rec Record) error
}

// DailyStat is one day of an influencer's aggregated performance.
type DailyStat struct {
	Date       time.Time
	Orders     int64
	Revenue    decimal.Decimal
	Commission decimal.Decimal
	CouponUses int64
}

// StatsSummary folds a range of daily stats into running totals.
type StatsSummary struct {
	TotalOrders     int64
	TotalRevenue    decimal.Decimal
	TotalCommission decimal.Decimal
	TotalCouponUses int64
}

// StatsReader serves the affiliate dashboard's read side.
type StatsReader interface {
	// ListStats returns daily stats for an influencer, newest first. Zero
	// times mean an open-ended range.
	ListStats(ctx context.Context, influencerID int64, from, to time.Time) ([]DailyStat, error)
}

// Summarize reduces daily stats to their totals.
func Summarize(stats []DailyStat) StatsSummary {
	sum := StatsSummary{
		TotalRevenue:    decimal.Zero,
		TotalCommission: decimal.Zero,
	}
	for _, s := range stats {
		sum.TotalOrders += s.Orders
		sum.TotalRevenue = sum.TotalRevenue.Add(s.Revenue)
		sum.TotalCommission = sum.TotalCommission.Add(s.Commission)
		sum.TotalCouponUses += s.CouponUses
	}
	return sum
}
