package usage

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Recorder is the post-order entry point. It must be invoked only after the
// order is durably persisted; a recording failure never invalidates the
// order, it is surfaced for out-of-band reconciliation.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder creates a Recorder. A nil clock defaults to time.Now.
func NewRecorder(store Store, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{store: store, now: now}
}

// RecordUsage validates the record and hands it to the transactional store.
// Re-invocation for the same order returns ErrDuplicateOrder without
// double-counting.
func (r *Recorder) RecordUsage(ctx context.Context, rec Record) error {
	if rec.CouponID <= 0 {
		return errors.New("coupon id required")
	}
	if rec.OrderID == "" {
		return errors.New("order id required")
	}
	if rec.DiscountAmount.IsNegative() || rec.OrderTotal.IsNegative() {
		return errors.New("amounts must not be negative")
	}

	if rec.UsedAt.IsZero() {
		rec.UsedAt = r.now()
	}

	if err := r.store.RecordUsage(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateOrder) {
			zctx.From(ctx).Warn("duplicate coupon usage rejected",
				zap.Int64("coupon_id", rec.CouponID),
				zap.String("order_id", rec.OrderID),
			)
			return ErrDuplicateOrder
		}
		return errors.Wrap(err, "record coupon usage")
	}

	return nil
}
