package pricing

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/itadmit/quickshop-pricing/internal/domain/cart"
	"github.com/itadmit/quickshop-pricing/internal/domain/coupon"
	"github.com/itadmit/quickshop-pricing/internal/domain/discount"
	"github.com/itadmit/quickshop-pricing/internal/domain/store"
)

// Engine prices carts. It holds no mutable state: every evaluation reads a
// point-in-time snapshot of store and rule data, so callers may run many
// evaluations concurrently. Previews are advisory; finalization must call
// Price again against fresh data.
type Engine struct {
	stores    store.Repository
	coupons   coupon.Validator
	discounts discount.Repository
	segments  discount.SegmentMatcher
	policy    StackingPolicy
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithStackingPolicy overrides the default StackAll policy.
func WithStackingPolicy(p StackingPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithSegmentMatcher substitutes the customer segmentation predicate.
func WithSegmentMatcher(m discount.SegmentMatcher) Option {
	return func(e *Engine) { e.segments = m }
}

// WithClock injects the evaluation instant; used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a pricing Engine with the required collaborators.
func NewEngine(
	stores store.Repository,
	coupons coupon.Validator,
	discounts discount.Repository,
	opts ...Option,
) *Engine {
	e := &Engine{
		stores:    stores,
		coupons:   coupons,
		discounts: discounts,
		segments:  discount.MatchAllSegments{},
		policy:    StackAll,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Price evaluates a cart for a store.
//
// Configuration failures (unknown store, malformed cart) return an error and
// no result. An invalid coupon never aborts pricing: the result carries the
// rejection and the cart is priced without it. Malformed automatic rules are
// skipped and logged.
func (e *Engine) Price(ctx context.Context, req Request) (*Result, error) {
	st, err := e.stores.FindBySlug(ctx, req.StoreSlug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "resolve store")
	}

	if err := cart.Validate(req.Lines); err != nil {
		return nil, err
	}

	subtotal := cart.Subtotal(req.Lines)
	shippingOriginal := st.Shipping(subtotal)

	res := &Result{
		Subtotal:         subtotal,
		ShippingOriginal: shippingOriginal,
		DiscountAmount:   decimal.Zero,
	}

	if req.CouponCode != "" {
		e.applyCoupon(ctx, st, req, subtotal, res)
	}

	if err := e.applyAutomatic(ctx, st, req, subtotal, res); err != nil {
		return nil, err
	}

	res.ShippingFinal = shippingOriginal
	if res.HasFreeShipping() {
		res.ShippingFinal = decimal.Zero
	}

	discounted := subtotal.Sub(res.DiscountAmount)
	if discounted.IsNegative() {
		discounted = decimal.Zero
	}
	res.Total = discounted.Add(res.ShippingFinal).Round(2)
	res.DiscountAmount = res.DiscountAmount.Round(2)
	res.Savings = res.DiscountAmount.Add(shippingOriginal.Sub(res.ShippingFinal))

	return res, nil
}

// applyCoupon validates and prices the supplied code. Rejections are recorded
// on the result; repository failures are logged and degrade to "no coupon"
// so a marketing-rule defect never blocks checkout.
func (e *Engine) applyCoupon(ctx context.Context, st *store.Store, req Request, subtotal decimal.Decimal, res *Result) {
	c, err := e.coupons.Validate(ctx, st.ID, req.CouponCode, req.Lines, req.Customer)
	if err != nil {
		if rej, ok := coupon.IsRejection(err); ok {
			res.CouponRejection = rej
			return
		}
		zctx.From(ctx).Error("coupon validation failed",
			zap.String("code", req.CouponCode),
			zap.Error(err),
		)
		res.CouponRejection = &coupon.Rejection{
			Code:    coupon.RejectNotFound,
			Message: "coupon could not be validated",
		}
		return
	}

	comp, err := discount.Compute(&c.Rule, req.Lines, subtotal)
	if err != nil {
		zctx.From(ctx).Warn("skipping uncomputable coupon",
			zap.Int64("coupon_id", c.ID),
			zap.Error(err),
		)
		res.CouponRejection = &coupon.Rejection{
			Code:    coupon.RejectNotApplicable,
			Message: "coupon does not apply to items in cart",
		}
		return
	}

	res.Applied = append(res.Applied, AppliedDiscount{
		Source: SourceCoupon,
		RuleID: c.ID,
		Name:   c.Name,
		Amount: comp.Amount,
		Type:   c.Type,
	})
	res.DiscountAmount = res.DiscountAmount.Add(comp.Amount)
}

// applyAutomatic fetches, filters, orders, and prices the store's automatic
// discounts.
func (e *Engine) applyAutomatic(ctx context.Context, st *store.Store, req Request, subtotal decimal.Decimal, res *Result) error {
	rules, err := e.discounts.ListActive(ctx, st.ID, e.now())
	if err != nil {
		return errors.Wrap(err, "list automatic discounts")
	}

	eligible := rules[:0:0]
	for _, rule := range rules {
		if !rule.MeetsMinimum(subtotal) {
			continue
		}
		if !rule.Scope.Applies(req.Lines) {
			continue
		}
		if !e.segments.Matches(ctx, &rule, req.Customer) {
			continue
		}
		eligible = append(eligible, rule)
	}

	// Priority descending, most recently created first on ties. Repositories
	// already order this way; sorting again keeps the breakdown deterministic
	// for in-memory implementations.
	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority > eligible[j].Priority
		}
		return eligible[i].CreatedAt.After(eligible[j].CreatedAt)
	})

	for i := range eligible {
		rule := &eligible[i]
		comp, err := discount.Compute(&rule.Rule, req.Lines, subtotal)
		if err != nil {
			zctx.From(ctx).Warn("skipping malformed automatic discount",
				zap.Int64("discount_id", rule.ID),
				zap.Error(err),
			)
			continue
		}
		if comp.Amount.IsZero() && !comp.FreeShipping {
			continue
		}

		res.Applied = append(res.Applied, AppliedDiscount{
			Source: SourceAutomatic,
			RuleID: rule.ID,
			Name:   rule.Name,
			Amount: comp.Amount,
			Type:   rule.Type,
		})
		res.DiscountAmount = res.DiscountAmount.Add(comp.Amount)

		if e.policy == HaltOnNonStackable && !rule.Stackable {
			break
		}
	}

	return nil
}
