package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/itadmit/quickshop-pricing/internal/domain/cart"
	"github.com/itadmit/quickshop-pricing/internal/domain/discount"
)

// Validator checks a coupon code against a cart. On success it returns the
// coupon unchanged; computing the discount amount is a separate step so
// preview callers can report validity without committing to a figure.
type Validator interface {
	Validate(ctx context.Context, storeID int64, code string, lines []cart.Line, customer *discount.Customer) (*Coupon, error)
}

// RepoValidator implements Validator against a Repository.
//
// Checks run in a fixed order and short-circuit on the first failure, because
// the rejection reason is user-facing: lookup, time window, global usage
// ceiling, minimum amount, per-customer ceiling, applicability.
type RepoValidator struct {
	repo Repository
	now  Clock
}

// NewRepoValidator creates a RepoValidator. A nil clock defaults to time.Now.
func NewRepoValidator(repo Repository, now Clock) *RepoValidator {
	if now == nil {
		now = time.Now
	}
	return &RepoValidator{repo: repo, now: now}
}

// Validate runs the full check sequence. A *Rejection error means the coupon
// was refused for a shopper-visible reason; any other error is a lookup
// failure.
func (v *RepoValidator) Validate(
	ctx context.Context,
	storeID int64,
	code string,
	lines []cart.Line,
	customer *discount.Customer,
) (*Coupon, error) {
	c, err := v.repo.FindByCode(ctx, storeID, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, rejectf(RejectNotFound, "coupon not found or inactive")
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	now := v.now()
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return nil, rejectf(RejectNotStarted, "coupon is not yet active")
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return nil, rejectf(RejectExpired, "coupon has expired")
	}

	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return nil, rejectf(RejectUsageLimitReached, "coupon usage limit reached")
	}

	subtotal := cart.Subtotal(lines)
	if !c.MeetsMinimum(subtotal) {
		return nil, rejectf(RejectBelowMinimum,
			fmt.Sprintf("minimum order amount is %s", c.MinimumAmount.StringFixed(2)))
	}

	if customer != nil && c.CustomerLimit != nil {
		used, err := v.repo.CountCustomerUsage(ctx, c.ID, customer.ID)
		if err != nil {
			return nil, errors.Wrap(err, "count customer usage")
		}
		if used >= *c.CustomerLimit {
			return nil, rejectf(RejectCustomerLimitReached, "customer usage limit reached for this coupon")
		}
	}

	if !c.Scope.Applies(lines) {
		return nil, rejectf(RejectNotApplicable, "coupon does not apply to items in cart")
	}

	return c, nil
}

// PreviewAmount computes the discount a validated coupon would grant. It is a
// convenience for the standalone validate endpoint; the pricing engine calls
// discount.Compute directly.
func PreviewAmount(c *Coupon, lines []cart.Line) (discount.Computation, error) {
	return discount.Compute(&c.Rule, lines, cart.Subtotal(lines))
}
