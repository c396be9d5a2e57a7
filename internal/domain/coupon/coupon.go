// Package coupon models shopper-entered codes and the validation state
// machine that decides whether one may discount a cart.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/itadmit/quickshop-pricing/internal/domain/discount"
)

// ErrNotFound is returned by repositories when no active coupon matches a
// code within a store.
var ErrNotFound = errors.New("coupon not found")

// Coupon is a discount rule redeemed by code. Codes are unique per store and
// matched case-insensitively.
type Coupon struct {
	discount.Rule

	Code string

	// UsageLimit caps redemptions across all shoppers; nil means unlimited.
	UsageLimit *int
	UsageCount int

	// CustomerLimit caps redemptions per identified shopper; nil means
	// unlimited. Guests are never counted against it.
	CustomerLimit *int
}

// Repository provides coupon lookup and per-customer usage counting.
type Repository interface {
	// FindByCode returns the ACTIVE coupon matching code (case-insensitive)
	// within the store, or ErrNotFound.
	FindByCode(ctx context.Context, storeID int64, code string) (*Coupon, error)

	// CountCustomerUsage returns how many usage records exist for the coupon
	// and customer pair.
	CountCustomerUsage(ctx context.Context, couponID, customerID int64) (int, error)
}

// RejectionCode is a machine-readable reason a coupon did not apply.
type RejectionCode string

const (
	RejectNotFound             RejectionCode = "not_found"
	RejectNotStarted           RejectionCode = "not_started"
	RejectExpired              RejectionCode = "expired"
	RejectUsageLimitReached    RejectionCode = "usage_limit_reached"
	RejectBelowMinimum         RejectionCode = "below_minimum"
	RejectCustomerLimitReached RejectionCode = "customer_limit_reached"
	RejectNotApplicable        RejectionCode = "not_applicable"
)

// Rejection explains why a coupon was refused. It is an error so callers can
// pass it through error paths, but pricing treats it as a non-fatal outcome.
type Rejection struct {
	Code    RejectionCode
	Message string
}

func (r *Rejection) Error() string { return r.Message }

// IsRejection reports whether err is a coupon rejection and returns it.
func IsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

func rejectf(code RejectionCode, msg string) *Rejection {
	return &Rejection{Code: code, Message: msg}
}

// Clock supplies the validation instant; injectable for tests.
type Clock func() time.Time
