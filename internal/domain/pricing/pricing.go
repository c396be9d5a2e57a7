// Package pricing composes the applicability filter, coupon validator, and
// amount calculator into the cart-total orchestrator invoked on every preview
// and again at order finalization.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/itadmit/quickshop-pricing/internal/domain/cart"
	"github.com/itadmit/quickshop-pricing/internal/domain/coupon"
	"github.com/itadmit/quickshop-pricing/internal/domain/discount"
)

// Source tags where an applied discount came from.
type Source string

const (
	SourceCoupon    Source = "coupon"
	SourceAutomatic Source = "automatic"
)

// AppliedDiscount is one entry in the pricing breakdown. Produced fresh per
// call; never persisted independently.
type AppliedDiscount struct {
	Source Source
	RuleID int64
	Name   string
	Amount decimal.Decimal
	Type   discount.Type
}

// StackingPolicy decides how automatic discounts combine. The stored
// stackable flag only takes effect under HaltOnNonStackable.
type StackingPolicy int

const (
	// StackAll applies every qualifying automatic discount regardless of the
	// stackable flag. This matches observed production behavior and is the
	// default.
	StackAll StackingPolicy = iota
	// HaltOnNonStackable stops automatic evaluation after the first applied
	// rule that is marked non-stackable.
	HaltOnNonStackable
)

// Request is one pricing evaluation. Customer is nil for guest checkout.
type Request struct {
	StoreSlug  string
	Lines      []cart.Line
	CouponCode string
	Customer   *discount.Customer
}

// Result is the full pricing breakdown. Intermediate figures are part of the
// contract: the storefront renders the savings breakdown, not just the total.
type Result struct {
	Subtotal         decimal.Decimal
	ShippingOriginal decimal.Decimal
	ShippingFinal    decimal.Decimal
	DiscountAmount   decimal.Decimal
	Total            decimal.Decimal
	Savings          decimal.Decimal
	Applied          []AppliedDiscount

	// CouponRejection is set when a supplied code was refused; the rest of
	// the cart is still priced.
	CouponRejection *coupon.Rejection
}

// HasFreeShipping reports whether any applied discount zeroes shipping.
func (r *Result) HasFreeShipping() bool {
	for _, a := range r.Applied {
		if a.Type == discount.TypeFreeShipping {
			return true
		}
	}
	return false
}
