// Package discount holds the shared promotional rule model and the pure
// calculation functions over it. Both shopper-entered coupons and
// store-configured automatic discounts embed Rule; only their surrounding
// constraints (usage ceilings vs. priority/stacking) differ.
package discount

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypePercentage discounts the subtotal by a percentage, optionally
	// clamped by Rule.MaximumDiscount.
	TypePercentage Type = "PERCENTAGE"
	// TypeFixedAmount discounts a fixed sum, capped at the subtotal.
	TypeFixedAmount Type = "FIXED_AMOUNT"
	// TypeFreeShipping zeroes the shipping charge; it contributes nothing to
	// the item discount amount.
	TypeFreeShipping Type = "FREE_SHIPPING"
	// TypeBuyXGetY grants free units once a line reaches a purchased-quantity
	// threshold.
	TypeBuyXGetY Type = "BUY_X_GET_Y"
	// TypeTiered selects a percentage or fixed discount from the highest
	// subtotal threshold the cart reaches.
	TypeTiered Type = "TIERED"
)

// Status is a rule's activity state. The engine only ever acts on ActiveStatus
// rules; the administrative CRUD owns the rest of the lifecycle.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// BogoMode distinguishes the computed buy-X-get-Y variant from the richer
// cross-item configuration the schema can carry.
type BogoMode string

const (
	// BogoSameItem prices free units at the qualifying line's own unit price.
	BogoSameItem BogoMode = "same_item"
	// BogoCrossItem (separate buy-side and get-side product sets) is
	// representable but has no defined calculation; rules carrying it are
	// reported as unsupported and skipped.
	BogoCrossItem BogoMode = "cross_item"
)

// Scope restricts which cart lines a rule may act on. A nil inclusion slice
// means "no restriction"; exclusions always reject and override inclusion.
type Scope struct {
	ApplicableProducts   []int64
	ApplicableCategories []int64
	ExcludedProducts     []int64
	ExcludedCategories   []int64
}

// Tier is one threshold of a tiered rule. Only percentage and fixed-amount
// semantics are valid inside a tier.
type Tier struct {
	MinAmount   decimal.Decimal  `json:"minAmount"`
	Type        Type             `json:"discountType"`
	Value       decimal.Decimal  `json:"discountValue"`
	MaxDiscount *decimal.Decimal `json:"maxDiscount,omitempty"`
}

// Rule is the shared shape of a promotional rule.
type Rule struct {
	ID          int64
	StoreID     int64
	Name        string
	Description string
	Status      Status

	StartsAt  *time.Time
	ExpiresAt *time.Time

	Type            Type
	Value           decimal.Decimal
	MinimumAmount   *decimal.Decimal
	MaximumDiscount *decimal.Decimal

	Scope Scope

	// Buy-X-get-Y parameters; meaningful only when Type is TypeBuyXGetY.
	BuyQuantity int
	GetQuantity int
	BogoMode    BogoMode

	// Tiers is consulted only when Type is TypeTiered.
	Tiers []Tier

	// InfluencerID links the rule to an affiliate for commission attribution.
	InfluencerID *int64
}

// ActiveAt reports whether the rule is ACTIVE and inside its time window at
// the given instant. Open-ended windows pass.
func (r *Rule) ActiveAt(now time.Time) bool {
	if r.Status != StatusActive {
		return false
	}
	if r.StartsAt != nil && now.Before(*r.StartsAt) {
		return false
	}
	if r.ExpiresAt != nil && now.After(*r.ExpiresAt) {
		return false
	}
	return true
}

// MeetsMinimum reports whether the subtotal satisfies the rule's minimum
// amount, if one is set.
func (r *Rule) MeetsMinimum(subtotal decimal.Decimal) bool {
	return r.MinimumAmount == nil || subtotal.GreaterThanOrEqual(*r.MinimumAmount)
}

// Automatic is a store-configured rule applied without a shopper-entered
// code. Priority orders evaluation (higher first); CreatedAt breaks ties
// (most recent first). Stackable is consulted by the engine's stacking
// policy.
type Automatic struct {
	Rule
	Priority  int
	Stackable bool
	CreatedAt time.Time
}

// Repository lists the automatic discounts the engine may evaluate: ACTIVE,
// inside their time window at now, store-scoped, ordered by priority
// descending then creation time descending.
type Repository interface {
	ListActive(ctx context.Context, storeID int64, now time.Time) ([]Automatic, error)
}
