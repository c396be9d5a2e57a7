package discount

import (
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/itadmit/quickshop-pricing/internal/domain/cart"
)

var hundred = decimal.NewFromInt(100)

// ErrUnsupportedRule marks a rule the calculator cannot price (unknown type,
// cross-item BOGO, malformed tier). The orchestrator skips such rules instead
// of aborting the cart.
var ErrUnsupportedRule = errors.New("unsupported discount rule")

// Computation is the outcome of pricing one rule against a cart.
type Computation struct {
	// Amount is the monetary discount, never negative, rounded to 2 places.
	Amount decimal.Decimal
	// FreeShipping is set for free-shipping rules; their Amount is zero and
	// the shipping charge is zeroed downstream instead.
	FreeShipping bool
}

// Compute dispatches on the rule type and returns the discount amount for the
// given cart. It is a pure function of its inputs.
func Compute(r *Rule, lines []cart.Line, subtotal decimal.Decimal) (Computation, error) {
	switch r.Type {
	case TypePercentage:
		return Computation{Amount: percentageAmount(r.Value, r.MaximumDiscount, subtotal)}, nil

	case TypeFixedAmount:
		return Computation{Amount: fixedAmount(r.Value, subtotal)}, nil

	case TypeFreeShipping:
		return Computation{Amount: decimal.Zero, FreeShipping: true}, nil

	case TypeBuyXGetY:
		return bogoAmount(r, lines)

	case TypeTiered:
		return tieredAmount(r.Tiers, subtotal)

	default:
		return Computation{}, errors.Wrapf(ErrUnsupportedRule, "discount type %q", r.Type)
	}
}

func percentageAmount(value decimal.Decimal, maxDiscount *decimal.Decimal, subtotal decimal.Decimal) decimal.Decimal {
	amount := subtotal.Mul(value).Div(hundred)
	if maxDiscount != nil {
		amount = decimal.Min(amount, *maxDiscount)
	}
	return clampMoney(amount)
}

func fixedAmount(value, subtotal decimal.Decimal) decimal.Decimal {
	return clampMoney(decimal.Min(value, subtotal))
}

// bogoAmount computes the same-item buy-X-get-Y discount: for each line in
// scope, floor(quantity/buy) sets each grant get free units at that line's
// unit price.
func bogoAmount(r *Rule, lines []cart.Line) (Computation, error) {
	if r.BogoMode == BogoCrossItem {
		return Computation{}, errors.Wrap(ErrUnsupportedRule, "cross-item buy-x-get-y")
	}
	if r.BuyQuantity <= 0 || r.GetQuantity <= 0 {
		return Computation{}, errors.Wrap(ErrUnsupportedRule, "buy-x-get-y requires positive buy and get quantities")
	}

	qualifying := lines
	if len(r.Scope.ApplicableProducts) > 0 {
		qualifying = nil
		for _, l := range lines {
			if containsID(r.Scope.ApplicableProducts, l.ProductID) {
				qualifying = append(qualifying, l)
			}
		}
	}

	total := decimal.Zero
	for _, l := range qualifying {
		sets := l.Quantity / r.BuyQuantity
		freeUnits := sets * r.GetQuantity
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(freeUnits))))
	}
	return Computation{Amount: clampMoney(total)}, nil
}

// tieredAmount selects the tier with the greatest MinAmount still at or below
// the subtotal and applies its percentage or fixed semantics. No qualifying
// tier means a zero discount.
func tieredAmount(tiers []Tier, subtotal decimal.Decimal) (Computation, error) {
	if len(tiers) == 0 {
		return Computation{Amount: decimal.Zero}, nil
	}

	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinAmount.LessThan(sorted[j].MinAmount)
	})

	var selected *Tier
	for i := range sorted {
		if subtotal.GreaterThanOrEqual(sorted[i].MinAmount) {
			selected = &sorted[i]
		}
	}
	if selected == nil {
		return Computation{Amount: decimal.Zero}, nil
	}

	switch selected.Type {
	case TypePercentage:
		return Computation{Amount: percentageAmount(selected.Value, selected.MaxDiscount, subtotal)}, nil
	case TypeFixedAmount:
		return Computation{Amount: fixedAmount(selected.Value, subtotal)}, nil
	default:
		return Computation{}, errors.Wrapf(ErrUnsupportedRule, "tier discount type %q", selected.Type)
	}
}

// clampMoney floors negatives at zero and rounds to 2 decimal places.
func clampMoney(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(2)
}
