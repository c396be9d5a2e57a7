// Package cart defines the ephemeral cart snapshot the pricing engine
// evaluates. Carts are supplied per request by the storefront and are never
// persisted here.
package cart

import "github.com/shopspring/decimal"

// Line is a single cart entry. CategoryID and VariantID are optional: zero
// means the storefront did not supply them.
type Line struct {
	ProductID  int64
	CategoryID int64
	VariantID  int64
	Quantity   int
	UnitPrice  decimal.Decimal
}

// Total returns the line's extended price (unit price times quantity).
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Subtotal sums price * quantity across all lines.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Total())
	}
	return sum
}

// Validate rejects carts that cannot be priced: empty carts, non-positive
// quantities, and negative unit prices.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid cart: " + e.Reason
}

// Validate checks the structural invariants of a cart snapshot.
func Validate(lines []Line) error {
	if len(lines) == 0 {
		return &ValidationError{Reason: "no items"}
	}
	for _, line := range lines {
		if line.ProductID <= 0 {
			return &ValidationError{Reason: "missing product id"}
		}
		if line.Quantity <= 0 {
			return &ValidationError{Reason: "quantity must be greater than 0"}
		}
		if line.UnitPrice.IsNegative() {
			return &ValidationError{Reason: "negative unit price"}
		}
	}
	return nil
}
