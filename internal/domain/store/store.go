// Package store holds the tenant configuration the pricing engine consumes.
// Store CRUD is owned elsewhere; this engine only resolves slugs and reads
// shipping settings.
package store

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no store matches a slug.
var ErrNotFound = errors.New("store not found")

// Store is a tenant's pricing-relevant configuration.
type Store struct {
	ID       int64
	Slug     string
	Name     string
	Currency string

	// FreeShippingThreshold is the subtotal at which shipping becomes free.
	FreeShippingThreshold decimal.Decimal
	// ShippingRate is the flat shipping charge below the threshold.
	ShippingRate decimal.Decimal
}

// Shipping returns the original shipping charge for a subtotal: zero at or
// above the free-shipping threshold, the flat rate below it.
func (s *Store) Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(s.FreeShippingThreshold) {
		return decimal.Zero
	}
	return s.ShippingRate
}

// Repository resolves stores by slug.
type Repository interface {
	FindBySlug(ctx context.Context, slug string) (*Store, error)
}
