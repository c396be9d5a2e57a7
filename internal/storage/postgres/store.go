package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itadmit/quickshop-pricing/internal/domain/store"
)

const findStoreBySlugSQL = `SELECT id, slug, name, currency, free_shipping_threshold, shipping_rate
	FROM stores WHERE slug = $1`

var _ store.Repository = (*StoreRepository)(nil)

// StoreRepository implements store.Repository backed by PostgreSQL.
type StoreRepository struct {
	pool *pgxpool.Pool
}

// NewStoreRepository returns a StoreRepository that uses the given pool.
func NewStoreRepository(pool *pgxpool.Pool) *StoreRepository {
	return &StoreRepository{pool: pool}
}

// FindBySlug resolves a tenant by its storefront slug.
// Returns store.ErrNotFound when no store matches.
func (r *StoreRepository) FindBySlug(ctx context.Context, slug string) (*store.Store, error) {
	rows, err := r.pool.Query(ctx, findStoreBySlugSQL, slug)
	if err != nil {
		return nil, fmt.Errorf("finding store %q: %w", slug, err)
	}

	st, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (store.Store, error) {
		var s store.Store
		err := row.Scan(&s.ID, &s.Slug, &s.Name, &s.Currency, &s.FreeShippingThreshold, &s.ShippingRate)
		return s, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("finding store %q: %w", slug, err)
	}
	return &st, nil
}
