package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopforge/orderflow/internal/domain/cart"
)

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store backed by PostgreSQL. One row per cart
// line; Attributes lives in a JSONB column.
type CartStore struct {
	pool *pgxpool.Pool
}

// NewCartStore returns a CartStore that uses the given pool.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

// Lines returns the customer's current cart lines.
func (s *CartStore) Lines(ctx context.Context, customerID string) ([]cart.Line, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT product_id, quantity, attributes
		FROM carts
		WHERE customer_id = $1
		ORDER BY added_at`, customerID)
	if err != nil {
		return nil, fmt.Errorf("reading cart for %q: %w", customerID, err)
	}
	defer rows.Close()

	var out []cart.Line
	for rows.Next() {
		var l cart.Line
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.Attributes); err != nil {
			return nil, fmt.Errorf("scanning cart line: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading cart lines: %w", err)
	}
	return out, nil
}

// Clear removes every line of the customer's cart.
func (s *CartStore) Clear(ctx context.Context, customerID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM carts WHERE customer_id = $1`, customerID)
	if err != nil {
		return fmt.Errorf("clearing cart for %q: %w", customerID, err)
	}
	return nil
}

// AddLine inserts or bumps a cart line. Used by seeding and tests; the
// order pipeline itself only reads and clears.
func (s *CartStore) AddLine(ctx context.Context, customerID string, l cart.Line) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO carts (customer_id, product_id, quantity, attributes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (customer_id, product_id) DO UPDATE SET
			quantity = carts.quantity + EXCLUDED.quantity,
			attributes = EXCLUDED.attributes`,
		customerID, l.ProductID, l.Quantity, l.Attributes)
	if err != nil {
		return fmt.Errorf("adding cart line for %q: %w", customerID, err)
	}
	return nil
}
