package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopforge/orderflow/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

const productColumns = `id, name, price, stock, categories, discount_excluded`

// List returns the full catalog ordered by name.
func (r *ProductRepository) List(ctx context.Context) ([]product.Snapshot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// GetByID returns a single product snapshot.
// Returns product.ErrNotFound when no such product exists.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Snapshot, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)

	var s product.Snapshot
	err := row.Scan(&s.ID, &s.Name, &s.Price, &s.Stock, &s.Categories, &s.DiscountExcluded)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &s, nil
}

// GetByIDs batch-fetches snapshots. Missing ids are simply absent from the
// result; the caller decides what that means.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Snapshot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func scanProducts(rows pgx.Rows) ([]product.Snapshot, error) {
	var out []product.Snapshot
	for rows.Next() {
		var s product.Snapshot
		err := rows.Scan(&s.ID, &s.Name, &s.Price, &s.Stock, &s.Categories, &s.DiscountExcluded)
		if err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading product rows: %w", err)
	}
	return out, nil
}
