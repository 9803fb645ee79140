package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopforge/orderflow/internal/domain/promotion"
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given
// pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// FindByCode looks up a code by its stored uppercase value. The validator
// normalizes before calling, but UPPER() on the parameter keeps direct
// callers safe too. Returns promotion.ErrNotFound when no such code exists.
func (r *PromotionRepository) FindByCode(ctx context.Context, code string) (*promotion.Code, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, code, kind, amount, max_discount,
		       scope, allowed_customers,
		       single_use_per_customer, usage_limit, usage_count,
		       min_purchase, starts_at, ends_at,
		       applicable_categories, excluded_products
		FROM promotion_codes
		WHERE code = UPPER($1)`, code)

	var c promotion.Code
	var kind, scope string
	err := row.Scan(
		&c.ID, &c.Code, &kind, &c.Amount, &c.MaxDiscount,
		&scope, &c.AllowedCustomers,
		&c.SingleUsePerCustomer, &c.UsageLimit, &c.UsageCount,
		&c.MinPurchase, &c.StartsAt, &c.EndsAt,
		&c.ApplicableCategories, &c.ExcludedProducts,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrNotFound
		}
		return nil, fmt.Errorf("finding promotion code %q: %w", code, err)
	}
	c.Kind = promotion.Kind(kind)
	c.Scope = promotion.Scope(scope)
	return &c, nil
}

// IncrementUsage consumes one use. The guard re-checks the limit so a burst
// of concurrent finalizations cannot push usage_count past usage_limit.
func (r *PromotionRepository) IncrementUsage(ctx context.Context, codeID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE promotion_codes
		SET usage_count = usage_count + 1
		WHERE id = $1
		  AND (usage_limit IS NULL OR usage_count < usage_limit)`, codeID)
	if err != nil {
		return fmt.Errorf("incrementing usage for code %q: %w", codeID, err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrUsageLimitReached
	}
	return nil
}

// CodeValues returns every stored code value, for seeding the in-memory
// existence filter at startup.
func (r *PromotionRepository) CodeValues(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT code FROM promotion_codes`)
	if err != nil {
		return nil, fmt.Errorf("listing promotion code values: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scanning promotion code value: %w", err)
		}
		out = append(out, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading promotion code values: %w", err)
	}
	return out, nil
}

// Upsert inserts or replaces a code definition by its code value. Used by
// the bulk ingest command, not by the order pipeline.
func (r *PromotionRepository) Upsert(ctx context.Context, c *promotion.Code) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO promotion_codes (
			id, code, kind, amount, max_discount,
			scope, allowed_customers,
			single_use_per_customer, usage_limit, usage_count,
			min_purchase, starts_at, ends_at,
			applicable_categories, excluded_products
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (code) DO UPDATE SET
			kind = EXCLUDED.kind,
			amount = EXCLUDED.amount,
			max_discount = EXCLUDED.max_discount,
			scope = EXCLUDED.scope,
			allowed_customers = EXCLUDED.allowed_customers,
			single_use_per_customer = EXCLUDED.single_use_per_customer,
			usage_limit = EXCLUDED.usage_limit,
			min_purchase = EXCLUDED.min_purchase,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at,
			applicable_categories = EXCLUDED.applicable_categories,
			excluded_products = EXCLUDED.excluded_products`,
		c.ID, c.Code, string(c.Kind), c.Amount, c.MaxDiscount,
		string(c.Scope), c.AllowedCustomers,
		c.SingleUsePerCustomer, c.UsageLimit, c.UsageCount,
		c.MinPurchase, c.StartsAt, c.EndsAt,
		c.ApplicableCategories, c.ExcludedProducts,
	)
	if err != nil {
		return fmt.Errorf("upserting promotion code %q: %w", c.Code, err)
	}
	return nil
}
