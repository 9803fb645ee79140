package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopforge/orderflow/internal/domain/campaign"
)

var (
	_ campaign.Source  = (*CampaignRepository)(nil)
	_ campaign.Counter = (*CampaignRepository)(nil)
)

// CampaignRepository implements campaign.Source and campaign.Counter backed
// by PostgreSQL.
type CampaignRepository struct {
	pool *pgxpool.Pool
}

// NewCampaignRepository returns a CampaignRepository that uses the given pool.
func NewCampaignRepository(pool *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{pool: pool}
}

// ActiveCampaigns returns campaigns whose [starts_at, ends_at) window
// contains now, oldest first. The returned order is the order the discount
// engine compounds them in, so it must be stable across reads.
func (r *CampaignRepository) ActiveCampaigns(ctx context.Context, now time.Time) ([]campaign.Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, kind, amount, buy_x, get_y,
		       categories, excluded_products,
		       starts_at, ends_at, min_purchase, uses
		FROM campaigns
		WHERE starts_at <= $1 AND ends_at > $1
		ORDER BY created_at, id`, now)
	if err != nil {
		return nil, fmt.Errorf("listing active campaigns: %w", err)
	}
	defer rows.Close()

	var out []campaign.Campaign
	for rows.Next() {
		var c campaign.Campaign
		var kind string
		err := rows.Scan(
			&c.ID, &c.Name, &kind, &c.Amount, &c.BuyX, &c.GetY,
			&c.Categories, &c.ExcludedProducts,
			&c.StartsAt, &c.EndsAt, &c.MinPurchase, &c.Uses,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning campaign row: %w", err)
		}
		// An unknown kind is corrupt data. The engine skips it anyway, so
		// carry it through as-is instead of failing the whole read.
		c.Kind = campaign.Kind(kind)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading campaign rows: %w", err)
	}
	return out, nil
}

// IncrementUses bumps the usage counter of every given campaign.
func (r *CampaignRepository) IncrementUses(ctx context.Context, ids []string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET uses = uses + 1 WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("incrementing campaign uses: %w", err)
	}
	return nil
}
