// Package campaign implements admin-defined automatic discounts applied to
// matching cart lines without customer action.
package campaign

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/shopforge/orderflow/internal/domain/product"
)

// Kind enumerates the supported campaign discount strategies.
type Kind string

const (
	// KindFixed subtracts a fixed amount from the unit price.
	KindFixed Kind = "fixed"
	// KindPercentage reduces the unit price by a percentage in (0,100].
	KindPercentage Kind = "percentage"
	// KindFreeShipping waives the shipping cost for the whole cart.
	KindFreeShipping Kind = "free_shipping"
	// KindBuyXGetY grants free units: every buyX units purchased make getY
	// units free. Free units ship but are not billed.
	KindBuyXGetY Kind = "buy_x_get_y"
)

// ParseKind converts a stored kind string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindFixed, KindPercentage, KindFreeShipping, KindBuyXGetY:
		return Kind(s), nil
	default:
		return "", errors.Errorf("unknown campaign kind: %q", s)
	}
}

// Campaign is a time-bounded, category-scoped automatic discount. The order
// pipeline never mutates a campaign definition; only usage counters change,
// and only on completed orders.
type Campaign struct {
	ID   string
	Name string
	Kind Kind

	// Amount is the money off for fixed campaigns and the percent in
	// (0,100] for percentage campaigns. Unused for other kinds.
	Amount decimal.Decimal

	// BuyX/GetY configure buy_x_get_y campaigns.
	BuyX int
	GetY int

	Categories       []string
	ExcludedProducts []string

	// Validity window [StartsAt, EndsAt).
	StartsAt time.Time
	EndsAt   time.Time

	// MinPurchase is evaluated against the post-campaign subtotal.
	MinPurchase decimal.Decimal

	Uses int
}

// Active reports whether now falls inside the campaign's validity window.
// Status is recomputed from the wall clock at read time; there is no
// background state transition.
func (c *Campaign) Active(now time.Time) bool {
	return !now.Before(c.StartsAt) && now.Before(c.EndsAt)
}

// Excludes reports whether the product is on the campaign's exclusion list.
func (c *Campaign) Excludes(productID string) bool {
	for _, id := range c.ExcludedProducts {
		if id == productID {
			return true
		}
	}
	return false
}

// wellFormed filters out corrupt campaign data before any effect is applied.
// A malformed campaign is skipped entirely rather than partially applied.
func (c *Campaign) wellFormed() bool {
	switch c.Kind {
	case KindFixed:
		return c.Amount.IsPositive()
	case KindPercentage:
		return c.Amount.IsPositive() && c.Amount.LessThanOrEqual(hundred)
	case KindBuyXGetY:
		return c.BuyX > 0 && c.GetY > 0
	case KindFreeShipping:
		return true
	default:
		return false
	}
}

// Matches reports whether the campaign applies to the given product: the
// campaign's category set must intersect the product's categories, the
// product must not be excluded, and the product must participate in
// automatic discounts at all.
func (c *Campaign) Matches(p *product.Snapshot) bool {
	if p.DiscountExcluded {
		return false
	}
	if !p.InAnyCategory(c.Categories) {
		return false
	}
	return !c.Excludes(p.ID)
}

// Source supplies the set of campaigns active at the given instant. The
// orchestrator resolves this once per checkout and passes the result into
// the engine; the engine itself holds no campaign state.
type Source interface {
	ActiveCampaigns(ctx context.Context, now time.Time) ([]Campaign, error)
}

// Counter increments usage counters for campaigns that were applied to a
// completed, paid order.
type Counter interface {
	IncrementUses(ctx context.Context, ids []string) error
}
