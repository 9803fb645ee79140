package campaign

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopforge/orderflow/internal/domain/product"
)

var hundred = decimal.NewFromInt(100)

// Line is a draft order line the engine applies discounts to. UnitPrice and
// EffectiveQty start at the list price and requested quantity and are
// reduced as campaigns apply.
type Line struct {
	ProductID    string
	Product      *product.Snapshot
	RequestedQty int
	EffectiveQty int
	UnitPrice    decimal.Decimal

	// Applied lists the IDs of campaigns that actually changed this line.
	// A matching campaign whose effect was a no-op is not recorded.
	Applied []string
}

// LineSubtotal is the billable amount for the line: unit price times
// effective (billable) quantity.
func (l *Line) LineSubtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.EffectiveQty)))
}

// NewLine builds a draft line from a snapshot and requested quantity.
func NewLine(p *product.Snapshot, quantity int) Line {
	return Line{
		ProductID:    p.ID,
		Product:      p,
		RequestedQty: quantity,
		EffectiveQty: quantity,
		UnitPrice:    p.Price,
	}
}

// Subtotal sums the billable amounts of all lines.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for i := range lines {
		sum = sum.Add(lines[i].LineSubtotal())
	}
	return sum
}

// MinPurchaseShortfall records a campaign whose minimum-purchase threshold
// was not met by the post-campaign subtotal. Policy is warn-only: the
// discount stays in place and the shortfall is reported to the caller and
// the log, so operators see it without the checkout silently changing price.
type MinPurchaseShortfall struct {
	CampaignID  string
	MinPurchase decimal.Decimal
	Subtotal    decimal.Decimal
}

// Result is the outcome of applying a campaign set to a cart.
type Result struct {
	Lines        []Line
	FreeShipping bool

	// Applied lists distinct campaign IDs that changed at least one line or
	// granted free shipping, in application order.
	Applied []string

	Shortfalls []MinPurchaseShortfall
}

// Engine applies active campaigns to cart lines. It is stateless; the
// campaign set is an explicit argument sourced once per checkout.
type Engine struct {
	lg *zap.Logger
}

// NewEngine creates an Engine that logs through the given logger.
func NewEngine(lg *zap.Logger) *Engine {
	return &Engine{lg: lg}
}

// Apply runs every active, matching campaign over every line, in campaign
// list order. Later campaigns compound on the already-discounted price;
// stacking off the list price is deliberately not the behaviour.
func (e *Engine) Apply(lines []Line, campaigns []Campaign, now time.Time) Result {
	res := Result{Lines: make([]Line, len(lines))}
	copy(res.Lines, lines)

	applied := make(map[string]bool, len(campaigns))
	for ci := range campaigns {
		c := &campaigns[ci]
		if !c.Active(now) || !c.wellFormed() {
			continue
		}

		changed := false
		for li := range res.Lines {
			line := &res.Lines[li]
			if !c.Matches(line.Product) {
				continue
			}
			if e.applyEffect(c, line, &res) {
				line.Applied = append(line.Applied, c.ID)
				changed = true
			}
		}

		if changed && !applied[c.ID] {
			applied[c.ID] = true
			res.Applied = append(res.Applied, c.ID)
		}
	}

	e.enforceMinPurchase(campaigns, &res)
	return res
}

// applyEffect mutates the line (or the cart-level free shipping flag) and
// reports whether anything actually changed.
func (e *Engine) applyEffect(c *Campaign, line *Line, res *Result) bool {
	switch c.Kind {
	case KindFixed:
		next := line.UnitPrice.Sub(c.Amount)
		if next.IsNegative() {
			next = decimal.Zero
		}
		return e.setPrice(c, line, next)

	case KindPercentage:
		next := line.UnitPrice.Mul(hundred.Sub(c.Amount)).Div(hundred)
		return e.setPrice(c, line, next)

	case KindBuyXGetY:
		if line.RequestedQty < c.BuyX {
			return false
		}
		free := (line.RequestedQty / c.BuyX) * c.GetY
		next := line.EffectiveQty - free
		if next < 0 {
			next = 0
		}
		if next == line.EffectiveQty {
			return false
		}
		line.EffectiveQty = next
		return true

	case KindFreeShipping:
		if res.FreeShipping {
			return false
		}
		res.FreeShipping = true
		return true

	default:
		return false
	}
}

// setPrice commits a computed unit price, falling back to the current price
// when the computation produced garbage (corrupt campaign data must never
// push a price below zero or above the running price).
func (e *Engine) setPrice(c *Campaign, line *Line, next decimal.Decimal) bool {
	if next.IsNegative() || next.GreaterThan(line.UnitPrice) {
		e.lg.Warn("campaign produced invalid price, keeping current",
			zap.String("campaign_id", c.ID),
			zap.String("product_id", line.ProductID),
			zap.String("computed", next.String()),
		)
		return false
	}
	if next.Equal(line.UnitPrice) {
		return false
	}
	line.UnitPrice = next
	return true
}

// enforceMinPurchase checks minimum-purchase thresholds against the
// post-campaign subtotal. Unmet thresholds are reported, not revoked.
func (e *Engine) enforceMinPurchase(campaigns []Campaign, res *Result) {
	if len(res.Applied) == 0 {
		return
	}
	subtotal := Subtotal(res.Lines)

	appliedSet := make(map[string]bool, len(res.Applied))
	for _, id := range res.Applied {
		appliedSet[id] = true
	}

	for i := range campaigns {
		c := &campaigns[i]
		if !appliedSet[c.ID] || !c.MinPurchase.IsPositive() {
			continue
		}
		if subtotal.GreaterThanOrEqual(c.MinPurchase) {
			continue
		}
		e.lg.Warn("campaign minimum purchase not met, discount kept",
			zap.String("campaign_id", c.ID),
			zap.String("min_purchase", c.MinPurchase.String()),
			zap.String("subtotal", subtotal.String()),
		)
		res.Shortfalls = append(res.Shortfalls, MinPurchaseShortfall{
			CampaignID:  c.ID,
			MinPurchase: c.MinPurchase,
			Subtotal:    subtotal,
		})
	}
}
