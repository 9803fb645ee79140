package order

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopforge/orderflow/internal/audit"
	"github.com/shopforge/orderflow/internal/domain/campaign"
	"github.com/shopforge/orderflow/internal/domain/cart"
	"github.com/shopforge/orderflow/internal/domain/payment"
	"github.com/shopforge/orderflow/internal/domain/pricing"
	"github.com/shopforge/orderflow/internal/domain/product"
	"github.com/shopforge/orderflow/internal/domain/promotion"
	"github.com/shopforge/orderflow/internal/domain/stock"
)

// PromotionValidator is the slice of the promotion engine the orchestrator
// consumes.
type PromotionValidator interface {
	Validate(ctx context.Context, code, customerID string, items []promotion.Item, subtotal decimal.Decimal) (*promotion.Discount, error)
}

// PromotionCounter consumes one use of a code after the order is durably
// created and paid.
type PromotionCounter interface {
	IncrementUsage(ctx context.Context, codeID string) error
}

// Deps wires the checkout orchestrator. Every field is required except
// Clock.
type Deps struct {
	Products   product.Repository
	Ledger     stock.Ledger
	Campaigns  campaign.Source
	CampaignCt campaign.Counter
	Engine     *campaign.Engine
	Promotions PromotionValidator
	PromoCt    PromotionCounter
	Pricer     *pricing.Calculator
	Carts      cart.Store
	Gateway    payment.Gateway
	Orders     Repository
	Audit      audit.Sink
	Logger     *zap.Logger

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Checkout sequences a single checkout attempt:
//
//	resolve cart -> apply campaigns -> apply promotion -> price ->
//	persist order -> charge -> finalize (decrement stock, clear cart,
//	record payment, bump usage counters)
//
// Everything before persistence is side-effect free and retryable. After
// persistence, failures are compensated or recorded, never silently
// retried.
type Checkout struct {
	deps Deps
	now  func() time.Time
}

// NewCheckout creates the orchestrator.
func NewCheckout(deps Deps) *Checkout {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Checkout{deps: deps, now: now}
}

// Request is one checkout attempt. Items may be supplied directly (e.g.
// express checkout); when empty, the customer's stored cart is used.
type Request struct {
	CustomerID      string
	Items           []cart.Line
	ShippingAddress pricing.Address
	ShippingMethod  pricing.Method
	PromotionCode   string
	Billing         payment.BillingContext
	Currency        string
}

// Result is a successful checkout: a paid order in processing state.
type Result struct {
	Order *Order
}

// PlaceOrder runs the full pipeline. See the error types in this package
// for the failure taxonomy; only PaymentError implies a persisted order.
func (c *Checkout) PlaceOrder(ctx context.Context, req Request) (*Result, error) {
	now := c.now()
	lg := c.deps.Logger.With(zap.String("customer_id", req.CustomerID))

	// Resolve cart lines and product snapshots. Aborts here are free of
	// side effects.
	lines, err := c.resolveLines(ctx, req)
	if err != nil {
		return nil, err
	}

	snapshots, shortages, err := c.resolveProducts(ctx, lines)
	if err != nil {
		return nil, err
	}

	reqs := make([]stock.Request, len(lines))
	for i, l := range lines {
		reqs[i] = stock.Request{ProductID: l.ProductID, Quantity: l.Quantity}
	}

	// Availability: a product missing from the catalog and a product with
	// too little stock are both shortages, never a hard failure of the
	// whole evaluation.
	av, err := c.deps.Ledger.CheckAvailability(ctx, reqs)
	if err != nil {
		return nil, errors.Wrap(err, "check availability")
	}
	flagged := make(map[string]bool, len(shortages))
	for _, sh := range shortages {
		flagged[sh.ProductID] = true
	}
	for _, sh := range av.Shortages {
		if !flagged[sh.ProductID] {
			shortages = append(shortages, sh)
		}
	}
	if len(shortages) > 0 {
		c.emitShortages(ctx, req.CustomerID, shortages)
		return nil, &ShortageError{Shortages: shortages}
	}

	// Discounts: campaigns first, then the promotion code on the
	// post-campaign subtotal.
	active, err := c.deps.Campaigns.ActiveCampaigns(ctx, now)
	if err != nil {
		return nil, errors.Wrap(err, "load active campaigns")
	}

	drafts := make([]campaign.Line, len(lines))
	for i, l := range lines {
		drafts[i] = campaign.NewLine(snapshots[l.ProductID], l.Quantity)
	}
	campaignRes := c.deps.Engine.Apply(drafts, active, now)
	subtotal := campaign.Subtotal(campaignRes.Lines).Round(2)

	discount := decimal.Zero
	freeShipping := campaignRes.FreeShipping
	var promo *promotion.Discount
	if req.PromotionCode != "" {
		promo, err = c.validatePromotion(ctx, req, campaignRes.Lines, subtotal)
		if err != nil {
			return nil, err
		}
		discount = promo.Amount
		freeShipping = freeShipping || promo.FreeShipping
	}

	totals, err := c.deps.Pricer.ComputeTotals(ctx, subtotal, discount,
		req.ShippingMethod, req.ShippingAddress, freeShipping)
	if err != nil {
		return nil, err
	}

	// Durability point. From here on failures are compensated or
	// recorded, not just returned.
	o := c.buildOrder(req, campaignRes, promo, subtotal, discount, totals, now)
	if err := c.deps.Orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	c.deps.Audit.Emit(ctx, audit.NewEvent(audit.EventOrderCreated, o.ID, o.CustomerID).
		WithAmount(o.Total).
		With("applied_campaigns", strings.Join(o.AppliedCampaigns, ",")).
		With("promotion_code", o.PromotionCode))
	if promo != nil {
		c.deps.Audit.Emit(ctx, audit.NewEvent(audit.EventPromotionApplied, o.ID, o.CustomerID).
			WithAmount(promo.Amount).
			With("code", promo.Code))
	}

	lg.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("total", o.Total.StringFixed(2)),
	)

	if err := c.charge(ctx, o, req); err != nil {
		return nil, err
	}

	c.finalize(ctx, o, promo, reqs)
	return &Result{Order: o}, nil
}

// resolveLines picks explicit items or falls back to the stored cart, and
// validates quantities.
func (c *Checkout) resolveLines(ctx context.Context, req Request) ([]cart.Line, error) {
	lines := req.Items
	if len(lines) == 0 {
		stored, err := c.deps.Carts.Lines(ctx, req.CustomerID)
		if err != nil {
			return nil, errors.Wrap(err, "read cart")
		}
		lines = stored
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: l.ProductID}
		}
	}
	return lines, nil
}

// resolveProducts batch-fetches snapshots; products missing from the
// catalog become not_found shortages rather than hard errors.
func (c *Checkout) resolveProducts(ctx context.Context, lines []cart.Line) (map[string]*product.Snapshot, []stock.Shortage, error) {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}

	fetched, err := c.deps.Products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get products")
	}

	snapshots := make(map[string]*product.Snapshot, len(fetched))
	for i := range fetched {
		snapshots[fetched[i].ID] = &fetched[i]
	}

	var shortages []stock.Shortage
	for _, l := range lines {
		if _, ok := snapshots[l.ProductID]; !ok {
			shortages = append(shortages, stock.Shortage{
				ProductID: l.ProductID,
				Requested: l.Quantity,
				Reason:    stock.ReasonNotFound,
			})
		}
	}
	return snapshots, shortages, nil
}

func (c *Checkout) validatePromotion(ctx context.Context, req Request, lines []campaign.Line, subtotal decimal.Decimal) (*promotion.Discount, error) {
	items := make([]promotion.Item, len(lines))
	for i := range lines {
		items[i] = promotion.Item{
			ProductID:  lines[i].ProductID,
			Categories: lines[i].Product.Categories,
		}
	}

	d, err := c.deps.Promotions.Validate(ctx, req.PromotionCode, req.CustomerID, items, subtotal)
	if err != nil {
		return nil, &PromotionError{Code: promotion.Normalize(req.PromotionCode), Err: err}
	}
	return d, nil
}

func (c *Checkout) buildOrder(
	req Request,
	campaignRes campaign.Result,
	promo *promotion.Discount,
	subtotal, discount decimal.Decimal,
	totals pricing.Totals,
	now time.Time,
) *Order {
	items := make([]LineItem, len(campaignRes.Lines))
	for i := range campaignRes.Lines {
		l := &campaignRes.Lines[i]
		items[i] = LineItem{
			ProductID:        l.ProductID,
			Name:             l.Product.Name,
			RequestedQty:     l.RequestedQty,
			EffectiveQty:     l.EffectiveQty,
			UnitPrice:        l.UnitPrice.Round(2),
			Subtotal:         l.LineSubtotal().Round(2),
			AppliedCampaigns: l.Applied,
		}
	}

	o := &Order{
		ID:               uuid.New().String(),
		CustomerID:       req.CustomerID,
		Lines:            items,
		Subtotal:         subtotal,
		Discount:         discount.Round(2),
		Tax:              totals.Tax,
		ShippingCost:     totals.ShippingCost,
		Total:            totals.Total,
		Status:           StatusPending,
		PaymentStatus:    PaymentPending,
		AppliedCampaigns: campaignRes.Applied,
		CreatedAt:        now,
	}
	if promo != nil {
		o.PromotionCode = promo.Code
	}
	return o
}

// charge invokes the gateway exactly once. Declines and transport failures
// both leave the order in its terminal failed state; the charge is never
// retried on this order id to avoid double-charging.
func (c *Checkout) charge(ctx context.Context, o *Order, req Request) error {
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	res, err := c.deps.Gateway.Charge(ctx, payment.ChargeRequest{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Amount:     o.Total,
		Currency:   currency,
		Billing:    req.Billing,
	})
	if err != nil {
		c.recordPaymentFailure(ctx, o, "gateway unreachable: "+err.Error())
		return &PaymentError{OrderID: o.ID, Reason: "gateway unreachable"}
	}
	if !res.Approved {
		c.recordPaymentFailure(ctx, o, res.DeclineReason)
		return &PaymentError{OrderID: o.ID, Reason: res.DeclineReason}
	}

	if err := c.deps.Orders.MarkPaid(ctx, o.ID, res.TransactionID); err != nil {
		// The charge went through; surface the storage problem but keep
		// the money trail.
		c.deps.Logger.Error("mark order paid",
			zap.String("order_id", o.ID), zap.Error(err))
	}
	o.Status = StatusProcessing
	o.PaymentStatus = PaymentCompleted
	o.TransactionID = res.TransactionID

	c.appendAttempt(ctx, o, res.TransactionID, true, "")
	c.deps.Audit.Emit(ctx, audit.NewEvent(audit.EventPaymentSucceeded, o.ID, o.CustomerID).
		WithAmount(o.Total).
		With("transaction_id", res.TransactionID))
	return nil
}

func (c *Checkout) recordPaymentFailure(ctx context.Context, o *Order, reason string) {
	if err := c.deps.Orders.MarkPaymentFailed(ctx, o.ID, reason); err != nil {
		c.deps.Logger.Error("mark payment failed",
			zap.String("order_id", o.ID), zap.Error(err))
	}
	o.Status = StatusFailed
	o.PaymentStatus = PaymentFailed
	o.FailureReason = reason

	c.appendAttempt(ctx, o, "", false, reason)
	c.deps.Audit.Emit(ctx, audit.NewEvent(audit.EventPaymentFailed, o.ID, o.CustomerID).
		WithAmount(o.Total).
		With("reason", reason))
}

func (c *Checkout) appendAttempt(ctx context.Context, o *Order, txID string, ok bool, reason string) {
	err := c.deps.Orders.AppendAttempt(ctx, Attempt{
		ID:            uuid.New().String(),
		OrderID:       o.ID,
		TransactionID: txID,
		Amount:        o.Total,
		Succeeded:     ok,
		Reason:        reason,
		CreatedAt:     c.now(),
	})
	if err != nil {
		c.deps.Logger.Error("append payment attempt",
			zap.String("order_id", o.ID), zap.Error(err))
	}
}

// finalize commits the post-payment side effects. The order is already
// paid: nothing here may fail the checkout. A stock decrement that loses a
// race at this point is recorded for manual reconciliation instead of
// reversing the completed charge.
func (c *Checkout) finalize(ctx context.Context, o *Order, promo *promotion.Discount, reqs []stock.Request) {
	lg := c.deps.Logger.With(zap.String("order_id", o.ID))

	if err := c.deps.Carts.Clear(ctx, o.CustomerID); err != nil {
		lg.Warn("clear cart", zap.Error(err))
	}

	dec, err := c.deps.Ledger.Decrement(ctx, reqs)
	if err != nil {
		lg.Error("decrement stock", zap.Error(err))
		c.emitReconciliation(ctx, o, reqs, err.Error())
	} else if !dec.OK() {
		for _, sh := range dec.Failed {
			lg.Warn("stock decrement lost race, needs reconciliation",
				zap.String("product_id", sh.ProductID),
				zap.Int("requested", sh.Requested),
				zap.Int("available", sh.Available),
			)
		}
		c.emitReconciliation(ctx, o, shortageRequests(dec.Failed), "conditional decrement failed")
	}

	if promo != nil {
		if err := c.deps.PromoCt.IncrementUsage(ctx, promo.CodeID); err != nil {
			lg.Error("increment promotion usage",
				zap.String("code", promo.Code), zap.Error(err))
		}
	}
	if len(o.AppliedCampaigns) > 0 {
		if err := c.deps.CampaignCt.IncrementUses(ctx, o.AppliedCampaigns); err != nil {
			lg.Error("increment campaign uses", zap.Error(err))
		}
	}
}

func (c *Checkout) emitShortages(ctx context.Context, customerID string, shortages []stock.Shortage) {
	e := audit.NewEvent(audit.EventStockShortage, "", customerID)
	for _, sh := range shortages {
		e = e.With(sh.ProductID, string(sh.Reason)+
			" requested="+strconv.Itoa(sh.Requested)+
			" available="+strconv.Itoa(sh.Available))
	}
	c.deps.Audit.Emit(ctx, e)
}

func (c *Checkout) emitReconciliation(ctx context.Context, o *Order, reqs []stock.Request, cause string) {
	e := audit.NewEvent(audit.EventStockReconciliation, o.ID, o.CustomerID).
		With("cause", cause)
	for _, r := range reqs {
		e = e.With(r.ProductID, strconv.Itoa(r.Quantity))
	}
	c.deps.Audit.Emit(ctx, e)
}

func shortageRequests(shortages []stock.Shortage) []stock.Request {
	reqs := make([]stock.Request, len(shortages))
	for i, sh := range shortages {
		reqs[i] = stock.Request{ProductID: sh.ProductID, Quantity: sh.Requested}
	}
	return reqs
}
