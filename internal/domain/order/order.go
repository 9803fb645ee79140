// Package order holds the order model and the checkout orchestrator that
// turns a cart into a priced, paid, inventory-adjusted order.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/shopforge/orderflow/internal/domain/stock"
)

// Status is the fulfillment state of an order. Transitions are
// one-directional except the explicit cancel/refund paths.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
	// StatusFailed is the terminal state of a checkout whose payment was
	// declined. Such orders are never retried; a new checkout produces a
	// new order.
	StatusFailed Status = "failed"
)

// PaymentStatus tracks the single payment of an order.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// LineItem is one ordered line, immutable once the order is persisted.
// EffectiveQty is the billable quantity; free units from buy-x-get-y
// campaigns ship (RequestedQty) but are not billed.
type LineItem struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	RequestedQty int             `json:"requested_qty"`
	EffectiveQty int             `json:"effective_qty"`
	// UnitPrice is the post-campaign price actually charged per unit.
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	// AppliedCampaigns lists campaigns that changed this line.
	AppliedCampaigns []string `json:"applied_campaigns,omitempty"`
}

// Order is a persisted checkout result. Campaigns and promotion codes are
// referenced by id/code only; the order never owns their definitions.
type Order struct {
	ID         string
	CustomerID string
	Lines      []LineItem

	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	Tax          decimal.Decimal
	ShippingCost decimal.Decimal
	Total        decimal.Decimal

	Status        Status
	PaymentStatus PaymentStatus

	PromotionCode    string
	AppliedCampaigns []string

	TransactionID string
	FailureReason string

	CreatedAt time.Time
}

// Attempt is one payment attempt against an order. An order has at most one
// completed attempt but may accumulate failed ones.
type Attempt struct {
	ID            string
	OrderID       string
	TransactionID string
	Amount        decimal.Decimal
	Succeeded     bool
	Reason        string
	CreatedAt     time.Time
}

// Repository persists orders and their payment attempts.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// MarkPaid transitions the order to processing/completed and records
	// the processor transaction id.
	MarkPaid(ctx context.Context, orderID, transactionID string) error
	// MarkPaymentFailed transitions the order to its terminal failed state.
	MarkPaymentFailed(ctx context.Context, orderID, reason string) error
	AppendAttempt(ctx context.Context, a Attempt) error
}

// ErrEmptyCart is returned when there is nothing to check out.
var ErrEmptyCart = errors.New("cart is empty")

// InvalidQuantityError indicates a line with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// ShortageError aborts a checkout before any persistence: one or more lines
// cannot be fulfilled. Carries the full shortage list so the caller can
// adjust the cart. Always safe to retry.
type ShortageError struct {
	Shortages []stock.Shortage
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("%d cart line(s) cannot be fulfilled", len(e.Shortages))
}

// PromotionError wraps a promotion validation failure. Pre-persistence; the
// caller may retry without the code or with a different one.
type PromotionError struct {
	Code string
	Err  error
}

func (e *PromotionError) Error() string {
	return fmt.Sprintf("promotion code %s rejected: %v", e.Code, e.Err)
}

func (e *PromotionError) Unwrap() error { return e.Err }

// PaymentError is post-persistence: the order exists in its terminal failed
// state. The payment is never retried on the same order.
type PaymentError struct {
	OrderID string
	Reason  string
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment for order %s failed: %s", e.OrderID, e.Reason)
}
