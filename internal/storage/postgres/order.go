package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopforge/orderflow/internal/domain/order"
	"github.com/shopforge/orderflow/internal/domain/promotion"
)

var (
	_ order.Repository          = (*OrderRepository)(nil)
	_ promotion.CustomerHistory = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository backed by PostgreSQL. It also
// answers the customer history questions promotion validation asks, since
// both are reads over the same orders table.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The line items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("marshaling order lines: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO orders (
			id, customer_id, lines,
			subtotal, discount, tax, shipping_cost, total,
			status, payment_status,
			promotion_code, applied_campaigns, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.CustomerID, linesJSON,
		o.Subtotal, o.Discount, o.Tax, o.ShippingCost, o.Total,
		string(o.Status), string(o.PaymentStatus),
		o.PromotionCode, o.AppliedCampaigns, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// MarkPaid transitions the order to processing/completed and records the
// processor transaction id.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID, transactionID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = 'processing',
		    payment_status = 'completed',
		    transaction_id = $2
		WHERE id = $1`, orderID, transactionID)
	if err != nil {
		return fmt.Errorf("marking order %q paid: %w", orderID, err)
	}
	return nil
}

// MarkPaymentFailed transitions the order to its terminal failed state.
func (r *OrderRepository) MarkPaymentFailed(ctx context.Context, orderID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = 'failed',
		    payment_status = 'failed',
		    failure_reason = $2
		WHERE id = $1`, orderID, reason)
	if err != nil {
		return fmt.Errorf("marking order %q payment failed: %w", orderID, err)
	}
	return nil
}

// AppendAttempt records one payment attempt against an order.
func (r *OrderRepository) AppendAttempt(ctx context.Context, a order.Attempt) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payment_attempts (
			id, order_id, transaction_id, amount, succeeded, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.OrderID, a.TransactionID, a.Amount, a.Succeeded, a.Reason, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appending payment attempt for order %q: %w", a.OrderID, err)
	}
	return nil
}

// OrderCount counts the customer's completed purchases. Cancelled orders
// and failed checkouts are excluded; neither is a purchase.
func (r *OrderRepository) OrderCount(ctx context.Context, customerID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE customer_id = $1 AND status NOT IN ('cancelled', 'failed')`, customerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting orders for %q: %w", customerID, err)
	}
	return n, nil
}

// HasUsedCode reports whether the customer has an order that actually
// consumed the given promotion code. Failed checkouts never consume a use,
// so they do not block a retry with the same code.
func (r *OrderRepository) HasUsedCode(ctx context.Context, customerID, code string) (bool, error) {
	var used bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE customer_id = $1
			  AND promotion_code = $2
			  AND status NOT IN ('cancelled', 'failed')
		)`, customerID, code).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("checking code usage for %q: %w", customerID, err)
	}
	return used, nil
}
