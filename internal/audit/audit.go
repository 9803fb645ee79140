// Package audit emits structured checkout events for external audit
// logging. The pipeline produces events; the sink's storage format is not
// defined here.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType enumerates the events the orchestrator emits.
type EventType string

const (
	EventOrderCreated           EventType = "order_created"
	EventPaymentSucceeded       EventType = "payment_succeeded"
	EventPaymentFailed          EventType = "payment_failed"
	EventStockShortage          EventType = "stock_shortage"
	EventPromotionApplied       EventType = "promotion_applied"
	EventStockReconciliation    EventType = "stock_reconciliation_required"
)

// Event is a single audit record. Detail carries event-specific context
// (applied discount ids, shortage lines, decline reasons) as flat strings.
type Event struct {
	ID         string
	Type       EventType
	OrderID    string
	CustomerID string
	Amount     decimal.Decimal
	At         time.Time
	Detail     map[string]string
}

// NewEvent builds an event with a fresh id and the current time.
func NewEvent(t EventType, orderID, customerID string) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       t,
		OrderID:    orderID,
		CustomerID: customerID,
		At:         time.Now().UTC(),
		Detail:     make(map[string]string),
	}
}

// WithAmount attaches a monetary amount to the event.
func (e Event) WithAmount(amount decimal.Decimal) Event {
	e.Amount = amount
	return e
}

// With adds one detail entry.
func (e Event) With(key, value string) Event {
	e.Detail[key] = value
	return e
}

// Sink consumes audit events. Emit must not fail the business operation
// that produced the event; implementations log and swallow their own
// errors.
type Sink interface {
	Emit(ctx context.Context, e Event)
}
