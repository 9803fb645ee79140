// Package payment defines the narrow contract the checkout pipeline
// consumes from a payment gateway. The gateway's internal protocol is out
// of scope; only this request/response surface is used.
package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// BillingContext carries what the gateway needs to authorize a charge.
// CardToken is an opaque reference to a vaulted instrument; raw card data
// never passes through this system.
type BillingContext struct {
	Name      string
	CardToken string
	Email     string
}

// ChargeRequest asks the gateway to charge the order total once.
type ChargeRequest struct {
	OrderID    string
	CustomerID string
	Amount     decimal.Decimal
	Currency   string
	Billing    BillingContext
}

// Result is the gateway's answer to a charge attempt. A declined charge is
// a normal Result with Approved=false, not a transport error.
type Result struct {
	Approved      bool
	TransactionID string
	Amount        decimal.Decimal
	DeclineReason string
}

// RefundRequest asks the gateway to return a completed charge.
type RefundRequest struct {
	OrderID       string
	TransactionID string
	Amount        decimal.Decimal
}

// RefundResult is the gateway's answer to a refund request.
type RefundResult struct {
	Approved bool
	RefundID string
}

// Gateway is the external charge/refund capability. An error return means
// the attempt's outcome is unknown (transport failure); callers must not
// retry blindly, or they risk double-charging.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*Result, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}
