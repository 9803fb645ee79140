// Package stock defines the stock ledger: the authoritative read and
// conditional decrement of per-product available quantity.
package stock

import (
	"context"
)

// Reason explains why a requested line could not be fulfilled.
type Reason string

const (
	// ReasonNotFound means the product does not exist at all.
	ReasonNotFound Reason = "not_found"
	// ReasonInsufficient means the product exists but has fewer units than requested.
	ReasonInsufficient Reason = "insufficient_stock"
)

// Request asks for a quantity of a single product.
type Request struct {
	ProductID string
	Quantity  int
}

// Shortage reports a single line that cannot be fulfilled from current stock.
type Shortage struct {
	ProductID string
	Requested int
	Available int
	Reason    Reason
}

// Availability is the result of checking a set of requests against current
// stock. An empty shortage list means every line is fulfillable.
type Availability struct {
	Shortages []Shortage
}

// OK reports whether all requested lines are fulfillable.
func (a Availability) OK() bool {
	return len(a.Shortages) == 0
}

// DecrementResult reports per-line decrement outcomes. Lines absent from
// Failed were decremented successfully.
type DecrementResult struct {
	Failed []Shortage
}

// OK reports whether every line was decremented.
func (r DecrementResult) OK() bool {
	return len(r.Failed) == 0
}

// Ledger is the authoritative interface over per-product stock counters.
//
// Decrement must have compare-and-set semantics per line: a line's decrement
// succeeds only if the current stock is at least the requested quantity at
// the time of the update, so two concurrent checkouts for the last unit
// cannot both succeed. Lines are independent; a failed line never rolls back
// the others. The caller decides what a partial failure means.
type Ledger interface {
	CheckAvailability(ctx context.Context, reqs []Request) (Availability, error)
	Decrement(ctx context.Context, reqs []Request) (DecrementResult, error)
}
