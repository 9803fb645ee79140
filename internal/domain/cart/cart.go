// Package cart defines the cart collaborator consumed by the checkout
// pipeline: read the customer's current lines, clear them on finalization.
package cart

import "context"

// Line is a single cart entry. Attributes holds opaque per-line choices
// (size, color) the pipeline carries through without interpreting.
type Line struct {
	ProductID  string
	Quantity   int
	Attributes map[string]string
}

// Store reads and clears carts by customer. The cart itself is owned by the
// customer session; the pipeline only consumes it.
type Store interface {
	Lines(ctx context.Context, customerID string) ([]Line, error)
	Clear(ctx context.Context, customerID string) error
}
