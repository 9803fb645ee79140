package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Snapshot is a read-only view of a product taken at order time. The
// checkout pipeline never mutates a snapshot; stock changes go through the
// stock ledger.
type Snapshot struct {
	ID         string
	Name       string
	Price      decimal.Decimal
	Stock      int
	Categories []string

	// DiscountExcluded marks products that never participate in automatic
	// campaign discounts (e.g. gift cards).
	DiscountExcluded bool
}

// InAnyCategory reports whether the product belongs to at least one of the
// given categories. An empty category set matches nothing.
func (s *Snapshot) InAnyCategory(categories []string) bool {
	for _, want := range categories {
		for _, have := range s.Categories {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Snapshot, error)
	GetByID(ctx context.Context, id string) (*Snapshot, error)
	GetByIDs(ctx context.Context, ids []string) ([]Snapshot, error)
}
