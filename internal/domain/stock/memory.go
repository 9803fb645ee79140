package stock

import (
	"context"
	"sync"
)

var _ Ledger = (*MemoryLedger)(nil)

// MemoryLedger is an in-memory Ledger with the same conditional-decrement
// semantics as the PostgreSQL implementation. Used in tests and local
// development without a database.
type MemoryLedger struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryLedger creates an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{counts: make(map[string]int)}
}

// SetStock sets the available quantity for a product.
func (l *MemoryLedger) SetStock(productID string, quantity int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[productID] = quantity
}

// Stock returns the current available quantity for a product.
func (l *MemoryLedger) Stock(productID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[productID]
}

// CheckAvailability reports shortages for every line that cannot be
// fulfilled. Missing products and under-stocked products are distinguished
// by the shortage reason; neither aborts evaluation of the other lines.
func (l *MemoryLedger) CheckAvailability(_ context.Context, reqs []Request) (Availability, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var av Availability
	for _, req := range reqs {
		current, ok := l.counts[req.ProductID]
		switch {
		case !ok:
			av.Shortages = append(av.Shortages, Shortage{
				ProductID: req.ProductID,
				Requested: req.Quantity,
				Reason:    ReasonNotFound,
			})
		case current < req.Quantity:
			av.Shortages = append(av.Shortages, Shortage{
				ProductID: req.ProductID,
				Requested: req.Quantity,
				Available: current,
				Reason:    ReasonInsufficient,
			})
		}
	}
	return av, nil
}

// Decrement applies a conditional decrement per line. A line succeeds only
// if the current count covers the requested quantity; failed lines are
// reported and do not affect the others.
func (l *MemoryLedger) Decrement(_ context.Context, reqs []Request) (DecrementResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var res DecrementResult
	for _, req := range reqs {
		current, ok := l.counts[req.ProductID]
		switch {
		case !ok:
			res.Failed = append(res.Failed, Shortage{
				ProductID: req.ProductID,
				Requested: req.Quantity,
				Reason:    ReasonNotFound,
			})
		case current < req.Quantity:
			res.Failed = append(res.Failed, Shortage{
				ProductID: req.ProductID,
				Requested: req.Quantity,
				Available: current,
				Reason:    ReasonInsufficient,
			})
		default:
			l.counts[req.ProductID] = current - req.Quantity
		}
	}
	return res, nil
}
