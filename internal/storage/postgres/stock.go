package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopforge/orderflow/internal/domain/stock"
)

var _ stock.Ledger = (*StockLedger)(nil)

// StockLedger implements stock.Ledger on the products.stock column. The
// decrement is a single conditional UPDATE per line, so two concurrent
// checkouts racing for the last unit serialize on the row and only one wins.
type StockLedger struct {
	pool *pgxpool.Pool
}

// NewStockLedger returns a StockLedger that uses the given pool.
func NewStockLedger(pool *pgxpool.Pool) *StockLedger {
	return &StockLedger{pool: pool}
}

// CheckAvailability reads current stock for every requested product. A
// product missing from the table is a not_found shortage, not an error.
func (l *StockLedger) CheckAvailability(ctx context.Context, reqs []stock.Request) (stock.Availability, error) {
	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ProductID
	}

	rows, err := l.pool.Query(ctx,
		`SELECT id, stock FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return stock.Availability{}, fmt.Errorf("reading stock levels: %w", err)
	}
	defer rows.Close()

	levels := make(map[string]int, len(reqs))
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return stock.Availability{}, fmt.Errorf("scanning stock row: %w", err)
		}
		levels[id] = n
	}
	if err := rows.Err(); err != nil {
		return stock.Availability{}, fmt.Errorf("reading stock rows: %w", err)
	}

	var av stock.Availability
	for _, r := range reqs {
		available, ok := levels[r.ProductID]
		switch {
		case !ok:
			av.Shortages = append(av.Shortages, stock.Shortage{
				ProductID: r.ProductID,
				Requested: r.Quantity,
				Reason:    stock.ReasonNotFound,
			})
		case available < r.Quantity:
			av.Shortages = append(av.Shortages, stock.Shortage{
				ProductID: r.ProductID,
				Requested: r.Quantity,
				Available: available,
				Reason:    stock.ReasonInsufficient,
			})
		}
	}
	return av, nil
}

// Decrement applies each line as a conditional UPDATE. A line whose guard
// fails is reported in the result with the stock observed afterwards; the
// other lines are unaffected.
func (l *StockLedger) Decrement(ctx context.Context, reqs []stock.Request) (stock.DecrementResult, error) {
	var res stock.DecrementResult
	for _, r := range reqs {
		tag, err := l.pool.Exec(ctx,
			`UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`,
			r.ProductID, r.Quantity)
		if err != nil {
			return res, fmt.Errorf("decrementing stock for %q: %w", r.ProductID, err)
		}
		if tag.RowsAffected() > 0 {
			continue
		}
		res.Failed = append(res.Failed, l.explainFailure(ctx, r))
	}
	return res, nil
}

// explainFailure re-reads the row to distinguish a missing product from an
// insufficient one. The row may have changed again since the update; the
// reported Available is best-effort.
func (l *StockLedger) explainFailure(ctx context.Context, r stock.Request) stock.Shortage {
	sh := stock.Shortage{
		ProductID: r.ProductID,
		Requested: r.Quantity,
		Reason:    stock.ReasonNotFound,
	}

	var available int
	err := l.pool.QueryRow(ctx,
		`SELECT stock FROM products WHERE id = $1`, r.ProductID).Scan(&available)
	if err == nil {
		sh.Available = available
		sh.Reason = stock.ReasonInsufficient
	}
	return sh
}
