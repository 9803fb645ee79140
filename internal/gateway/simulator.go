// Package gateway provides payment.Gateway implementations. The simulator
// stands in for a real processor in development and tests.
package gateway

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopforge/orderflow/internal/domain/payment"
)

// DeclineToken is the card token the simulator always declines, so decline
// paths are reachable deterministically from manual testing.
const DeclineToken = "tok_decline"

var _ payment.Gateway = (*Simulator)(nil)

// Simulator is a deterministic in-process payment gateway. It approves
// everything except charges carrying DeclineToken or exceeding the
// configured authorization limit.
type Simulator struct {
	lg *zap.Logger

	// authLimit declines charges above this amount when positive.
	authLimit decimal.Decimal

	mu      sync.Mutex
	charges map[string]payment.Result // by order id
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithAuthLimit declines any charge above limit.
func WithAuthLimit(limit decimal.Decimal) SimulatorOption {
	return func(s *Simulator) { s.authLimit = limit }
}

// NewSimulator creates a Simulator.
func NewSimulator(lg *zap.Logger, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		lg:      lg,
		charges: make(map[string]payment.Result),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Charge implements payment.Gateway.
func (s *Simulator) Charge(_ context.Context, req payment.ChargeRequest) (*payment.Result, error) {
	res := payment.Result{Amount: req.Amount}

	switch {
	case strings.EqualFold(req.Billing.CardToken, DeclineToken):
		res.DeclineReason = "card_declined"
	case s.authLimit.IsPositive() && req.Amount.GreaterThan(s.authLimit):
		res.DeclineReason = "amount_over_limit"
	case !req.Amount.IsPositive():
		res.DeclineReason = "invalid_amount"
	default:
		res.Approved = true
		res.TransactionID = "TXN-" + uuid.New().String()[:8]
	}

	s.mu.Lock()
	s.charges[req.OrderID] = res
	s.mu.Unlock()

	if res.Approved {
		s.lg.Info("simulated charge approved",
			zap.String("order_id", req.OrderID),
			zap.String("transaction_id", res.TransactionID),
			zap.String("amount", req.Amount.StringFixed(2)),
		)
	} else {
		s.lg.Warn("simulated charge declined",
			zap.String("order_id", req.OrderID),
			zap.String("reason", res.DeclineReason),
		)
	}
	return &res, nil
}

// Refund implements payment.Gateway. Refunds succeed for any previously
// approved charge of the same order.
func (s *Simulator) Refund(_ context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	s.mu.Lock()
	charged, ok := s.charges[req.OrderID]
	s.mu.Unlock()

	if !ok || !charged.Approved {
		return &payment.RefundResult{}, nil
	}
	return &payment.RefundResult{
		Approved: true,
		RefundID: "RFD-" + uuid.New().String()[:8],
	}, nil
}
