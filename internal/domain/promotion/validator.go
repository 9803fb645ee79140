package promotion

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Normalize uppercases and trims a customer-entered code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// wellFormed checks the normalized code against the format every stored
// code satisfies, so obviously bogus input is rejected without a lookup.
func wellFormed(code string) bool {
	if len(code) < 3 || len(code) > 64 {
		return false
	}
	for _, r := range code {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// Validator validates a promotion code against a cart and computes its
// discount. Validation is read-only: the usage counter is consumed
// elsewhere, only after the order is durably created and paid, so abandoned
// checkouts never burn a use.
type Validator struct {
	repo    Repository
	history CustomerHistory
	filter  *CodeFilter
	now     func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithFilter installs a bloom pre-filter consulted before the repository
// lookup.
func WithFilter(f *CodeFilter) Option {
	return func(v *Validator) { v.filter = f }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// NewValidator creates a Validator backed by the given repository and
// customer history.
func NewValidator(repo Repository, history CustomerHistory, opts ...Option) *Validator {
	v := &Validator{repo: repo, history: history, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the full ordered check sequence and computes the discount.
// The first failing check short-circuits with a typed error. Checks run in
// this exact order: existence and active window, eligibility scope,
// single-use-per-customer, global usage limit, minimum purchase, applicable
// categories, excluded products.
func (v *Validator) Validate(ctx context.Context, rawCode, customerID string, items []Item, subtotal decimal.Decimal) (*Discount, error) {
	code := Normalize(rawCode)
	if !wellFormed(code) {
		return nil, ErrMalformed
	}

	if v.filter != nil && !v.filter.MayContain(code) {
		return nil, ErrNotFound
	}

	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup promotion code")
	}

	if c.Status(v.now()) != StatusActive {
		return nil, ErrNotActive
	}

	if err := v.checkEligibility(ctx, c, customerID); err != nil {
		return nil, err
	}

	if c.SingleUsePerCustomer {
		used, err := v.history.HasUsedCode(ctx, customerID, c.Code)
		if err != nil {
			return nil, errors.Wrap(err, "check prior code use")
		}
		if used {
			return nil, ErrAlreadyUsed
		}
	}

	if c.Exhausted() {
		return nil, ErrUsageLimitReached
	}

	if c.MinPurchase.IsPositive() && subtotal.LessThan(c.MinPurchase) {
		return nil, &MinPurchaseError{Required: c.MinPurchase, Subtotal: subtotal}
	}

	if len(c.ApplicableCategories) > 0 && !anyItemInCategories(items, c.ApplicableCategories) {
		return nil, ErrNotApplicable
	}

	if len(c.ExcludedProducts) > 0 {
		for _, item := range items {
			if contains(c.ExcludedProducts, item.ProductID) {
				return nil, ErrExcludedProduct
			}
		}
	}

	return computeDiscount(c, subtotal)
}

func (v *Validator) checkEligibility(ctx context.Context, c *Code, customerID string) error {
	switch c.Scope {
	case ScopeAll, "":
		return nil
	case ScopeSpecific:
		if contains(c.AllowedCustomers, customerID) {
			return nil
		}
		return ErrNotEligible
	case ScopeNew, ScopeReturning:
		n, err := v.history.OrderCount(ctx, customerID)
		if err != nil {
			return errors.Wrap(err, "count customer orders")
		}
		if c.Scope == ScopeNew && n > 0 {
			return ErrNotEligible
		}
		if c.Scope == ScopeReturning && n == 0 {
			return ErrNotEligible
		}
		return nil
	default:
		return errors.Errorf("unknown promotion scope: %q", c.Scope)
	}
}

func anyItemInCategories(items []Item, categories []string) bool {
	for _, item := range items {
		for _, c := range item.Categories {
			if contains(categories, c) {
				return true
			}
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
