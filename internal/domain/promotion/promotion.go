// Package promotion implements customer-entered discount codes: validation
// against eligibility, usage-limit and scoping rules, and discount
// computation.
package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported promotion code discount strategies.
type Kind string

const (
	// KindFixed subtracts a fixed amount, capped at the subtotal.
	KindFixed Kind = "fixed"
	// KindPercentage subtracts a percentage of the subtotal, optionally
	// capped at MaxDiscount.
	KindPercentage Kind = "percentage"
	// KindFreeShipping grants free shipping without a monetary discount.
	KindFreeShipping Kind = "free_shipping"
	// KindBundle is reserved. No discount computation is defined for it;
	// validation fails explicitly rather than guessing a formula.
	KindBundle Kind = "bundle"
)

// Scope restricts which customers may use a code.
type Scope string

const (
	ScopeAll       Scope = "all"
	ScopeNew       Scope = "new"
	ScopeReturning Scope = "returning"
	ScopeSpecific  Scope = "specific"
)

// Status is the wall-clock derived lifecycle state of a code.
type Status string

const (
	StatusInactive Status = "inactive"
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
)

// Validation errors, in check order. The first failing check short-circuits;
// a code is never partially applied.
var (
	// ErrMalformed is returned for codes that cannot possibly exist
	// (empty, too long, or containing invalid characters).
	ErrMalformed = errors.New("malformed promotion code")
	// ErrNotFound is returned when no code with the given value exists.
	ErrNotFound = errors.New("promotion code not found")
	// ErrNotActive is returned when the code exists but now is outside its
	// [StartsAt, EndsAt) window.
	ErrNotActive = errors.New("promotion code not active")
	// ErrNotEligible is returned when the customer does not match the
	// code's eligibility scope.
	ErrNotEligible = errors.New("customer not eligible for promotion code")
	// ErrAlreadyUsed is returned when a single-use-per-customer code was
	// already consumed by an earlier order of this customer.
	ErrAlreadyUsed = errors.New("promotion code already used by customer")
	// ErrUsageLimitReached is returned when the code's global usage limit
	// is exhausted.
	ErrUsageLimitReached = errors.New("promotion code usage limit reached")
	// ErrNotApplicable is returned when no cart line belongs to the code's
	// applicable categories.
	ErrNotApplicable = errors.New("promotion code not applicable to cart")
	// ErrExcludedProduct is returned when a cart line's product is on the
	// code's exclusion list.
	ErrExcludedProduct = errors.New("cart contains product excluded from promotion code")
	// ErrBundleUnsupported is returned for bundle-kind codes.
	ErrBundleUnsupported = errors.New("bundle promotion codes are not supported")
)

// MinPurchaseError is returned when the cart subtotal is below the code's
// minimum purchase amount.
type MinPurchaseError struct {
	Required decimal.Decimal
	Subtotal decimal.Decimal
}

func (e *MinPurchaseError) Error() string {
	return "cart subtotal " + e.Subtotal.StringFixed(2) +
		" below promotion minimum purchase " + e.Required.StringFixed(2)
}

// Code is a customer-entered promotion code definition. The order pipeline
// mutates only UsageCount, and only on confirmed order creation; validation
// never consumes a use.
type Code struct {
	ID   string
	Code string // unique, stored uppercase
	Kind Kind

	// Amount is the money off for fixed codes and the percent for
	// percentage codes.
	Amount decimal.Decimal
	// MaxDiscount caps percentage discounts. Zero means uncapped.
	MaxDiscount decimal.Decimal

	Scope            Scope
	AllowedCustomers []string

	SingleUsePerCustomer bool
	// UsageLimit is the global usage cap. Nil means unlimited.
	UsageLimit *int
	UsageCount int

	MinPurchase decimal.Decimal

	StartsAt time.Time
	EndsAt   time.Time

	ApplicableCategories []string
	ExcludedProducts     []string
}

// Status derives the lifecycle state from the wall clock. There are no
// background transitions; every read recomputes.
func (c *Code) Status(now time.Time) Status {
	switch {
	case now.Before(c.StartsAt):
		return StatusInactive
	case !now.Before(c.EndsAt):
		return StatusExpired
	default:
		return StatusActive
	}
}

// Exhausted reports whether the global usage limit is reached.
func (c *Code) Exhausted() bool {
	return c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit
}

// Discount is the computed effect of a valid code.
type Discount struct {
	// CodeID identifies the definition, for the post-payment usage
	// increment.
	CodeID string
	// Code is the normalized code value as applied.
	Code string
	// Amount is the monetary discount. Zero for free-shipping codes.
	Amount decimal.Decimal
	// FreeShipping is consumed by the pricing calculator.
	FreeShipping bool
}

// Item is the cart-line view the validator needs: product identity and its
// categories.
type Item struct {
	ProductID  string
	Categories []string
}

// Repository provides lookup and consumption of promotion codes.
type Repository interface {
	// FindByCode looks up a code by its normalized (uppercase) value.
	// Returns ErrNotFound when no such code exists.
	FindByCode(ctx context.Context, code string) (*Code, error)
	// IncrementUsage consumes one use. Called only after the order is
	// durably created and paid.
	IncrementUsage(ctx context.Context, codeID string) error
}

// CustomerHistory answers the customer-scoped questions validation needs.
// Cancelled orders and failed checkouts never count: neither completed a
// purchase or consumed a code.
type CustomerHistory interface {
	OrderCount(ctx context.Context, customerID string) (int, error)
	HasUsedCode(ctx context.Context, customerID, code string) (bool, error)
}
