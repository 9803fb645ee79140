// Package pricing combines line totals, discounts, shipping and tax into a
// final order total.
package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Method is a shipping method with a flat rate.
type Method string

const (
	MethodStandard  Method = "standard"
	MethodExpress   Method = "express"
	MethodOvernight Method = "overnight"
)

// ParseMethod converts a request string into a shipping Method.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodStandard, MethodExpress, MethodOvernight:
		return Method(s), nil
	default:
		return "", errors.Errorf("unknown shipping method: %q", s)
	}
}

// Flat shipping rates by method.
var shippingRates = map[Method]decimal.Decimal{
	MethodStandard:  decimal.RequireFromString("5.99"),
	MethodExpress:   decimal.RequireFromString("14.99"),
	MethodOvernight: decimal.RequireFromString("29.99"),
}

// Address is the shipping destination used for tax jurisdiction lookup.
type Address struct {
	Line1      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// TaxResolver resolves the tax rate for an address. Rates are fractions in
// [0,1). Treated as a pure function of the address.
type TaxResolver interface {
	Rate(ctx context.Context, addr Address) (decimal.Decimal, error)
}

// NonPositiveTotalError indicates the computed total was zero or negative,
// which means inconsistent data (e.g. a discount exceeding the subtotal).
// The attempt is rejected, never clamped.
type NonPositiveTotalError struct {
	Total decimal.Decimal
}

func (e *NonPositiveTotalError) Error() string {
	return "computed order total is not positive: " + e.Total.StringFixed(2)
}

// Totals is the priced remainder of a checkout.
type Totals struct {
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
}

// Calculator computes order totals. Stateless apart from the tax resolver.
type Calculator struct {
	taxes TaxResolver
}

// NewCalculator creates a Calculator using the given tax resolver.
func NewCalculator(taxes TaxResolver) *Calculator {
	return &Calculator{taxes: taxes}
}

// ComputeTotals prices the order remainder:
//
//	tax   = (subtotal - discount) * rate(address)
//	total = (subtotal - discount) + tax + shipping
//
// Shipping is the flat rate for the method, zero when a promotion or
// campaign granted free shipping. A non-positive total is an error.
func (c *Calculator) ComputeTotals(
	ctx context.Context,
	subtotal, discount decimal.Decimal,
	method Method,
	addr Address,
	freeShipping bool,
) (Totals, error) {
	shipping, ok := shippingRates[method]
	if !ok {
		return Totals{}, errors.Errorf("unknown shipping method: %q", method)
	}
	if freeShipping {
		shipping = decimal.Zero
	}

	rate, err := c.taxes.Rate(ctx, addr)
	if err != nil {
		return Totals{}, errors.Wrap(err, "resolve tax rate")
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Totals{}, errors.Errorf("tax rate out of range: %s", rate)
	}

	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(rate).Round(2)
	total := taxable.Add(tax).Add(shipping).Round(2)

	if !total.IsPositive() {
		return Totals{}, &NonPositiveTotalError{Total: total}
	}

	return Totals{
		ShippingCost: shipping,
		Tax:          tax,
		Total:        total,
	}, nil
}
