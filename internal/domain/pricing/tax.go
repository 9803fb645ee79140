package pricing

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// StaticTaxResolver resolves tax rates from a fixed jurisdiction table.
// Lookup is state first, then country, then the default rate. Good enough
// for a deployment fronted by a real tax service; the calculator only sees
// the TaxResolver interface.
type StaticTaxResolver struct {
	byState   map[string]decimal.Decimal
	byCountry map[string]decimal.Decimal
	fallback  decimal.Decimal
}

// NewStaticTaxResolver builds a resolver with the given default rate.
// Region keys are case-insensitive.
func NewStaticTaxResolver(fallback decimal.Decimal) *StaticTaxResolver {
	return &StaticTaxResolver{
		byState:   make(map[string]decimal.Decimal),
		byCountry: make(map[string]decimal.Decimal),
		fallback:  fallback,
	}
}

// SetStateRate sets the rate for a state/province code.
func (r *StaticTaxResolver) SetStateRate(state string, rate decimal.Decimal) {
	r.byState[strings.ToUpper(state)] = rate
}

// SetCountryRate sets the rate for a country code.
func (r *StaticTaxResolver) SetCountryRate(country string, rate decimal.Decimal) {
	r.byCountry[strings.ToUpper(country)] = rate
}

// Rate implements TaxResolver.
func (r *StaticTaxResolver) Rate(_ context.Context, addr Address) (decimal.Decimal, error) {
	if rate, ok := r.byState[strings.ToUpper(addr.State)]; ok {
		return rate, nil
	}
	if rate, ok := r.byCountry[strings.ToUpper(addr.Country)]; ok {
		return rate, nil
	}
	return r.fallback, nil
}
