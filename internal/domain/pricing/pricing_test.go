package pricing

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRate struct {
	rate decimal.Decimal
	err  error
}

func (f fixedRate) Rate(_ context.Context, _ Address) (decimal.Decimal, error) {
	return f.rate, f.err
}

func tenPercent() TaxResolver {
	return fixedRate{rate: decimal.RequireFromString("0.10")}
}

func TestComputeTotals_StandardShipping(t *testing.T) {
	c := NewCalculator(tenPercent())

	// Post-campaign subtotal 80, no promotion discount: taxable 80,
	// tax 8, shipping 5.99.
	totals, err := c.ComputeTotals(context.Background(),
		decimal.NewFromInt(80), decimal.Zero, MethodStandard, Address{}, false)
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("5.99").Equal(totals.ShippingCost))
	assert.True(t, decimal.NewFromInt(8).Equal(totals.Tax))
	assert.True(t, decimal.RequireFromString("93.99").Equal(totals.Total))
}

func TestComputeTotals_WithPromotionDiscount(t *testing.T) {
	c := NewCalculator(tenPercent())

	// Subtotal 80 minus a $15 code: taxable 65, tax 6.50.
	totals, err := c.ComputeTotals(context.Background(),
		decimal.NewFromInt(80), decimal.NewFromInt(15), MethodStandard, Address{}, false)
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("6.5").Equal(totals.Tax))
	assert.True(t, decimal.RequireFromString("77.49").Equal(totals.Total))
}

func TestComputeTotals_FreeShipping(t *testing.T) {
	c := NewCalculator(tenPercent())

	totals, err := c.ComputeTotals(context.Background(),
		decimal.NewFromInt(50), decimal.Zero, MethodExpress, Address{}, true)
	require.NoError(t, err)

	assert.True(t, totals.ShippingCost.IsZero())
	assert.True(t, decimal.NewFromInt(55).Equal(totals.Total))
}

func TestComputeTotals_TotalIdentityHolds(t *testing.T) {
	c := NewCalculator(tenPercent())

	subtotal := decimal.RequireFromString("123.45")
	discount := decimal.RequireFromString("23.45")

	totals, err := c.ComputeTotals(context.Background(),
		subtotal, discount, MethodOvernight, Address{}, false)
	require.NoError(t, err)

	want := subtotal.Sub(discount).Add(totals.Tax).Add(totals.ShippingCost)
	assert.True(t, want.Equal(totals.Total))
}

func TestComputeTotals_RejectsNonPositiveTotal(t *testing.T) {
	c := NewCalculator(fixedRate{rate: decimal.Zero})

	// Discount swallows the subtotal and there is no shipping or tax left
	// to keep the total positive.
	_, err := c.ComputeTotals(context.Background(),
		decimal.NewFromInt(50), decimal.NewFromInt(50), MethodStandard, Address{}, true)

	var nptErr *NonPositiveTotalError
	require.ErrorAs(t, err, &nptErr)
	assert.True(t, nptErr.Total.IsZero())
}

func TestComputeTotals_UnknownMethod(t *testing.T) {
	c := NewCalculator(tenPercent())

	_, err := c.ComputeTotals(context.Background(),
		decimal.NewFromInt(50), decimal.Zero, Method("pigeon"), Address{}, false)
	require.Error(t, err)
}

func TestComputeTotals_ResolverErrorPropagates(t *testing.T) {
	wantErr := errors.New("jurisdiction service down")
	c := NewCalculator(fixedRate{err: wantErr})

	_, err := c.ComputeTotals(context.Background(),
		decimal.NewFromInt(50), decimal.Zero, MethodStandard, Address{}, false)
	require.ErrorIs(t, err, wantErr)
}

func TestComputeTotals_RejectsOutOfRangeRate(t *testing.T) {
	c := NewCalculator(fixedRate{rate: decimal.NewFromInt(1)})

	_, err := c.ComputeTotals(context.Background(),
		decimal.NewFromInt(50), decimal.Zero, MethodStandard, Address{}, false)
	require.Error(t, err)
}

func TestStaticTaxResolver_LookupOrder(t *testing.T) {
	r := NewStaticTaxResolver(decimal.RequireFromString("0.05"))
	r.SetCountryRate("US", decimal.RequireFromString("0.08"))
	r.SetStateRate("CA", decimal.RequireFromString("0.0925"))

	ctx := context.Background()

	rate, err := r.Rate(ctx, Address{Country: "US", State: "CA"})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.0925").Equal(rate), "state beats country")

	rate, err = r.Rate(ctx, Address{Country: "us", State: "NY"})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.08").Equal(rate))

	rate, err = r.Rate(ctx, Address{Country: "DE"})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.05").Equal(rate))
}

func TestParseMethod(t *testing.T) {
	for _, s := range []string{"standard", "express", "overnight"} {
		m, err := ParseMethod(s)
		require.NoError(t, err)
		assert.Equal(t, Method(s), m)
	}
	_, err := ParseMethod("drone")
	require.Error(t, err)
}
