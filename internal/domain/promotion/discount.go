package promotion

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// computeDiscount turns a validated code into its discount effect against
// the given subtotal. Applying the same code to the same subtotal is
// deterministic; no state is consumed here.
func computeDiscount(c *Code, subtotal decimal.Decimal) (*Discount, error) {
	d := &Discount{CodeID: c.ID, Code: c.Code, Amount: decimal.Zero}

	switch c.Kind {
	case KindFixed:
		d.Amount = decimal.Min(c.Amount, subtotal)

	case KindPercentage:
		amount := subtotal.Mul(c.Amount).Div(hundred)
		if c.MaxDiscount.IsPositive() && amount.GreaterThan(c.MaxDiscount) {
			amount = c.MaxDiscount
		}
		d.Amount = amount

	case KindFreeShipping:
		d.FreeShipping = true

	case KindBundle:
		return nil, ErrBundleUnsupported

	default:
		return nil, errors.Errorf("unsupported promotion kind: %q", c.Kind)
	}

	if d.Amount.IsNegative() {
		d.Amount = decimal.Zero
	}
	d.Amount = d.Amount.Round(2)
	return d, nil
}
