package discount

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Amount returns how much d takes off subtotal. It does not check eligibility.
func Amount(d Discount, subtotal decimal.Decimal) (decimal.Decimal, error) {
	switch d.Type {
	case TypePercentage:
		return percentageAmount(d, subtotal), nil
	case TypeValue:
		return floorAtZero(d.Value), nil
	default:
		return zero, errors.Errorf("unsupported discount type: %q", d.Type)
	}
}

// Net returns subtotal minus amount, floored at zero.
func Net(subtotal, amount decimal.Decimal) decimal.Decimal {
	return floorAtZero(subtotal.Sub(amount))
}

func percentageAmount(d Discount, subtotal decimal.Decimal) decimal.Decimal {
	amount := subtotal.Mul(d.Percentage).Div(hundred).Round(2)
	if amount.GreaterThan(d.MaxDiscountValue) {
		amount = d.MaxDiscountValue
	}
	return floorAtZero(amount)
}

func floorAtZero(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return zero
	}
	return v
}
