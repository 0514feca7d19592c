// Package pricing derives order totals from catalog prices. Client-supplied
// prices are never an input.
package pricing

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount  = errors.New("order amount must be positive")
	ErrAmountOverflow = errors.New("order amount overflows minor units")
)

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

type Line struct {
	Price    decimal.Decimal
	Discount decimal.Decimal // percent, 0..100
	Quantity int
}

type Quote struct {
	Subtotal    decimal.Decimal
	Delivery    decimal.Decimal
	Total       decimal.Decimal
	AmountMinor int64
}

type Calculator struct {
	DeliveryFee decimal.Decimal
}

// UnitPrice applies a percentage discount when one is set.
func UnitPrice(price, discount decimal.Decimal) decimal.Decimal {
	if discount.IsPositive() {
		return price.Mul(decimal.NewFromInt(1).Sub(discount.Div(hundred)))
	}
	return price
}

func LineTotal(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}

// Quote sums the lines, adds the delivery fee and converts to minor units once.
func (c Calculator) Quote(lines []Line) (Quote, error) {
	sub := decimal.Zero
	for _, l := range lines {
		sub = sub.Add(LineTotal(UnitPrice(l.Price, l.Discount), l.Quantity))
	}
	total := sub.Add(c.DeliveryFee)
	minor, err := ToMinorUnits(total)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Subtotal: sub, Delivery: c.DeliveryFee, Total: total, AmountMinor: minor}, nil
}

// ToMinorUnits truncates total*100 toward zero.
func ToMinorUnits(total decimal.Decimal) (int64, error) {
	minor := total.Mul(hundred).Truncate(0)
	if minor.GreaterThan(maxMinor) {
		return 0, ErrAmountOverflow
	}
	if !minor.IsPositive() {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}
