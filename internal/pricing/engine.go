package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a rupee amount.
type Money = decimal.Decimal

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal Money
	Shipping Money
	Total    Money
}

// Compute calculates totals for the provided items. Lines with a non-positive quantity are skipped.
func Compute(items []Item, shipping Money) Summary {
	subtotal := decimal.Zero
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Qty))))
	}
	if shipping.IsNegative() {
		shipping = decimal.Zero
	}
	return Summary{
		Subtotal: subtotal,
		Shipping: shipping,
		Total:    subtotal.Add(shipping),
	}
}

// GatewayAmount renders an amount the way the payment gateway expects it ("499.00").
func GatewayAmount(m Money) string {
	return m.StringFixed(2)
}

// ParseAmount parses a decimal amount, rejecting negatives and more than two fractional digits.
func ParseAmount(value string) (Money, error) {
	m, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", value, err)
	}
	if m.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount %q is negative", value)
	}
	if !m.Equal(m.Round(2)) {
		return decimal.Zero, fmt.Errorf("amount %q has more than two decimals", value)
	}
	return m, nil
}
