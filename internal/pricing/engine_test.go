package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/pricing"
)

func TestComputeSkipsEmptyLines(t *testing.T) {
	summary := pricing.Compute([]pricing.Item{
		{Qty: 2, UnitPrice: decimal.RequireFromString("499")},
		{Qty: 0, UnitPrice: decimal.RequireFromString("1000")},
		{Qty: 1, UnitPrice: decimal.RequireFromString("49.50")},
	}, decimal.Zero)

	require.Equal(t, "1047.5", summary.Subtotal.String())
	require.True(t, summary.Total.Equal(summary.Subtotal))
}

func TestGatewayAmount(t *testing.T) {
	require.Equal(t, "499.00", pricing.GatewayAmount(decimal.NewFromInt(499)))
	require.Equal(t, "0.50", pricing.GatewayAmount(decimal.RequireFromString("0.5")))
}

func TestParseAmount(t *testing.T) {
	m, err := pricing.ParseAmount("12.50")
	require.NoError(t, err)
	require.Equal(t, "12.5", m.String())

	_, err = pricing.ParseAmount("-1")
	require.Error(t, err)
	_, err = pricing.ParseAmount("1.005")
	require.Error(t, err)
	_, err = pricing.ParseAmount("abc")
	require.Error(t, err)
}
