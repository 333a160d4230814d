package cart_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/cart"
)

func TestAddAndRemove(t *testing.T) {
	c := cart.Cart{}
	price := decimal.RequireFromString("499")
	c.Add("wear-the-code-xl-red", 1, price, "Wear the code", "XL", "Red")
	c.Add("wear-the-code-xl-red", 2, price, "Wear the code", "XL", "Red")
	c.Add("mug", 1, decimal.RequireFromString("149.50"), "Mug", "", "")

	require.Equal(t, 3, c["wear-the-code-xl-red"].Qty)
	require.Equal(t, "1646.5", c.SubTotal().String())
	require.Equal(t, []string{"mug", "wear-the-code-xl-red"}, c.Keys())

	c.Remove("wear-the-code-xl-red", 1)
	require.Equal(t, 2, c["wear-the-code-xl-red"].Qty)

	c.Remove("mug", 5)
	_, ok := c["mug"]
	require.False(t, ok, "line should be dropped at zero quantity")

	c.Remove("missing", 1)
	c.Add("ignored", 0, price, "x", "", "")
	require.Len(t, c, 1)
}

func TestEmptyCartSubTotal(t *testing.T) {
	require.True(t, cart.Cart{}.SubTotal().IsZero())
	require.True(t, cart.Cart{}.Empty())
}
