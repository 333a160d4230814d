package cart

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/pricing"
)

// Item is a single cart line.
type Item struct {
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Qty     int             `json:"qty"`
	Size    string          `json:"size,omitempty"`
	Variant string          `json:"variant,omitempty"`
}

// Cart maps an item key (product code plus options) to its line.
type Cart map[string]Item

// Add increments the line for key by qty, creating it when absent.
func (c Cart) Add(key string, qty int, price decimal.Decimal, name, size, variant string) {
	if qty <= 0 {
		return
	}
	if it, ok := c[key]; ok {
		it.Qty += qty
		c[key] = it
		return
	}
	c[key] = Item{Name: name, Price: price, Qty: qty, Size: size, Variant: variant}
}

// Remove decrements the line for key by qty and drops it once the quantity reaches zero.
func (c Cart) Remove(key string, qty int) {
	it, ok := c[key]
	if !ok || qty <= 0 {
		return
	}
	it.Qty -= qty
	if it.Qty <= 0 {
		delete(c, key)
		return
	}
	c[key] = it
}

// SubTotal is the sum of price times quantity over all lines.
func (c Cart) SubTotal() decimal.Decimal {
	items := make([]pricing.Item, 0, len(c))
	for _, it := range c {
		items = append(items, pricing.Item{Qty: it.Qty, UnitPrice: it.Price})
	}
	return pricing.Compute(items, decimal.Zero).Subtotal
}

// Keys returns the line keys in a stable order.
func (c Cart) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Empty reports whether the cart has no lines.
func (c Cart) Empty() bool { return len(c) == 0 }
