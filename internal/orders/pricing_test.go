package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamvt/go-shop-orders/internal/cart"
	"github.com/lamvt/go-shop-orders/internal/catalog"
	"github.com/lamvt/go-shop-orders/internal/inventory"
)

func line(name string, qty, stock int, price int64, sale *int64, active bool) cart.Line {
	return cart.Line{
		Item: cart.Item{ProductID: "p-" + name, Quantity: qty},
		Product: catalog.Product{
			ID:            "p-" + name,
			Name:          name,
			OriginalPrice: price,
			SalePrice:     sale,
			StockQuantity: stock,
			IsActive:      active,
		},
	}
}

func i64(v int64) *int64 { return &v }

func TestValidateLines_EmptyCart(t *testing.T) {
	assert.ErrorIs(t, ValidateLines(nil), ErrEmptyCart)
	assert.ErrorIs(t, ValidateLines([]cart.Line{}), ErrEmptyCart)
}

func TestValidateLines_InactiveProduct(t *testing.T) {
	err := ValidateLines([]cart.Line{line("Old Phone", 1, 10, 100_000, nil, false)})
	require.ErrorIs(t, err, ErrProductUnavailable)
	assert.Contains(t, err.Error(), "Old Phone")
}

func TestValidateLines_InsufficientStock(t *testing.T) {
	err := ValidateLines([]cart.Line{line("Laptop", 3, 2, 100_000, nil, true)})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Laptop")
	assert.Contains(t, err.Error(), "2")
}

func TestValidateLines_OK(t *testing.T) {
	assert.NoError(t, ValidateLines([]cart.Line{
		line("A", 2, 2, 100_000, nil, true),
		line("B", 1, 5, 200_000, i64(150_000), true),
	}))
}

func TestQuote_SalePriceWins(t *testing.T) {
	p := Pricing{FreeShippingThreshold: 5_000_000, ShippingFee: 50_000}
	subtotal, shipping := p.Quote([]cart.Line{
		line("A", 2, 10, 200_000, i64(150_000), true),
		line("B", 1, 10, 100_000, nil, true),
	})
	assert.Equal(t, int64(400_000), subtotal) // 2*150k + 100k
	assert.Equal(t, int64(50_000), shipping)
}

func TestQuote_FreeShippingThreshold(t *testing.T) {
	p := Pricing{FreeShippingThreshold: 5_000_000, ShippingFee: 50_000}

	_, shipping := p.Quote([]cart.Line{line("A", 1, 10, 4_999_999, nil, true)})
	assert.Equal(t, int64(50_000), shipping)

	_, shipping = p.Quote([]cart.Line{line("A", 1, 10, 5_000_000, nil, true)})
	assert.Equal(t, int64(0), shipping, "threshold is inclusive")

	_, shipping = p.Quote([]cart.Line{line("A", 1, 10, 6_000_000, nil, true)})
	assert.Equal(t, int64(0), shipping)
}

func TestSnapshot(t *testing.T) {
	items := Snapshot([]cart.Line{line("A", 3, 10, 200_000, i64(180_000), true)})
	require.Len(t, items, 1)
	assert.Equal(t, "p-A", items[0].ProductID)
	assert.Equal(t, "A", items[0].ProductName)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, int64(180_000), items[0].UnitPrice)
	assert.Equal(t, int64(540_000), items[0].TotalPrice)
}
