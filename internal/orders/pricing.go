package orders

import (
	"errors"
	"fmt"

	"github.com/lamvt/go-shop-orders/internal/cart"
	"github.com/lamvt/go-shop-orders/internal/inventory"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrProductUnavailable = errors.New("product unavailable")
)

type Pricing struct {
	FreeShippingThreshold int64
	ShippingFee           int64
}

// ValidateLines rejects the whole cart before anything is written: every
// product must be active and every quantity coverable by current stock. The
// error names the offending product so the customer sees what to fix.
func ValidateLines(lines []cart.Line) error {
	if len(lines) == 0 {
		return ErrEmptyCart
	}
	for _, l := range lines {
		if !l.Product.IsActive {
			return fmt.Errorf("%w: %q", ErrProductUnavailable, l.Product.Name)
		}
		if l.Item.Quantity <= 0 {
			return fmt.Errorf("%w: %q has invalid quantity %d", ErrProductUnavailable, l.Product.Name, l.Item.Quantity)
		}
		if l.Item.Quantity > l.Product.StockQuantity {
			return fmt.Errorf("%w: %q has %d left, requested %d",
				inventory.ErrInsufficientStock, l.Product.Name, l.Product.StockQuantity, l.Item.Quantity)
		}
	}
	return nil
}

// Quote computes subtotal and shipping fee for a validated cart.
func (p Pricing) Quote(lines []cart.Line) (subtotal, shipping int64) {
	for _, l := range lines {
		subtotal += l.Product.UnitPrice() * int64(l.Item.Quantity)
	}
	if subtotal >= p.FreeShippingThreshold {
		return subtotal, 0
	}
	return subtotal, p.ShippingFee
}

// Snapshot turns cart lines into immutable order items.
func Snapshot(lines []cart.Line) []Item {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		unit := l.Product.UnitPrice()
		items = append(items, Item{
			ProductID:    l.Item.ProductID,
			ProductName:  l.Product.Name,
			ProductImage: l.Product.Image,
			Quantity:     l.Item.Quantity,
			UnitPrice:    unit,
			TotalPrice:   unit * int64(l.Item.Quantity),
		})
	}
	return items
}
