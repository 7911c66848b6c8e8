package cart

import "github.com/lamvt/go-shop-orders/internal/catalog"

type Cart struct {
	ID         string
	CustomerID string
}

type Item struct {
	ID        string
	CartID    string
	ProductID string
	Quantity  int
}

// Line pairs a cart item with the current catalog row so checkout can
// validate and price it in one pass.
type Line struct {
	Item    Item
	Product catalog.Product
}
