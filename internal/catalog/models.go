package catalog

import "time"

// Product is the read-only catalog view the checkout path depends on.
// Stock mutation goes through the inventory package, never through here.
type Product struct {
	ID            string
	Name          string
	Image         string
	OriginalPrice int64 // VND
	SalePrice     *int64
	StockQuantity int
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UnitPrice returns the price a buyer pays right now: the sale price when
// one is set, the original price otherwise.
func (p Product) UnitPrice() int64 {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.OriginalPrice
}
