package orders

import "time"

type PaymentMethod string

const (
	MethodCOD          PaymentMethod = "cod"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodOnline       PaymentMethod = "online"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCOD, MethodBankTransfer, MethodOnline:
		return true
	}
	return false
}

// Cash reports whether the method settles outside the payment provider flow
// (COD settles on delivery, never via webhook).
func (m PaymentMethod) Cash() bool { return m == MethodCOD }

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type Order struct {
	ID         string
	Code       string // ORD<yyyymmdd><seq>, immutable
	CustomerID string

	Subtotal    int64
	ShippingFee int64
	Discount    int64
	TotalAmount int64 // subtotal + shipping - discount

	Status        Status
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	PaidAt        *time.Time

	ShippingName    string
	ShippingPhone   string
	ShippingAddress string
	Note            string

	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is a snapshot of the product at purchase time; later catalog changes
// never rewrite order history.
type Item struct {
	ID           string
	OrderID      string
	ProductID    string
	ProductName  string
	ProductImage string
	Quantity     int
	UnitPrice    int64
	TotalPrice   int64 // unit price x quantity
}
