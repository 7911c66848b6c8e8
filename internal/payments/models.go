package payments

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Transaction is one payment attempt for an order. Once the status leaves
// pending it is terminal; the conditional update in the repo enforces that.
type Transaction struct {
	ID        string
	RequestID string // REQ_<order_code>_<epoch>, echoed back by the provider
	OrderID   string
	OrderCode string // joined from orders for correlation and events
	Provider  string

	Amount           int64 // expected amount at creation time
	Status           Status
	SignatureValid   bool
	ProviderTxID     string
	ProviderResponse []byte // raw webhook payload kept for audit

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanBeProcessed is the idempotency boundary: only a pending transaction may
// be settled or failed. The repo re-checks this atomically inside the
// settlement update; this accessor is the cheap fast path.
func (t *Transaction) CanBeProcessed() bool { return t.Status == StatusPending }

// NewRequestID derives the provider-facing correlation token.
func NewRequestID(orderCode string, now time.Time) string {
	return fmt.Sprintf("REQ_%s_%d", orderCode, now.Unix())
}
