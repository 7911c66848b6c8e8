package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderPaid      = "OrderPaid"
	EventOrderCancelled = "OrderCancelled"
	EventOrderStatus    = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order code
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderCode     string        `json:"order_code"`
	CustomerID    string        `json:"customer_id"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	TotalAmount   int64         `json:"total_amount"`
	ItemCount     int           `json:"item_count"`
}

type OrderPaidPayload struct {
	OrderCode string `json:"order_code"`
	RequestID string `json:"request_id,omitempty"` // empty for COD settlement
	Provider  string `json:"provider,omitempty"`
	Amount    int64  `json:"amount"`
}

type OrderCancelledPayload struct {
	OrderCode  string `json:"order_code"`
	CustomerID string `json:"customer_id"`
}

type OrderStatusPayload struct {
	OrderCode string `json:"order_code"`
	From      Status `json:"from"`
	To        Status `json:"to"`
}
