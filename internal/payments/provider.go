package payments

import (
	"context"
	"errors"

	"github.com/lamvt/go-shop-orders/internal/orders"
)

var (
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrUnknownProvider  = errors.New("unknown payment provider")
)

// Intent is what the customer needs to complete the payment: either a
// redirect URL, or bank-transfer instructions with the request id as memo.
type Intent struct {
	RequestID  string `json:"request_id"`
	Provider   string `json:"provider"`
	PaymentURL string `json:"payment_url,omitempty"`

	BankCode      string `json:"bank_code,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
	QRUrl         string `json:"qr_url,omitempty"`
	Memo          string `json:"memo,omitempty"`

	Amount int64 `json:"amount"`
}

// Event is a provider notification normalized for the reconciler.
type Event struct {
	Token        string // correlation token (request id, or memo containing it)
	ProviderTxID string
	Amount       int64
	Incoming     bool // outgoing transfers on the merchant account are ignored
	ExactMatch   bool // token must equal request_id exactly (no substring fallback)
	CheckAmount  bool // apply the tolerance rule
	Succeeded    bool // providers with an explicit status flag report failures too
}

// Provider is one payment integration. Selection is configuration-driven at
// startup; the reconciler dispatches webhooks by name.
type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, o *orders.Order, requestID string) (*Intent, error)
	ParseWebhook(body []byte) (*Event, error)
}
