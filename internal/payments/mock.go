package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/lamvt/go-shop-orders/internal/orders"
)

// MockProvider is the manual-testing path: the intent is a constructed URL
// and the webhook carries an explicit status. It exercises the same guard
// logic as the real providers with the simplest possible contract.
type MockProvider struct {
	BaseURL string
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) CreateIntent(_ context.Context, o *orders.Order, requestID string) (*Intent, error) {
	q := url.Values{}
	q.Set("request_id", requestID)
	q.Set("amount", fmt.Sprintf("%d", o.TotalAmount))
	return &Intent{
		RequestID:  requestID,
		Provider:   p.Name(),
		PaymentURL: p.BaseURL + "?" + q.Encode(),
		Amount:     o.TotalAmount,
	}, nil
}

type redirectWebhook struct {
	RequestID     string `json:"request_id"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

// parseRedirectWebhook is shared with the gateway provider, which echoes the
// request id verbatim. Exact match only, no amount check.
func parseRedirectWebhook(body []byte) (*Event, error) {
	var w redirectWebhook
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if w.RequestID == "" || w.Status == "" {
		return nil, fmt.Errorf("%w: request_id and status are required", ErrMalformedPayload)
	}
	return &Event{
		Token:        w.RequestID,
		ProviderTxID: w.TransactionID,
		Incoming:     true,
		ExactMatch:   true,
		CheckAmount:  false,
		Succeeded:    w.Status == "success",
	}, nil
}

func (p *MockProvider) ParseWebhook(body []byte) (*Event, error) {
	return parseRedirectWebhook(body)
}
