package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/lamvt/go-shop-orders/internal/orders"
)

// SepayProvider handles the bank-transfer flow: the customer transfers to
// the shop account with the request id in the memo, and the bank-side
// watcher posts every account movement to our webhook.
type SepayProvider struct {
	BankCode      string
	AccountNumber string
	AccountName   string
}

func (p *SepayProvider) Name() string { return "sepay" }

func (p *SepayProvider) CreateIntent(_ context.Context, o *orders.Order, requestID string) (*Intent, error) {
	// VietQR image with amount and memo pre-filled; the memo is how the
	// webhook finds its way back to this transaction.
	qr := fmt.Sprintf("https://img.vietqr.io/image/%s-%s-compact2.png?amount=%d&addInfo=%s&accountName=%s",
		p.BankCode, p.AccountNumber, o.TotalAmount,
		url.QueryEscape(requestID), url.QueryEscape(p.AccountName))
	return &Intent{
		RequestID:     requestID,
		Provider:      p.Name(),
		BankCode:      p.BankCode,
		AccountNumber: p.AccountNumber,
		AccountName:   p.AccountName,
		QRUrl:         qr,
		Memo:          requestID,
		Amount:        o.TotalAmount,
	}, nil
}

type sepayWebhook struct {
	ID             json.Number `json:"id"`
	Content        string      `json:"content"` // transfer memo; banks may wrap it in extra text
	TransferType   string      `json:"transferType"`
	TransferAmount int64       `json:"transferAmount"`
}

func (p *SepayProvider) ParseWebhook(body []byte) (*Event, error) {
	var w sepayWebhook
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if w.TransferType == "" {
		return nil, fmt.Errorf("%w: transferType is required", ErrMalformedPayload)
	}
	if w.TransferType != "in" {
		// Outgoing transfer on the merchant account; acknowledge and drop.
		return &Event{Incoming: false, ProviderTxID: w.ID.String()}, nil
	}
	if w.Content == "" {
		return nil, fmt.Errorf("%w: content is required for incoming transfers", ErrMalformedPayload)
	}
	if w.TransferAmount <= 0 {
		return nil, fmt.Errorf("%w: transferAmount %s", ErrMalformedPayload, strconv.FormatInt(w.TransferAmount, 10))
	}
	return &Event{
		Token:        w.Content,
		ProviderTxID: w.ID.String(),
		Amount:       w.TransferAmount,
		Incoming:     true,
		ExactMatch:   false, // banks prepend/append text around the memo
		CheckAmount:  true,
		Succeeded:    true, // a booked incoming transfer has no failure state
	}, nil
}
