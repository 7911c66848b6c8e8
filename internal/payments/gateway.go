package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/lamvt/go-shop-orders/internal/orders"
)

// GatewayProvider talks to a hosted checkout gateway: intent creation is an
// outbound API call that returns a checkout URL, and the gateway echoes our
// request id back on its webhook (same shape as the mock provider).
type GatewayProvider struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
}

func NewGatewayProvider(baseURL string) *GatewayProvider {
	return &GatewayProvider{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(5 * time.Second).
			SetRetryCount(1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "payment-gateway",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= 3 &&
					float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
			},
		}),
	}
}

func (p *GatewayProvider) Name() string { return "gateway" }

type gatewayIntentReq struct {
	RequestID string `json:"request_id"`
	OrderCode string `json:"order_code"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type gatewayIntentResp struct {
	CheckoutURL string `json:"checkout_url"`
}

func (p *GatewayProvider) CreateIntent(ctx context.Context, o *orders.Order, requestID string) (*Intent, error) {
	out, err := p.breaker.Execute(func() (interface{}, error) {
		var body gatewayIntentResp
		resp, err := p.client.R().
			SetContext(ctx).
			SetBody(gatewayIntentReq{
				RequestID: requestID,
				OrderCode: o.Code,
				Amount:    o.TotalAmount,
				Currency:  "VND",
			}).
			SetResult(&body).
			Post("/intents")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("gateway intent failed: %s", resp.Status())
		}
		return &body, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("payment gateway unavailable: %w", err)
		}
		return nil, err
	}
	body := out.(*gatewayIntentResp)
	return &Intent{
		RequestID:  requestID,
		Provider:   p.Name(),
		PaymentURL: body.CheckoutURL,
		Amount:     o.TotalAmount,
	}, nil
}

func (p *GatewayProvider) ParseWebhook(body []byte) (*Event, error) {
	return parseRedirectWebhook(body)
}
