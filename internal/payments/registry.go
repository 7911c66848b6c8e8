package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/lamvt/go-shop-orders/internal/orders"
)

var (
	ErrCashOrder           = errors.New("cash-on-delivery orders have no payment transaction")
	ErrOrderNotPayable     = errors.New("order is not payable")
	ErrTransactionNotFound = errors.New("payment transaction not found")
)

type OrderFinder interface {
	FindByCode(ctx context.Context, code string) (*orders.Order, error)
}

// TxStore is the persistence gate for payment transactions. SettleTx and
// FailTx are conditional on status = pending and report whether this caller
// won; that check-and-set is the at-most-once settlement guarantee.
type TxStore interface {
	Create(ctx context.Context, t *Transaction) error
	FindPendingByOrder(ctx context.Context, orderID string) (*Transaction, error)
	FindByRequestID(ctx context.Context, requestID string) (*Transaction, error)
	FindPendingByToken(ctx context.Context, token string) (*Transaction, error)
	SettleTx(ctx context.Context, txID, orderID, providerTxID string, raw []byte) (bool, error)
	FailTx(ctx context.Context, txID, orderID, providerTxID string, raw []byte) (bool, error)
	StatusByRequestID(ctx context.Context, requestID string) (*StatusView, error)
}

// StatusView backs the client-side polling endpoint after redirect flows.
type StatusView struct {
	RequestID     string               `json:"request_id"`
	Provider      string               `json:"provider"`
	Status        Status               `json:"status"`
	OrderCode     string               `json:"order_code"`
	PaymentStatus orders.PaymentStatus `json:"payment_status"`
	PaidAt        *time.Time           `json:"paid_at,omitempty"`
}

// Registry creates and looks up payment attempts. One provider per non-cash
// payment method, bound at startup.
type Registry struct {
	Orders    OrderFinder
	Store     TxStore
	Providers map[orders.PaymentMethod]Provider
}

// CreatePayment starts (or resumes) the payment flow for an order. An
// existing pending transaction is reused rather than duplicated, so a
// customer refreshing the payment page keeps one correlation token.
func (r *Registry) CreatePayment(ctx context.Context, orderCode string) (*Intent, error) {
	o, err := r.Orders.FindByCode(ctx, orderCode)
	if err != nil {
		return nil, err
	}
	if o.PaymentMethod.Cash() {
		return nil, ErrCashOrder
	}
	if o.PaymentStatus != orders.PaymentPending {
		return nil, fmt.Errorf("%w: payment status is %s", ErrOrderNotPayable, o.PaymentStatus)
	}

	provider, ok := r.Providers[o.PaymentMethod]
	if !ok {
		return nil, fmt.Errorf("%w: no provider for method %s", ErrUnknownProvider, o.PaymentMethod)
	}

	existing, err := r.Store.FindPendingByOrder(ctx, o.ID)
	if err != nil && !errors.Is(err, ErrTransactionNotFound) {
		return nil, err
	}
	if existing != nil {
		log.WithFields(log.Fields{
			"order_code": o.Code,
			"request_id": existing.RequestID,
		}).Info("reusing pending payment transaction")
		return provider.CreateIntent(ctx, o, existing.RequestID)
	}

	t := &Transaction{
		ID:        uuid.NewString(),
		RequestID: NewRequestID(o.Code, time.Now()),
		OrderID:   o.ID,
		OrderCode: o.Code,
		Provider:  provider.Name(),
		Amount:    o.TotalAmount,
		Status:    StatusPending,
	}
	if err := r.Store.Create(ctx, t); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"order_code": o.Code,
		"request_id": t.RequestID,
		"provider":   t.Provider,
		"amount":     t.Amount,
	}).Info("payment transaction created")

	return provider.CreateIntent(ctx, o, t.RequestID)
}

func (r *Registry) Status(ctx context.Context, requestID string) (*StatusView, error) {
	return r.Store.StatusByRequestID(ctx, requestID)
}
