package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/lamvt/go-shop-orders/internal/cart"
	"github.com/lamvt/go-shop-orders/internal/inventory"
	kafkax "github.com/lamvt/go-shop-orders/internal/kafka"
	"github.com/lamvt/go-shop-orders/internal/metrics"
	"github.com/lamvt/go-shop-orders/internal/redisx"
)

type CartReader interface {
	GetLines(ctx context.Context, customerID string) (cartID string, lines []cart.Line, err error)
}

type Store interface {
	CreateOrderTx(ctx context.Context, o *Order, cartID string) error
	FindByCode(ctx context.Context, code string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	TransitionTx(ctx context.Context, orderID string, from, to Status, markPaid bool) (bool, error)
	// CancelOrderTx reports the request ids of payment transactions it voided
	// so their cached status views can be dropped.
	CancelOrderTx(ctx context.Context, orderID string, from Status) (won bool, voidedRequestIDs []string, err error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Carts   CartReader
	Store   Store
	Pricing Pricing
	Service string

	// Cache is optional; mutations drop the affected status views so reads
	// reload from the DB.
	Cache redisx.Cache

	// One producer per topic, any of them may be nil (tests, notifier-less
	// deployments).
	Created       Publisher
	Paid          Publisher
	Cancelled     Publisher
	StatusChanged Publisher
}

type CheckoutInput struct {
	CustomerID      string
	ShippingName    string
	ShippingPhone   string
	ShippingAddress string
	PaymentMethod   PaymentMethod
	Note            string
}

// Checkout turns the customer's cart into a durable order, or fails leaving
// no partial state. Validation happens before any write; the write itself is
// one transaction in the store.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*Order, error) {
	cartID, lines, err := s.Carts.GetLines(ctx, in.CustomerID)
	if err != nil {
		metrics.CheckoutsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if err := ValidateLines(lines); err != nil {
		metrics.CheckoutsTotal.WithLabelValues(checkoutResult(err)).Inc()
		return nil, err
	}

	subtotal, shipping := s.Pricing.Quote(lines)
	o := &Order{
		CustomerID:      in.CustomerID,
		Subtotal:        subtotal,
		ShippingFee:     shipping,
		TotalAmount:     subtotal + shipping,
		PaymentMethod:   in.PaymentMethod,
		ShippingName:    in.ShippingName,
		ShippingPhone:   in.ShippingPhone,
		ShippingAddress: in.ShippingAddress,
		Note:            in.Note,
		Items:           Snapshot(lines),
	}

	if err := s.Store.CreateOrderTx(ctx, o, cartID); err != nil {
		metrics.CheckoutsTotal.WithLabelValues(checkoutResult(err)).Inc()
		return nil, err
	}
	metrics.CheckoutsTotal.WithLabelValues("created").Inc()

	log.WithFields(log.Fields{
		"order_code": o.Code,
		"customer":   o.CustomerID,
		"total":      o.TotalAmount,
		"method":     o.PaymentMethod,
	}).Info("order created")

	s.emit(s.Created, EventOrderCreated, o.Code, OrderCreatedPayload{
		OrderCode:     o.Code,
		CustomerID:    o.CustomerID,
		PaymentMethod: o.PaymentMethod,
		TotalAmount:   o.TotalAmount,
		ItemCount:     len(o.Items),
	})
	return o, nil
}

func checkoutResult(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrProductUnavailable):
		return "unavailable"
	case errors.Is(err, inventory.ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "error"
	}
}

// Get returns an order; when customerID is non-empty the order must belong
// to that customer (unknown and foreign orders look the same to the caller).
func (s *Service) Get(ctx context.Context, customerID, code string) (*Order, error) {
	o, err := s.Store.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if customerID != "" && o.CustomerID != customerID {
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, customerID string) ([]Order, error) {
	return s.Store.ListByCustomer(ctx, customerID)
}

// Cancel is the customer-facing cancellation: only pending and confirmed
// orders qualify, and the store releases reserved stock in the same
// transaction that flips the status.
func (s *Service) Cancel(ctx context.Context, customerID, code string) (*Order, error) {
	o, err := s.Get(ctx, customerID, code)
	if err != nil {
		return nil, err
	}
	if !CanBeCancelled(o.Status) {
		return nil, fmt.Errorf("%w: cannot cancel order in status %s", ErrIllegalTransition, o.Status)
	}

	won, voided, err := s.Store.CancelOrderTx(ctx, o.ID, o.Status)
	if err != nil {
		return nil, err
	}
	if !won {
		// Lost a race with a concurrent transition; report against the
		// fresh status.
		fresh, ferr := s.Store.FindByCode(ctx, code)
		if ferr != nil {
			return nil, ferr
		}
		if fresh.Status == StatusCancelled {
			return fresh, nil
		}
		return nil, fmt.Errorf("%w: cannot cancel order in status %s", ErrIllegalTransition, fresh.Status)
	}
	metrics.OrderTransitionsTotal.WithLabelValues(string(StatusCancelled)).Inc()
	s.invalidate(ctx, code, voided)

	log.WithFields(log.Fields{"order_code": code, "customer": customerID}).Info("order cancelled")
	s.emit(s.Cancelled, EventOrderCancelled, code, OrderCancelledPayload{OrderCode: code, CustomerID: o.CustomerID})

	return s.Store.FindByCode(ctx, code)
}

// UpdateStatus is the admin transition. Cancelling through here runs the
// same stock-releasing path as the customer cancel; delivering a COD order
// settles its payment in the same update.
func (s *Service) UpdateStatus(ctx context.Context, code string, to Status) (*Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, to)
	}
	o, err := s.Store.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.Status, to)
	}

	var (
		won    bool
		voided []string
	)
	markPaid := to == StatusDelivered && o.PaymentMethod.Cash() && o.PaymentStatus == PaymentPending
	if to == StatusCancelled {
		won, voided, err = s.Store.CancelOrderTx(ctx, o.ID, o.Status)
	} else {
		won, err = s.Store.TransitionTx(ctx, o.ID, o.Status, to, markPaid)
	}
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("%w: order %s changed concurrently", ErrIllegalTransition, code)
	}
	metrics.OrderTransitionsTotal.WithLabelValues(string(to)).Inc()
	s.invalidate(ctx, code, voided)

	log.WithFields(log.Fields{"order_code": code, "from": o.Status, "to": to}).Info("order status updated")
	s.emit(s.StatusChanged, EventOrderStatus, code, OrderStatusPayload{OrderCode: code, From: o.Status, To: to})
	if markPaid {
		s.emit(s.Paid, EventOrderPaid, code, OrderPaidPayload{OrderCode: code, Amount: o.TotalAmount})
	}

	return s.Store.FindByCode(ctx, code)
}

// invalidate drops the cached order view and the status views of any voided
// payment transactions after a won transition.
func (s *Service) invalidate(ctx context.Context, orderCode string, requestIDs []string) {
	if s.Cache == nil {
		return
	}
	keys := []string{fmt.Sprintf(redisx.KeyOrderStatus, orderCode)}
	for _, rid := range requestIDs {
		keys = append(keys, fmt.Sprintf(redisx.KeyPaymentStatus, rid))
	}
	_ = s.Cache.Del(ctx, keys...).Err()
}

func (s *Service) emit(p Publisher, eventType, orderCode string, payload any) {
	if p == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Service,
		CorrelationID: orderCode,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(PartitionKey(orderCode), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
