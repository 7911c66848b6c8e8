// Package notify consumes order lifecycle events and triggers customer
// notifications. Delivery itself (mail/SMS) is a thin adapter; here we
// decide what to send and make sure redeliveries do not send twice.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	kafkax "github.com/lamvt/go-shop-orders/internal/kafka"
	"github.com/lamvt/go-shop-orders/internal/orders"
	"github.com/lamvt/go-shop-orders/internal/redisx"
)

type Service struct {
	Redis redisx.Cache
}

// HandleOrderEvent is plugged into the kafka consumer for every order topic.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	dkey := fmt.Sprintf(redisx.KeyNotifyDedup, env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}

	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"order_code": p.OrderCode,
			"customer":   p.CustomerID,
			"total":      p.TotalAmount,
		}).Info("sending order confirmation")
	case orders.EventOrderPaid:
		p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"order_code": p.OrderCode,
			"provider":   p.Provider,
			"amount":     p.Amount,
		}).Info("sending payment receipt")
	case orders.EventOrderCancelled:
		p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"order_code": p.OrderCode,
			"customer":   p.CustomerID,
		}).Info("sending cancellation notice")
	default:
		return nil
	}

	return s.Redis.Set(ctx, dkey, "1", redisx.TTLNotifyDedup).Err()
}
