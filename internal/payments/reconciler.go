package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	kafkax "github.com/lamvt/go-shop-orders/internal/kafka"
	"github.com/lamvt/go-shop-orders/internal/orders"
	"github.com/lamvt/go-shop-orders/internal/redisx"
)

var ErrAmountMismatch = errors.New("webhook amount below tolerance")

// Result classifies what a webhook delivery did. Duplicate and Ignored are
// successes to the caller; they differ from Settled only for audit.
type Result string

const (
	ResultSettled   Result = "settled"
	ResultDuplicate Result = "duplicate"
	ResultIgnored   Result = "ignored"
	ResultFailed    Result = "failed"
)

// Reconciler turns untrusted provider notifications into at-most-once state
// changes. Providers redeliver freely; the pending-only conditional update
// in the store decides which delivery wins.
type Reconciler struct {
	Store     TxStore
	Providers map[string]Provider

	// Cache is an optional fast path (dedup by provider tx id, status cache
	// refresh). The database guard stays authoritative.
	Cache redisx.Cache

	Paid    orders.Publisher
	Service string
}

func (r *Reconciler) Process(ctx context.Context, providerName string, body []byte) (Result, error) {
	provider, ok := r.Providers[providerName]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}

	ev, err := provider.ParseWebhook(body)
	if err != nil {
		return "", err
	}
	if !ev.Incoming {
		// Outgoing transfer on the merchant account; acknowledged, no-op.
		return ResultIgnored, nil
	}

	if dup, _ := r.seenBefore(ctx, providerName, ev.ProviderTxID); dup {
		return ResultDuplicate, nil
	}

	t, err := r.lookup(ctx, ev)
	if err != nil {
		return "", err
	}

	if !t.CanBeProcessed() {
		// Redelivery of an already-settled notification. Success, no side
		// effects.
		log.WithFields(log.Fields{
			"request_id": t.RequestID,
			"status":     t.Status,
			"provider":   providerName,
		}).Info("webhook redelivery ignored")
		return ResultDuplicate, nil
	}

	if !ev.Succeeded {
		won, err := r.Store.FailTx(ctx, t.ID, t.OrderID, ev.ProviderTxID, body)
		if err != nil {
			return "", err
		}
		if !won {
			return ResultDuplicate, nil
		}
		r.refreshCaches(ctx, providerName, ev.ProviderTxID, t)
		log.WithFields(log.Fields{"request_id": t.RequestID, "provider": providerName}).
			Warn("payment reported failed by provider")
		return ResultFailed, nil
	}

	if ev.CheckAmount && !AmountWithinTolerance(ev.Amount, t.Amount) {
		// The transaction stays pending so a corrected notification can
		// still settle it.
		return "", fmt.Errorf("%w: received %d, expected %d", ErrAmountMismatch, ev.Amount, t.Amount)
	}

	won, err := r.Store.SettleTx(ctx, t.ID, t.OrderID, ev.ProviderTxID, body)
	if err != nil {
		return "", err
	}
	if !won {
		// A concurrent delivery settled it between our read and the update.
		return ResultDuplicate, nil
	}

	r.refreshCaches(ctx, providerName, ev.ProviderTxID, t)
	log.WithFields(log.Fields{
		"request_id": t.RequestID,
		"order_code": t.OrderCode,
		"provider":   providerName,
		"amount":     ev.Amount,
	}).Info("payment settled")

	amount := ev.Amount
	if amount == 0 {
		amount = t.Amount // providers without an amount field settle at face value
	}
	r.emitPaid(t, amount)
	return ResultSettled, nil
}

// lookup resolves the correlation token to a transaction: exact request id
// first, then (for providers whose memo may be wrapped in bank text) a
// substring match scoped to pending transactions.
func (r *Reconciler) lookup(ctx context.Context, ev *Event) (*Transaction, error) {
	t, err := r.Store.FindByRequestID(ctx, ev.Token)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrTransactionNotFound) || ev.ExactMatch {
		return nil, err
	}
	return r.Store.FindPendingByToken(ctx, ev.Token)
}

func (r *Reconciler) seenBefore(ctx context.Context, providerName, providerTxID string) (bool, error) {
	if r.Cache == nil || providerTxID == "" {
		return false, nil
	}
	key := fmt.Sprintf(redisx.KeyWebhookDedup, providerName, providerTxID)
	return redisx.Exists(ctx, r.Cache, key)
}

func (r *Reconciler) refreshCaches(ctx context.Context, providerName, providerTxID string, t *Transaction) {
	if r.Cache == nil {
		return
	}
	if providerTxID != "" {
		key := fmt.Sprintf(redisx.KeyWebhookDedup, providerName, providerTxID)
		_ = r.Cache.Set(ctx, key, "1", redisx.TTLWebhookDedup).Err()
	}
	// Drop stale status caches; the next poll reloads from the DB.
	_ = r.Cache.Del(ctx,
		fmt.Sprintf(redisx.KeyPaymentStatus, t.RequestID),
		fmt.Sprintf(redisx.KeyOrderStatus, t.OrderCode),
	).Err()
}

func (r *Reconciler) emitPaid(t *Transaction, amount int64) {
	if r.Paid == nil {
		return
	}
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPaid,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      r.Service,
		CorrelationID: t.OrderCode,
		Payload: kafkax.MustMarshal(orders.OrderPaidPayload{
			OrderCode: t.OrderCode,
			RequestID: t.RequestID,
			Provider:  t.Provider,
			Amount:    amount,
		}),
	}
	r.Paid.Publish(orders.PartitionKey(t.OrderCode), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPaid)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
