package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lamvt/go-shop-orders/internal/kafka"
	"github.com/lamvt/go-shop-orders/internal/metrics"
	"github.com/lamvt/go-shop-orders/internal/orders"
	"github.com/lamvt/go-shop-orders/internal/payments"
	"github.com/lamvt/go-shop-orders/internal/redisx"
)

const maxWebhookBody = 1 << 20

// WebhookProcessor lets handler tests swap in a reconciler double.
type WebhookProcessor interface {
	Process(ctx context.Context, provider string, body []byte) (payments.Result, error)
}

type PaymentsHandler struct {
	Registry   *payments.Registry
	Reconciler WebhookProcessor
	Redis      redisx.Cache
}

type createPaymentReq struct {
	OrderCode string `json:"order_code"`
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Post("/api/payments", h.create)
	r.Get("/api/payments/{requestID}", h.status)
	r.Post("/api/webhooks/payment/{provider}", h.webhook)
}

func (h *PaymentsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createPaymentReq
	if err := decodeJSON(r, &req); err != nil || req.OrderCode == "" {
		writeError(w, http.StatusBadRequest, "order_code is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	intent, err := h.Registry.CreatePayment(ctx, req.OrderCode)
	if err != nil {
		writePaymentError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

// status serves client-side polling after redirect flows, cache first.
func (h *PaymentsHandler) status(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyPaymentStatus, requestID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	view, err := h.Registry.Status(ctx, requestID)
	if err != nil {
		writePaymentError(w, err)
		return
	}
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, key, kafka.MustMarshal(view), redisx.TTLStatusCache).Err()
	}
	writeJSON(w, http.StatusOK, view)
}

// webhook is the provider callback. Response codes follow the provider retry
// contract: duplicates and ignored transfers are acknowledged with 200 so
// providers stop redelivering; unresolvable payloads get 404/400 so they do
// not retry forever; amount mismatches get 422 and the transaction stays
// pending for a corrected notification.
func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	result, err := h.Reconciler.Process(ctx, provider, body)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues(provider, webhookErrLabel(err)).Inc()
		switch {
		case errors.Is(err, payments.ErrTransactionNotFound):
			writeError(w, http.StatusNotFound, "transaction not found")
		case errors.Is(err, payments.ErrMalformedPayload), errors.Is(err, payments.ErrUnknownProvider):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, payments.ErrAmountMismatch):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	metrics.WebhooksTotal.WithLabelValues(provider, string(result)).Inc()
	writeJSON(w, http.StatusOK, map[string]string{"result": string(result)})
}

func webhookErrLabel(err error) string {
	switch {
	case errors.Is(err, payments.ErrTransactionNotFound):
		return "not_found"
	case errors.Is(err, payments.ErrMalformedPayload), errors.Is(err, payments.ErrUnknownProvider):
		return "malformed"
	case errors.Is(err, payments.ErrAmountMismatch):
		return "amount_mismatch"
	default:
		return "error"
	}
}

func writePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, payments.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, "payment transaction not found")
	case errors.Is(err, payments.ErrCashOrder), errors.Is(err, payments.ErrOrderNotPayable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, payments.ErrUnknownProvider):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
