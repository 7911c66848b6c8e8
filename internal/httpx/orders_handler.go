package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lamvt/go-shop-orders/internal/inventory"
	"github.com/lamvt/go-shop-orders/internal/kafka"
	"github.com/lamvt/go-shop-orders/internal/orders"
	"github.com/lamvt/go-shop-orders/internal/redisx"
)

type OrdersHandler struct {
	Svc   *orders.Service
	Redis redisx.Cache
}

type checkoutReq struct {
	ShippingName    string `json:"shipping_name"`
	ShippingPhone   string `json:"shipping_phone"`
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
	Note            string `json:"note"`
}

type statusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/api/checkout", h.checkout)
	r.Get("/api/orders", h.list)
	r.Get("/api/orders/{code}", h.get)
	r.Post("/api/orders/{code}/cancel", h.cancel)
	r.Patch("/api/admin/orders/{code}/status", h.updateStatus)
}

// customerID comes from the session layer in front of this service; the
// core only sees the resolved identity.
func customerID(r *http.Request) string {
	return r.Header.Get("X-Customer-Id")
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	cust := customerID(r)
	if cust == "" {
		writeError(w, http.StatusUnauthorized, "missing customer identity")
		return
	}

	var req checkoutReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ShippingName == "" || req.ShippingPhone == "" || req.ShippingAddress == "" {
		writeError(w, http.StatusBadRequest, "shipping_name, shipping_phone and shipping_address are required")
		return
	}
	method := orders.PaymentMethod(req.PaymentMethod)
	if !method.Valid() {
		writeError(w, http.StatusBadRequest, "payment_method must be cod, bank_transfer or online")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.Checkout(ctx, orders.CheckoutInput{
		CustomerID:      cust,
		ShippingName:    req.ShippingName,
		ShippingPhone:   req.ShippingPhone,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   method,
		Note:            req.Note,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}
	h.cacheOrder(ctx, o)
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	cust := customerID(r)
	if cust == "" {
		writeError(w, http.StatusUnauthorized, "missing customer identity")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Svc.List(ctx, cust)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// get serves the order detail cache first. The cached body carries the
// owner's customer id, so the ownership check holds on cache hits too.
func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	cust := customerID(r)

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, code)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			var cached orders.Order
			if json.Unmarshal([]byte(s), &cached) == nil {
				if cust != "" && cached.CustomerID != cust {
					writeError(w, http.StatusNotFound, "order not found")
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(s))
				return
			}
		}
	}

	o, err := h.Svc.Get(ctx, cust, code)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	h.cacheOrder(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cacheOrder(ctx context.Context, o *orders.Order) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.Code)
	_ = h.Redis.Set(ctx, key, kafka.MustMarshal(o), redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	cust := customerID(r)
	if cust == "" {
		writeError(w, http.StatusUnauthorized, "missing customer identity")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.Cancel(ctx, cust, chi.URLParam(r, "code"))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// updateStatus is the admin transition endpoint; admin authentication sits
// in the gateway in front of this service.
func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.UpdateStatus(ctx, chi.URLParam(r, "code"), orders.Status(req.Status))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, orders.ErrEmptyCart),
		errors.Is(err, orders.ErrProductUnavailable),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, orders.ErrIllegalTransition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
