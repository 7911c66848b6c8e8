package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamvt/go-shop-orders/internal/cart"
	"github.com/lamvt/go-shop-orders/internal/catalog"
	"github.com/lamvt/go-shop-orders/internal/orders"
	"github.com/lamvt/go-shop-orders/internal/redisx"
)

type fakeCache struct {
	data map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string]string{}} }

func (f *fakeCache) Get(ctx context.Context, key string) *redis.StringCmd {
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case string:
		f.data[key] = v
	case []byte:
		f.data[key] = string(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCache) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			n++
		}
		delete(f.data, k)
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeCache) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// stubStore serves one order and counts DB reads.
type stubStore struct {
	o     *orders.Order
	finds int
}

func (s *stubStore) CreateOrderTx(ctx context.Context, o *orders.Order, cartID string) error {
	o.ID = "o1"
	o.Code = "ORD20250901001"
	o.Status = orders.StatusPending
	o.PaymentStatus = orders.PaymentPending
	return nil
}

func (s *stubStore) FindByCode(ctx context.Context, code string) (*orders.Order, error) {
	s.finds++
	if s.o == nil {
		return nil, orders.ErrNotFound
	}
	return s.o, nil
}

func (s *stubStore) ListByCustomer(ctx context.Context, customerID string) ([]orders.Order, error) {
	return nil, nil
}

func (s *stubStore) TransitionTx(ctx context.Context, orderID string, from, to orders.Status, markPaid bool) (bool, error) {
	return true, nil
}

func (s *stubStore) CancelOrderTx(ctx context.Context, orderID string, from orders.Status) (bool, []string, error) {
	return true, nil, nil
}

type stubCarts struct{ lines []cart.Line }

func (s *stubCarts) GetLines(ctx context.Context, customerID string) (string, []cart.Line, error) {
	return "cart-1", s.lines, nil
}

func ordersRig(store *stubStore, carts *stubCarts, cache redisx.Cache) http.Handler {
	svc := &orders.Service{
		Carts:   carts,
		Store:   store,
		Pricing: orders.Pricing{FreeShippingThreshold: 5_000_000, ShippingFee: 50_000},
		Service: "test",
		Cache:   cache,
	}
	r := NewRouter()
	(&OrdersHandler{Svc: svc, Redis: cache}).Register(r)
	return r
}

func getOrder(t *testing.T, h http.Handler, code, customer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+code, nil)
	req.Header.Set("X-Customer-Id", customer)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetOrder_CacheMissWarmsCache(t *testing.T) {
	store := &stubStore{o: &orders.Order{ID: "o1", Code: "ORD1", CustomerID: "cust-1", Status: orders.StatusPending}}
	fc := newFakeCache()
	h := ordersRig(store, &stubCarts{}, fc)

	rec := getOrder(t, h, "ORD1", "cust-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.finds)
	assert.Contains(t, fc.data, fmt.Sprintf(redisx.KeyOrderStatus, "ORD1"))

	// A second read is served from the cache without touching the store.
	rec = getOrder(t, h, "ORD1", "cust-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.finds)

	var o orders.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, "ORD1", o.Code)
}

func TestGetOrder_CacheHitKeepsOwnershipCheck(t *testing.T) {
	store := &stubStore{o: &orders.Order{ID: "o1", Code: "ORD1", CustomerID: "cust-1", Status: orders.StatusPending}}
	fc := newFakeCache()
	h := ordersRig(store, &stubCarts{}, fc)

	require.Equal(t, http.StatusOK, getOrder(t, h, "ORD1", "cust-1").Code)

	// Cached or not, a foreign order looks like a missing order.
	rec := getOrder(t, h, "ORD1", "cust-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1, store.finds)
}

func TestGetOrder_NotFound(t *testing.T) {
	h := ordersRig(&stubStore{}, &stubCarts{}, newFakeCache())

	rec := getOrder(t, h, "ORD404", "cust-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckout_WarmsOrderCache(t *testing.T) {
	carts := &stubCarts{lines: []cart.Line{{
		Item: cart.Item{ProductID: "p1", Quantity: 1},
		Product: catalog.Product{
			ID: "p1", Name: "Phone", OriginalPrice: 100_000,
			StockQuantity: 5, IsActive: true,
		},
	}}}
	store := &stubStore{}
	fc := newFakeCache()
	h := ordersRig(store, carts, fc)

	body := `{"shipping_name":"A","shipping_phone":"0","shipping_address":"X","payment_method":"cod"}`
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
	req.Header.Set("X-Customer-Id", "cust-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, fc.data, fmt.Sprintf(redisx.KeyOrderStatus, "ORD20250901001"))
}
