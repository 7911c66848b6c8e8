package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lamvt/go-shop-orders/internal/cart"
	"github.com/lamvt/go-shop-orders/internal/inventory"
	"github.com/lamvt/go-shop-orders/internal/redisx"
)

type mockCarts struct{ mock.Mock }

func (m *mockCarts) GetLines(ctx context.Context, customerID string) (string, []cart.Line, error) {
	args := m.Called(ctx, customerID)
	return args.String(0), args.Get(1).([]cart.Line), args.Error(2)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) CreateOrderTx(ctx context.Context, o *Order, cartID string) error {
	args := m.Called(ctx, o, cartID)
	return args.Error(0)
}

func (m *mockStore) FindByCode(ctx context.Context, code string) (*Order, error) {
	args := m.Called(ctx, code)
	if o := args.Get(0); o != nil {
		return o.(*Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	args := m.Called(ctx, customerID)
	if o := args.Get(0); o != nil {
		return o.([]Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) TransitionTx(ctx context.Context, orderID string, from, to Status, markPaid bool) (bool, error) {
	args := m.Called(ctx, orderID, from, to, markPaid)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) CancelOrderTx(ctx context.Context, orderID string, from Status) (bool, []string, error) {
	args := m.Called(ctx, orderID, from)
	var voided []string
	if v := args.Get(1); v != nil {
		voided = v.([]string)
	}
	return args.Bool(0), voided, args.Error(2)
}

// fakeCache is an in-memory stand-in for the redis fast path.
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

type fakePublisher struct {
	keys   []string
	values [][]byte
}

func (f *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	f.keys = append(f.keys, string(key))
	f.values = append(f.values, value)
}

func newTestService(carts *mockCarts, store *mockStore) (*Service, *fakePublisher) {
	pub := &fakePublisher{}
	return &Service{
		Carts:         carts,
		Store:         store,
		Pricing:       Pricing{FreeShippingThreshold: 5_000_000, ShippingFee: 50_000},
		Service:       "shop-api-test",
		Created:       pub,
		Paid:          pub,
		Cancelled:     pub,
		StatusChanged: pub,
	}, pub
}

func TestCheckout_HappyPathCOD(t *testing.T) {
	carts := new(mockCarts)
	store := new(mockStore)
	svc, pub := newTestService(carts, store)
	ctx := context.Background()

	lines := []cart.Line{line("Phone", 1, 10, 100_000, nil, true)}
	carts.On("GetLines", ctx, "cust-1").Return("cart-1", lines, nil)
	store.On("CreateOrderTx", ctx, mock.AnythingOfType("*orders.Order"), "cart-1").
		Run(func(args mock.Arguments) {
			o := args.Get(1).(*Order)
			o.ID = "ord-1"
			o.Code = "ORD20250901001"
			o.Status = StatusPending
			o.PaymentStatus = PaymentPending
		}).Return(nil)

	o, err := svc.Checkout(ctx, CheckoutInput{
		CustomerID:      "cust-1",
		ShippingName:    "Nguyen Van A",
		ShippingPhone:   "0900000000",
		ShippingAddress: "HCMC",
		PaymentMethod:   MethodCOD,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(100_000), o.Subtotal)
	assert.Equal(t, int64(50_000), o.ShippingFee, "below the free-shipping threshold")
	assert.Equal(t, int64(150_000), o.TotalAmount)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	require.Len(t, o.Items, 1)
	assert.Equal(t, int64(100_000), o.Items[0].UnitPrice)

	require.Len(t, pub.keys, 1)
	assert.Equal(t, "ORD20250901001", pub.keys[0])
	store.AssertExpectations(t)
}

func TestCheckout_FreeShipping(t *testing.T) {
	carts := new(mockCarts)
	store := new(mockStore)
	svc, _ := newTestService(carts, store)
	ctx := context.Background()

	lines := []cart.Line{line("TV", 1, 5, 6_000_000, nil, true)}
	carts.On("GetLines", ctx, "cust-1").Return("cart-1", lines, nil)
	store.On("CreateOrderTx", ctx, mock.Anything, "cart-1").Return(nil)

	o, err := svc.Checkout(ctx, CheckoutInput{
		CustomerID:      "cust-1",
		ShippingName:    "A",
		ShippingPhone:   "0",
		ShippingAddress: "X",
		PaymentMethod:   MethodOnline,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), o.ShippingFee)
	assert.Equal(t, int64(6_000_000), o.TotalAmount)
}

func TestCheckout_EmptyCart(t *testing.T) {
	carts := new(mockCarts)
	store := new(mockStore)
	svc, pub := newTestService(carts, store)
	ctx := context.Background()

	carts.On("GetLines", ctx, "cust-1").Return("", []cart.Line(nil), nil)

	_, err := svc.Checkout(ctx, CheckoutInput{CustomerID: "cust-1", PaymentMethod: MethodCOD})
	assert.ErrorIs(t, err, ErrEmptyCart)
	store.AssertNotCalled(t, "CreateOrderTx", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, pub.keys)
}

func TestCheckout_InactiveProduct(t *testing.T) {
	carts := new(mockCarts)
	store := new(mockStore)
	svc, _ := newTestService(carts, store)
	ctx := context.Background()

	lines := []cart.Line{line("Retired", 1, 10, 100_000, nil, false)}
	carts.On("GetLines", ctx, "cust-1").Return("cart-1", lines, nil)

	_, err := svc.Checkout(ctx, CheckoutInput{CustomerID: "cust-1", PaymentMethod: MethodCOD})
	assert.ErrorIs(t, err, ErrProductUnavailable)
	store.AssertNotCalled(t, "CreateOrderTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckout_InsufficientStock(t *testing.T) {
	carts := new(mockCarts)
	store := new(mockStore)
	svc, _ := newTestService(carts, store)
	ctx := context.Background()

	lines := []cart.Line{line("Scarce", 5, 2, 100_000, nil, true)}
	carts.On("GetLines", ctx, "cust-1").Return("cart-1", lines, nil)

	_, err := svc.Checkout(ctx, CheckoutInput{CustomerID: "cust-1", PaymentMethod: MethodCOD})
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	store.AssertNotCalled(t, "CreateOrderTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestGet_OwnershipEnforced(t *testing.T) {
	carts := new(mockCarts)
	store := new(mockStore)
	svc, _ := newTestService(carts, store)
	ctx := context.Background()

	store.On("FindByCode", ctx, "ORD1").Return(&Order{ID: "o1", Code: "ORD1", CustomerID: "cust-1"}, nil)

	_, err := svc.Get(ctx, "cust-2", "ORD1")
	assert.ErrorIs(t, err, ErrNotFound, "foreign orders look like missing orders")

	o, err := svc.Get(ctx, "cust-1", "ORD1")
	require.NoError(t, err)
	assert.Equal(t, "ORD1", o.Code)
}

func TestCancel_PendingOrder(t *testing.T) {
	carts := new(mockCarts)
	store := new(mockStore)
	svc, pub := newTestService(carts, store)
	ctx := context.Background()

	pending := &Order{ID: "o1", Code: "ORD1", CustomerID: "cust-1", Status: StatusPending}
	cancelled := &Order{ID: "o1", Code: "ORD1", CustomerID: "cust-1", Status: StatusCancelled}
	store.On("FindByCode", ctx, "ORD1").Return(pending, nil).Once()
	store.On("CancelOrderTx", ctx, "o1", StatusPending).Return(true, nil, nil)
	store.On("FindByCode", ctx, "ORD1").Return(cancelled, nil).Once()

	o, err := svc.Cancel(ctx, "cust-1", "ORD1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Len(t, pub.keys, 1)
	store.AssertExpectations(t)
}

func TestCancel_DropsCachedViews(t *testing.T) {
	carts := new(mockCarts)
	store := new(mockStore)
	svc, _ := newTestService(carts, store)
	fc := newFakeCache()
	svc.Cache = fc
	ctx := context.Background()

	orderKey := fmt.Sprintf(redisx.KeyOrderStatus, "ORD1")
	payKey := fmt.Sprintf(redisx.KeyPaymentStatus, "REQ_ORD1_1756700000")
	fc.data[orderKey] = `{"Code":"ORD1"}`
	fc.data[payKey] = `{"status":"pending"}`

	pending := &Order{ID: "o1", Code: "ORD1", CustomerID: "cust-1", Status: StatusPending}
	cancelled := &Order{ID: "o1", Code: "ORD1", CustomerID: "cust-1", Status: StatusCancelled}
	store.On("FindByCode", ctx, "ORD1").Return(pending, nil).Once()
	store.On("CancelOrderTx", ctx, "o1", StatusPending).
		Return(true, []string{"REQ_ORD1_1756700000"}, nil)
	store.On("FindByCode", ctx, "ORD1").Return(cancelled, nil).Once()

	_, err := svc.Cancel(ctx, "cust-1", "ORD1")
	require.NoError(t, err)
	assert.NotContains(t, fc.data, orderKey, "stale order view must not outlive the cancel")
	assert.NotContains(t, fc.data, payKey, "voided payment must not poll as pending")
}

func TestCancel_ShippingOrderRejected(t *testing.T) {
	carts := new(mockCarts)
	store := new(mockStore)
	svc, _ := newTestService(carts, store)
	ctx := context.Background()

	store.On("FindByCode", ctx, "ORD1").
		Return(&Order{ID: "o1", Code: "ORD1", CustomerID: "cust-1", Status: StatusShipping}, nil)

	_, err := svc.Cancel(ctx, "cust-1", "ORD1")
	assert.ErrorIs(t, err, ErrIllegalTransition)
	store.AssertNotCalled(t, "CancelOrderTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancel_LostRaceToCancel(t *testing.T) {
	carts := new(mockCarts)
	store := new(mockStore)
	svc, _ := newTestService(carts, store)
	ctx := context.Background()

	pending := &Order{ID: "o1", Code: "ORD1", CustomerID: "cust-1", Status: StatusPending}
	cancelled := &Order{ID: "o1", Code: "ORD1", CustomerID: "cust-1", Status: StatusCancelled}
	store.On("FindByCode", ctx, "ORD1").Return(pending, nil).Once()
	store.On("CancelOrderTx", ctx, "o1", StatusPending).Return(false, nil, nil)
	store.On("FindByCode", ctx, "ORD1").Return(cancelled, nil).Once()

	// Another cancel won the race; the caller still gets a cancelled order
	// rather than an error.
	o, err := svc.Cancel(ctx, "cust-1", "ORD1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
}

func TestUpdateStatus_IllegalTransition(t *testing.T) {
	carts := new(mockCarts)
	store := new(mockStore)
	svc, _ := newTestService(carts, store)
	ctx := context.Background()

	store.On("FindByCode", ctx, "ORD1").
		Return(&Order{ID: "o1", Code: "ORD1", Status: StatusDelivered}, nil)

	_, err := svc.UpdateStatus(ctx, "ORD1", StatusConfirmed)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	store.AssertNotCalled(t, "TransitionTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_DeliveredCODSettlesPayment(t *testing.T) {
	carts := new(mockCarts)
	store := new(mockStore)
	svc, pub := newTestService(carts, store)
	ctx := context.Background()

	shipping := &Order{
		ID: "o1", Code: "ORD1", Status: StatusShipping,
		PaymentMethod: MethodCOD, PaymentStatus: PaymentPending, TotalAmount: 150_000,
	}
	delivered := &Order{
		ID: "o1", Code: "ORD1", Status: StatusDelivered,
		PaymentMethod: MethodCOD, PaymentStatus: PaymentPaid,
	}
	store.On("FindByCode", ctx, "ORD1").Return(shipping, nil).Once()
	store.On("TransitionTx", ctx, "o1", StatusShipping, StatusDelivered, true).Return(true, nil)
	store.On("FindByCode", ctx, "ORD1").Return(delivered, nil).Once()

	o, err := svc.UpdateStatus(ctx, "ORD1", StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
	assert.Len(t, pub.keys, 2, "status change plus paid event")
	store.AssertExpectations(t)
}

func TestUpdateStatus_DeliveredOnlineDoesNotTouchPayment(t *testing.T) {
	carts := new(mockCarts)
	store := new(mockStore)
	svc, _ := newTestService(carts, store)
	ctx := context.Background()

	shipping := &Order{
		ID: "o1", Code: "ORD1", Status: StatusShipping,
		PaymentMethod: MethodOnline, PaymentStatus: PaymentPaid,
	}
	store.On("FindByCode", ctx, "ORD1").Return(shipping, nil).Once()
	store.On("TransitionTx", ctx, "o1", StatusShipping, StatusDelivered, false).Return(true, nil)
	store.On("FindByCode", ctx, "ORD1").Return(shipping, nil).Once()

	_, err := svc.UpdateStatus(ctx, "ORD1", StatusDelivered)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestUpdateStatus_AdminCancelReleasesStock(t *testing.T) {
	carts := new(mockCarts)
	store := new(mockStore)
	svc, _ := newTestService(carts, store)
	ctx := context.Background()

	confirmed := &Order{ID: "o1", Code: "ORD1", Status: StatusConfirmed, PaymentMethod: MethodCOD}
	cancelled := &Order{ID: "o1", Code: "ORD1", Status: StatusCancelled}
	store.On("FindByCode", ctx, "ORD1").Return(confirmed, nil).Once()
	store.On("CancelOrderTx", ctx, "o1", StatusConfirmed).Return(true, nil, nil)
	store.On("FindByCode", ctx, "ORD1").Return(cancelled, nil).Once()

	o, err := svc.UpdateStatus(ctx, "ORD1", StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	store.AssertNotCalled(t, "TransitionTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_DropsCachedOrderView(t *testing.T) {
	carts := new(mockCarts)
	store := new(mockStore)
	svc, _ := newTestService(carts, store)
	fc := newFakeCache()
	svc.Cache = fc
	ctx := context.Background()

	orderKey := fmt.Sprintf(redisx.KeyOrderStatus, "ORD1")
	fc.data[orderKey] = `{"Code":"ORD1","Status":"confirmed"}`

	confirmed := &Order{ID: "o1", Code: "ORD1", Status: StatusConfirmed}
	shipping := &Order{ID: "o1", Code: "ORD1", Status: StatusShipping}
	store.On("FindByCode", ctx, "ORD1").Return(confirmed, nil).Once()
	store.On("TransitionTx", ctx, "o1", StatusConfirmed, StatusShipping, false).Return(true, nil)
	store.On("FindByCode", ctx, "ORD1").Return(shipping, nil).Once()

	_, err := svc.UpdateStatus(ctx, "ORD1", StatusShipping)
	require.NoError(t, err)
	assert.NotContains(t, fc.data, orderKey)
}
