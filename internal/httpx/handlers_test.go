package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/admin"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/apperr"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/cart"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/catalog"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/orders"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/orders/orderstest"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/payments"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/redisx"
)

const adminKey = "rahasia"

type stubGateway struct {
	mu       sync.Mutex
	statuses map[string]string
}

func (g *stubGateway) set(orderID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[orderID] = status
}

func (g *stubGateway) Status(_ context.Context, orderID string) (*payments.TransactionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.statuses[orderID]
	if !ok {
		return nil, apperr.ErrStatusMismatch
	}
	return &payments.TransactionStatus{
		StatusCode:        "200",
		OrderID:           orderID,
		TransactionStatus: st,
		GrossAmount:       "90000.00",
		SettlementTime:    "2024-05-01 10:00:00",
	}, nil
}

type stubStats struct {
	stats admin.Stats
	err   error
}

func (s stubStats) Stats(context.Context) (admin.Stats, error) { return s.stats, s.err }

type productStore struct {
	mu       sync.Mutex
	products map[int64]*catalog.Product
	next     int64
}

func (p *productStore) Create(_ context.Context, pr *catalog.Product) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	pr.ID = p.next
	c := *pr
	p.products[pr.ID] = &c
	return nil
}

func (p *productStore) FindByID(_ context.Context, id int64) (*catalog.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.products[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	c := *pr
	return &c, nil
}

func (p *productStore) FindAll(_ context.Context) ([]catalog.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []catalog.Product{}
	for _, pr := range p.products {
		out = append(out, *pr)
	}
	return out, nil
}

func (p *productStore) Update(_ context.Context, id int64, req catalog.UpdateProductRequest) (*catalog.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.products[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if req.Price != nil {
		pr.Price = *req.Price
	}
	c := *pr
	return &c, nil
}

func (p *productStore) Delete(_ context.Context, id int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.products[id]
	delete(p.products, id)
	return ok, nil
}

func (p *productStore) Count(context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(len(p.products)), nil
}

type env struct {
	router *chi.Mux
	mr     *miniredis.Miniredis
	store  *orderstest.MemStore
	gw     *stubGateway
	ready  map[string]Check
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })

	store := orderstest.NewMemStore()
	svc := &orders.Service{Store: store}
	cache := &redisx.OrderCache{RDB: rdb}
	gw := &stubGateway{statuses: map[string]string{}}
	rec := &payments.Reconciler{Store: store, Gateway: gw, Cache: cache}

	e := &env{mr: mr, store: store, gw: gw, ready: map[string]Check{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}}
	r := NewRouter(RouterConfig{Ready: e.ready})
	(&OrdersHandler{Service: svc, Cache: cache, AdminKey: adminKey}).Register(r)
	(&ProductsHandler{Service: &catalog.Service{Store: &productStore{products: map[int64]*catalog.Product{}}}, AdminKey: adminKey}).Register(r)
	(&PaymentsHandler{Reconciler: rec}).Register(r)
	(&AdminHandler{Stats: stubStats{stats: admin.Stats{TotalRevenue: 90000, OrderCount: 2}}, AdminKey: adminKey}).Register(r)
	(&CartHandler{Storage: &cart.RedisStorage{RDB: rdb}, Orders: svc}).Register(r)
	e.router = r
	return e
}

func (e *env) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type orderResp struct {
	Order orders.Order `json:"order"`
}

var budi = map[string]any{
	"items": []map[string]any{{"id": "1", "name": "Kaos", "price": 45000, "quantity": 2}},
	"customerInfo": map[string]any{
		"name": "Budi Santoso", "email": "budi@mail.com", "phone": "081234567890",
	},
	"paymentMethod": "qris",
}

func (e *env) createOrder(t *testing.T) orders.Order {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/orders", budi)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[orderResp](t, rec).Order
}

func TestCreateOrder(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)
	assert.EqualValues(t, 90000, o.TotalAmount)
	assert.Equal(t, orders.StatusPendingPayment, o.Status)
	require.Len(t, o.Items, 1)
	assert.EqualValues(t, 1, o.Items[0].ProductID)
}

func TestCreateOrder_Rejected(t *testing.T) {
	e := newEnv(t)

	bad := map[string]any{
		"items":         []map[string]any{{"id": "1", "name": "Kaos", "price": 45000, "quantity": 0}},
		"customerInfo":  map[string]any{"name": "Bu", "email": "budi", "phone": "0812"},
		"paymentMethod": "bitcoin",
	}
	rec := e.do(t, http.MethodPost, "/orders", bad)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "validation failed", body.Error)
	for _, f := range []string{"items[0].quantity", "customerInfo.name", "customerInfo.email", "customerInfo.phone", "paymentMethod"} {
		assert.Contains(t, body.Details, f)
	}
	assert.Zero(t, e.store.Writes)

	rec = e.do(t, http.MethodPost, "/orders", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Details, "body")
}

func TestGetOrder_CachesDocument(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)

	rec := e.do(t, http.MethodGet, "/orders?id="+o.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, o.ID, decode[orderResp](t, rec).Order.ID)
	assert.True(t, e.mr.Exists("order:"+o.ID))

	rec = e.do(t, http.MethodGet, "/orders?id="+o.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[orderResp](t, rec).Order
	assert.EqualValues(t, 90000, got.TotalAmount)
	assert.Len(t, got.Items, 1)

	for _, id := range []string{"nope", "7f1e4c1e-0000-4000-8000-000000000000"} {
		rec = e.do(t, http.MethodGet, "/orders?id="+id, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, id)
	}
}

// plant writes doc into the cache directly, as a reader that loaded it
// before a concurrent write would.
func (e *env) plant(t *testing.T, o orders.Order) {
	t.Helper()
	b, err := json.Marshal(o)
	require.NoError(t, err)
	require.NoError(t, e.mr.Set("order:"+o.ID, string(b)))
}

func TestGetOrder_StaleDocumentAfterStatusChange(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)

	rec := e.do(t, http.MethodPatch, "/orders/"+o.ID+"/status", map[string]string{"status": "cancelled"}, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	e.plant(t, o)

	rec = e.do(t, http.MethodGet, "/orders?id="+o.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[orderResp](t, rec).Order
	assert.Equal(t, orders.StatusCancelled, got.Status)
	assert.Equal(t, o.Version+1, got.Version)

	// the fresh read is cached again
	rec = e.do(t, http.MethodGet, "/orders?id="+o.ID, nil)
	assert.Equal(t, orders.StatusCancelled, decode[orderResp](t, rec).Order.Status)
}

func TestGetOrder_StaleDocumentAfterPayment(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)
	e.gw.set(o.ID, "settlement")

	rec := e.do(t, http.MethodPost, "/payments/notification", notification(o.ID, "settlement"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	e.plant(t, o)

	rec = e.do(t, http.MethodGet, "/orders?id="+o.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[orderResp](t, rec).Order
	assert.Equal(t, orders.StatusProcessing, got.Status)
	require.NotNil(t, got.Payment)
	assert.Equal(t, orders.PaymentCompleted, got.Payment.Status)
}

func TestGetOrder_StaleDocumentAfterDelete(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)

	rec := e.do(t, http.MethodDelete, "/orders/"+o.ID, nil, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	e.plant(t, o)

	rec = e.do(t, http.MethodGet, "/orders?id="+o.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, e.mr.Exists("order:"+o.ID))
}

func TestListOrders_AdminKey(t *testing.T) {
	e := newEnv(t)
	e.createOrder(t)
	e.createOrder(t)

	rec := e.do(t, http.MethodGet, "/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/orders", nil, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Orders []orders.Order `json:"orders"`
	}](t, rec)
	assert.Len(t, list.Orders, 2)
}

func TestUpdateStatus(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)
	path := "/orders/" + o.ID + "/status"

	rec := e.do(t, http.MethodPatch, path, map[string]string{"status": "processing"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPatch, path, map[string]string{"status": "processing"}, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, orders.StatusProcessing, decode[orderResp](t, rec).Order.Status)
	assert.True(t, e.mr.Exists("order_status:"+o.ID))

	rec = e.do(t, http.MethodPatch, path, map[string]string{"status": "pending-payment"}, "X-Admin-Key", adminKey)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPatch, path, map[string]string{"status": "shipped"}, "X-Admin-Key", adminKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteOrder(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)
	e.do(t, http.MethodGet, "/orders?id="+o.ID, nil)

	rec := e.do(t, http.MethodDelete, "/orders/"+o.ID, nil, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Order deleted successfully", decode[map[string]string](t, rec)["message"])
	assert.False(t, e.mr.Exists("order:"+o.ID))

	rec = e.do(t, http.MethodGet, "/orders?id="+o.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodDelete, "/orders/"+o.ID, nil, "X-Admin-Key", adminKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func notification(orderID, status string) map[string]string {
	return map[string]string{
		"transaction_status": status,
		"order_id":           orderID,
		"payment_type":       "qris",
		"gross_amount":       "90000",
	}
}

func TestPaymentNotification(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)
	e.gw.set(o.ID, "settlement")

	rec := e.do(t, http.MethodPost, "/payments/notification", notification(o.ID, "settlement"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode[map[string]any](t, rec)["success"])

	// re-delivery is acknowledged
	rec = e.do(t, http.MethodPost, "/payments/notification", notification(o.ID, "settlement"))
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := e.store.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessing, got.Status)
	assert.Equal(t, orders.PaymentCompleted, got.Payment.Status)
}

func TestPaymentNotification_Rejections(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)
	e.gw.set(o.ID, "pending")

	rec := e.do(t, http.MethodPost, "/payments/notification", notification(o.ID, "settlement"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/payments/notification", `{"order_id": 1`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/payments/notification", map[string]string{"order_id": o.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Details, "transaction_status")

	rec = e.do(t, http.MethodPost, "/payments/notification", notification("missing-order", "settlement"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartCheckout(t *testing.T) {
	e := newEnv(t)
	sess := []string{"X-Session-ID", "sess-42"}
	kaos := map[string]any{"productId": 1, "name": "Kaos", "price": 45000, "quantity": 1, "variants": map[string]string{"Ukuran": "L"}}

	rec := e.do(t, http.MethodGet, "/cart", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for i := 0; i < 2; i++ {
		rec = e.do(t, http.MethodPost, "/cart/items", kaos, sess...)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	view := decode[cartView](t, e.do(t, http.MethodGet, "/cart", nil, sess...))
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.EqualValues(t, 90000, view.Total)

	rec = e.do(t, http.MethodPost, "/cart/wishlist/3", nil, sess...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["wishlisted"])

	rec = e.do(t, http.MethodPost, "/cart/checkout", map[string]any{
		"customerInfo":  budi["customerInfo"],
		"paymentMethod": "bank_transfer",
	}, sess...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decode[orderResp](t, rec).Order
	assert.EqualValues(t, 90000, o.TotalAmount)
	assert.Equal(t, "L", o.Items[0].Variants["Ukuran"])

	view = decode[cartView](t, e.do(t, http.MethodGet, "/cart", nil, sess...))
	assert.Empty(t, view.Items)
	assert.Equal(t, []int64{3}, view.Wishlist)

	rec = e.do(t, http.MethodPost, "/cart/checkout", map[string]any{
		"customerInfo":  budi["customerInfo"],
		"paymentMethod": "bank_transfer",
	}, sess...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartLineEdits(t *testing.T) {
	e := newEnv(t)
	sess := []string{"X-Session-ID", "sess-7"}
	e.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": 2, "name": "Topi", "price": 30000, "quantity": 1}, sess...)

	rec := e.do(t, http.MethodPatch, "/cart/items", map[string]any{"productId": 2, "quantity": 3}, sess...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 90000, decode[cartView](t, rec).Total)

	rec = e.do(t, http.MethodPatch, "/cart/items", map[string]any{"productId": 9, "quantity": 3}, sess...)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodDelete, "/cart/items", map[string]any{"productId": 2}, sess...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[cartView](t, rec).Items)

	rec = e.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": 2, "name": "Topi", "price": 30000, "quantity": 0}, sess...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProducts(t *testing.T) {
	e := newEnv(t)
	kaos := map[string]any{"name": "Kaos", "price": 45000, "stock": 10, "variants": map[string][]string{"Ukuran": {"S", "M"}}}

	rec := e.do(t, http.MethodPost, "/products", kaos)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/products", map[string]any{"name": "Kaos", "price": 0}, "X-Admin-Key", adminKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/products", kaos, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[catalog.Product](t, rec)

	rec = e.do(t, http.MethodGet, fmt.Sprintf("/products/%d", p.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"S", "M"}, decode[catalog.Product](t, rec).Variants["Ukuran"])

	rec = e.do(t, http.MethodPut, fmt.Sprintf("/products/%d", p.ID), map[string]any{"price": 50000}, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 50000, decode[catalog.Product](t, rec).Price)

	rec = e.do(t, http.MethodGet, "/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]catalog.Product](t, rec), 1)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/products/abc", nil).Code)

	rec = e.do(t, http.MethodDelete, fmt.Sprintf("/products/%d", p.ID), nil, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, fmt.Sprintf("/products/%d", p.ID), nil).Code)
}

func TestAdminStats(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/admin/stats", nil).Code)

	rec := e.do(t, http.MethodGet, "/admin/stats", nil, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	s := decode[admin.Stats](t, rec)
	assert.EqualValues(t, 90000, s.TotalRevenue)
	assert.EqualValues(t, 2, s.OrderCount)
}

func TestHealth(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = e.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	e.ready["postgres"] = func(context.Context) error { return errors.New("connection refused") }
	rec = e.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", decode[errorBody](t, rec).Details["postgres"])
}

func TestWriteError_Internal(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	writeError(rec, req, nil, fmt.Errorf("%w: dial tcp: timeout", apperr.ErrPersistence))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode[errorBody](t, rec).Error)

	rec = httptest.NewRecorder()
	writeError(rec, req, nil, apperr.ErrConflict)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	writeError(rec, req, nil, apperr.ErrInvalidSignature)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
