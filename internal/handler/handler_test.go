package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shopforge/orderflow/internal/domain/order"
	"github.com/shopforge/orderflow/internal/domain/pricing"
	"github.com/shopforge/orderflow/internal/domain/product"
	"github.com/shopforge/orderflow/internal/domain/promotion"
	"github.com/shopforge/orderflow/internal/domain/stock"
)

type stubCheckout struct {
	res     *order.Result
	err     error
	lastReq order.Request
}

func (s *stubCheckout) PlaceOrder(_ context.Context, req order.Request) (*order.Result, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

type stubProducts struct {
	items []product.Snapshot
}

func (s *stubProducts) List(_ context.Context) ([]product.Snapshot, error) {
	return s.items, nil
}

func (s *stubProducts) GetByID(_ context.Context, id string) (*product.Snapshot, error) {
	for i := range s.items {
		if s.items[i].ID == id {
			return &s.items[i], nil
		}
	}
	return nil, product.ErrNotFound
}

func (s *stubProducts) GetByIDs(_ context.Context, _ []string) ([]product.Snapshot, error) {
	return s.items, nil
}

func newServer(t *testing.T, checkout *stubCheckout, products *stubProducts) *httptest.Server {
	t.Helper()
	if products == nil {
		products = &stubProducts{}
	}
	mux := http.NewServeMux()
	New(zap.NewNop(), checkout, products).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func placedOrder() *order.Order {
	return &order.Order{
		ID:         "ord-1",
		CustomerID: "cust-1",
		Lines: []order.LineItem{{
			ProductID:    "p1",
			Name:         "Trail Mix",
			RequestedQty: 2,
			EffectiveQty: 2,
			UnitPrice:    decimal.RequireFromString("40.00"),
			Subtotal:     decimal.RequireFromString("80.00"),
		}},
		Subtotal:      decimal.RequireFromString("80.00"),
		Tax:           decimal.RequireFromString("8.00"),
		ShippingCost:  decimal.RequireFromString("5.99"),
		Total:         decimal.RequireFromString("93.99"),
		Status:        order.StatusProcessing,
		PaymentStatus: order.PaymentCompleted,
		TransactionID: "TXN-abc",
		CreatedAt:     time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
}

const orderBody = `{
	"customer_id": "cust-1",
	"items": [{"product_id": "p1", "quantity": 2}],
	"shipping_method": "standard",
	"shipping_address": {"line1": "1 Main St", "city": "Springfield", "state": "CA", "country": "US"},
	"billing": {"name": "Pat", "card_token": "tok_visa"}
}`

func postOrder(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/orders", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestPlaceOrder_Success(t *testing.T) {
	checkout := &stubCheckout{res: &order.Result{Order: placedOrder()}}
	srv := newServer(t, checkout, nil)

	resp, body := postOrder(t, srv, orderBody)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ord-1", body["id"])
	assert.Equal(t, "93.99", body["total"])
	assert.Equal(t, "processing", body["status"])
	assert.Equal(t, "completed", body["payment_status"])

	lines, ok := body["lines"].([]any)
	require.True(t, ok)
	require.Len(t, lines, 1)
	line := lines[0].(map[string]any)
	assert.Equal(t, "40.00", line["unit_price"])

	assert.Equal(t, "cust-1", checkout.lastReq.CustomerID)
	assert.Equal(t, pricing.MethodStandard, checkout.lastReq.ShippingMethod)
	assert.Equal(t, "CA", checkout.lastReq.ShippingAddress.State)
	assert.Equal(t, "tok_visa", checkout.lastReq.Billing.CardToken)
}

func TestPlaceOrder_ShortageConflict(t *testing.T) {
	checkout := &stubCheckout{err: &order.ShortageError{Shortages: []stock.Shortage{{
		ProductID: "p1",
		Requested: 5,
		Available: 3,
		Reason:    stock.ReasonInsufficient,
	}}}}
	srv := newServer(t, checkout, nil)

	resp, body := postOrder(t, srv, orderBody)

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "insufficient_stock", errObj["code"])

	shortages := errObj["shortages"].([]any)
	require.Len(t, shortages, 1)
	sh := shortages[0].(map[string]any)
	assert.Equal(t, "p1", sh["product_id"])
	assert.Equal(t, float64(3), sh["available"])
	assert.Equal(t, "insufficient_stock", sh["reason"])
}

func TestPlaceOrder_PromotionRejected(t *testing.T) {
	checkout := &stubCheckout{err: &order.PromotionError{
		Code: "EXPIRED1",
		Err:  promotion.ErrNotActive,
	}}
	srv := newServer(t, checkout, nil)

	resp, body := postOrder(t, srv, orderBody)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "promotion_rejected", errObj["code"])
	assert.Contains(t, errObj["message"], "EXPIRED1")
}

func TestPlaceOrder_PaymentRequired(t *testing.T) {
	checkout := &stubCheckout{err: &order.PaymentError{
		OrderID: "ord-1",
		Reason:  "card_declined",
	}}
	srv := newServer(t, checkout, nil)

	resp, body := postOrder(t, srv, orderBody)

	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "payment_failed", errObj["code"])
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	checkout := &stubCheckout{err: order.ErrEmptyCart}
	srv := newServer(t, checkout, nil)

	resp, body := postOrder(t, srv, `{"customer_id": "cust-1"}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "empty_cart", errObj["code"])
}

func TestPlaceOrder_MalformedBody(t *testing.T) {
	srv := newServer(t, &stubCheckout{}, nil)

	resp, body := postOrder(t, srv, `{"customer_id": `)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "invalid_body", errObj["code"])
}

func TestPlaceOrder_UnknownShippingMethod(t *testing.T) {
	srv := newServer(t, &stubCheckout{}, nil)

	resp, _ := postOrder(t, srv, `{"customer_id": "c1", "shipping_method": "teleport"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPlaceOrder_MissingCustomerID(t *testing.T) {
	srv := newServer(t, &stubCheckout{}, nil)

	resp, _ := postOrder(t, srv, `{"items": [{"product_id": "p1", "quantity": 1}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPlaceOrder_InternalError(t *testing.T) {
	checkout := &stubCheckout{err: errors.New("database on fire")}
	srv := newServer(t, checkout, nil)

	resp, body := postOrder(t, srv, orderBody)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "internal error", errObj["message"], "internal detail must not leak")
}

func TestListProducts(t *testing.T) {
	products := &stubProducts{items: []product.Snapshot{{
		ID:         "p1",
		Name:       "Trail Mix",
		Price:      decimal.RequireFromString("50.00"),
		Stock:      10,
		Categories: []string{"snacks"},
	}}}
	srv := newServer(t, &stubCheckout{}, products)

	resp, err := http.Get(srv.URL + "/api/products")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "p1", decoded[0]["id"])
	assert.Equal(t, "50.00", decoded[0]["price"])
}

func TestGetProduct_NotFound(t *testing.T) {
	srv := newServer(t, &stubCheckout{}, &stubProducts{})

	resp, err := http.Get(srv.URL + "/api/products/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
