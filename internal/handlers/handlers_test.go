package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"posbackend/internal/clock"
	"posbackend/internal/kv"
	"posbackend/internal/metrics"
	"posbackend/internal/models"
	"posbackend/internal/remote"
	"posbackend/internal/store"
	"posbackend/internal/syncer"
)

var now = time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)

type fakeSyncer struct {
	mu        sync.Mutex
	refreshes int
	result    syncer.Result
}

func (f *fakeSyncer) SyncNow(context.Context) syncer.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

func (f *fakeSyncer) Status() syncer.Status { return syncer.Status{State: syncer.Idle} }

func (f *fakeSyncer) Refresh() {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
}

type fakeTester struct {
	err   error
	token string
}

func (f *fakeTester) TestConnection(_ context.Context, token string) error {
	f.token = token
	return f.err
}

type harness struct {
	router *gin.Engine
	store  *store.Store
	syncer *fakeSyncer
	tester *fakeTester
}

func newHarness(t *testing.T, mutate func(*Deps)) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fc := clock.NewFake(now)
	h := &harness{
		store:  store.New(kv.NewMemory(), zap.NewNop(), store.WithClock(fc)),
		syncer: &fakeSyncer{},
		tester: &fakeTester{},
	}
	deps := Deps{
		Store:    h.store,
		Syncer:   h.syncer,
		Tester:   h.tester,
		Metrics:  metrics.NewRegistry().Handler(),
		Clock:    fc,
		Location: time.UTC,
		Logger:   zap.NewNop(),

		AuthDisabled: true,
	}
	if mutate != nil {
		mutate(&deps)
	}
	h.router = gin.New()
	Register(h.router, deps)
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any, header ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var payload map[string]any
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	}
	return w, payload
}

func seedOrders(h *harness) {
	h.store.Merge([]models.Order{
		{ID: 1, CreatedAt: now.Add(-time.Hour), Source: models.SourceGetir, PaymentType: models.PaymentGetirOnline,
			TotalAmount: 100, Products: []models.LineItem{{Name: "Pide", Quantity: 1, TotalPrice: 100}}},
		{ID: 2, CreatedAt: now.Add(-2 * time.Hour), Source: models.SourceTrendyol, PaymentType: models.PaymentTrendyolOnline,
			TotalAmount: 50, Products: []models.LineItem{{Name: "Ayran", Quantity: 2, TotalPrice: 50}}},
	})
}

func TestCloseAndReopenOrder(t *testing.T) {
	h := newHarness(t, nil)
	seedOrders(h)

	w, body := h.do(t, http.MethodPost, "/api/orders/1/close", gin.H{"paymentType": "cash"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["changed"])
	order := body["order"].(map[string]any)
	assert.Equal(t, true, order["isClosed"])
	assert.Equal(t, "cash", order["closedPaymentType"])

	w, body = h.do(t, http.MethodPost, "/api/orders/1/reopen", nil)
	require.Equal(t, http.StatusOK, w.Code)
	order = body["order"].(map[string]any)
	assert.Equal(t, false, order["isClosed"])
	assert.NotContains(t, order, "closedAt")
	assert.NotContains(t, order, "closedPaymentType")
}

func TestStaleOrderIDsAreNotErrors(t *testing.T) {
	h := newHarness(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/orders/99/reopen"},
		{http.MethodDelete, "/api/orders/99"},
	} {
		w, body := h.do(t, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusOK, w.Code, tc.path)
		assert.Equal(t, false, body["changed"], tc.path)
	}

	w, body := h.do(t, http.MethodPost, "/api/orders/99/close", gin.H{"paymentType": "credit_card"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["changed"])
}

func TestCloseOrderValidation(t *testing.T) {
	h := newHarness(t, nil)
	seedOrders(h)

	w, body := h.do(t, http.MethodPost, "/api/orders/1/close", gin.H{"paymentType": "bitcoin"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation failed", body["error"])
	assert.Contains(t, body["details"].([]any)[0], "paymentType must be one of")

	w, body = h.do(t, http.MethodPost, "/api/orders/1/close", gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []any{"paymentType is required"}, body["details"])

	w, _ = h.do(t, http.MethodPost, "/api/orders/abc/close", gin.H{"paymentType": "cash"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	order, _ := h.store.Order(1)
	assert.False(t, order.IsClosed)
}

func TestCreateManualOrder(t *testing.T) {
	h := newHarness(t, nil)

	w, body := h.do(t, http.MethodPost, "/api/orders", gin.H{"items": []gin.H{
		{"name": "Kebap", "quantity": 2, "unitPrice": 50},
		{"name": "Ayran", "quantity": 1, "unitPrice": 30},
	}})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 130.0, body["totalAmount"])
	assert.Equal(t, "manual", body["source"])
	assert.Equal(t, "cash", body["paymentType"])
	products := body["products"].([]any)
	require.Len(t, products, 2)
	assert.Equal(t, 100.0, products[0].(map[string]any)["totalPrice"])
	assert.Len(t, h.store.Orders(), 1)
}

func TestCreateManualOrderRejectsBadItems(t *testing.T) {
	h := newHarness(t, nil)

	for _, body := range []gin.H{
		{},
		{"items": []gin.H{}},
		{"items": []gin.H{{"name": "Kebap", "quantity": 0, "unitPrice": 50}}},
		{"items": []gin.H{{"name": "Kebap", "quantity": 1, "unitPrice": -5}}},
		{"items": []gin.H{{"quantity": 1, "unitPrice": 5}}},
	} {
		w, _ := h.do(t, http.MethodPost, "/api/orders", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%v", body)
	}
	assert.Empty(t, h.store.Orders())
}

func TestListOrdersFilters(t *testing.T) {
	h := newHarness(t, nil)
	seedOrders(h)
	h.store.Close(2, models.PaymentCash)

	_, body := h.do(t, http.MethodGet, "/api/orders", nil)
	assert.Equal(t, 2.0, body["total"])

	_, body = h.do(t, http.MethodGet, "/api/orders?state=open", nil)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, 1.0, data[0].(map[string]any)["id"])

	_, body = h.do(t, http.MethodGet, "/api/orders?source=trendyol&period=today", nil)
	assert.Equal(t, 1.0, body["total"])

	_, body = h.do(t, http.MethodGet, "/api/orders?limit=1&page=2", nil)
	data = body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, 2.0, data[0].(map[string]any)["id"])

	for _, q := range []string{"state=pending", "period=year", "page=0"} {
		w, _ := h.do(t, http.MethodGet, "/api/orders?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestGetOrder(t *testing.T) {
	h := newHarness(t, nil)
	seedOrders(h)

	w, body := h.do(t, http.MethodGet, "/api/orders/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trendyol", body["source"])

	w, _ = h.do(t, http.MethodGet, "/api/orders/3", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReplaceOrders(t *testing.T) {
	h := newHarness(t, nil)
	seedOrders(h)

	w, body := h.do(t, http.MethodPut, "/api/orders", gin.H{"orders": []gin.H{{"id": 7, "totalAmount": 10}}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, body["orders"])
	_, ok := h.store.Order(1)
	assert.False(t, ok)

	w, _ = h.do(t, http.MethodPut, "/api/orders", gin.H{"orders": []gin.H{{"totalAmount": 10}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMappingsCRUD(t *testing.T) {
	h := newHarness(t, nil)

	w, body := h.do(t, http.MethodPost, "/api/mappings", gin.H{"hemenyoldaName": "Pide", "recipeId": "r1", "recipeName": "Kaşarlı Pide"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := body["id"].(string)
	require.NotEmpty(t, id)

	w, _ = h.do(t, http.MethodPost, "/api/mappings", gin.H{"hemenyoldaName": "Pide", "recipeId": "r2"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, body = h.do(t, http.MethodPost, "/api/mappings", gin.H{"hemenyoldaName": "Pide"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []any{"recipeId is required"}, body["details"])

	w, body = h.do(t, http.MethodPut, "/api/mappings/"+id, gin.H{"recipeName": "Pide"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Pide", body["recipeName"])
	assert.Equal(t, "r1", body["recipeId"])

	_, body = h.do(t, http.MethodGet, "/api/mappings", nil)
	assert.Len(t, body["data"], 1)

	w, _ = h.do(t, http.MethodDelete, "/api/mappings/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = h.do(t, http.MethodDelete, "/api/mappings/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = h.do(t, http.MethodPut, "/api/mappings/"+id, gin.H{"recipeName": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReports(t *testing.T) {
	h := newHarness(t, nil)
	seedOrders(h)
	h.store.Close(1, models.PaymentCash)
	_, err := h.store.AddMapping(store.MappingInput{HemenyoldaName: "Pide", RecipeID: "r1", RecipeName: "Pide"})
	require.NoError(t, err)

	w, body := h.do(t, http.MethodGet, "/api/reports?period=today", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"cash": 100.0}, body["totals"])
	assert.Equal(t, 1.0, body["openOrders"])
	assert.Equal(t, 1.0, body["closedOrders"])
	products := body["products"].([]any)
	require.Len(t, products, 1)
	assert.Equal(t, "r1", products[0].(map[string]any)["recipeId"])

	_, body = h.do(t, http.MethodGet, "/api/reports/unmapped", nil)
	assert.Equal(t, []any{"Ayran"}, body["data"])

	w, _ = h.do(t, http.MethodGet, "/api/reports?period=decade", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutConnection(t *testing.T) {
	h := newHarness(t, nil)

	h.tester.err = remote.ErrInvalidCredential
	w, body := h.do(t, http.MethodPut, "/api/connection", gin.H{"apiToken": "bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid credential", body["error"])
	assert.Empty(t, h.store.APIToken())

	h.tester.err = &remote.ConnectionError{StatusCode: http.StatusServiceUnavailable}
	w, body = h.do(t, http.MethodPut, "/api/connection", gin.H{"apiToken": "tok"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "connection failed: HTTP 503", body["error"])
	assert.Empty(t, h.store.APIToken())

	h.tester.err = nil
	w, body = h.do(t, http.MethodPut, "/api/connection", gin.H{"apiToken": " tok ", "restaurantName": "Köşe Lokanta"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["connected"])
	assert.Equal(t, "Köşe Lokanta", body["restaurantName"])
	assert.NotContains(t, body, "apiToken")
	assert.Equal(t, "tok", h.tester.token)
	assert.Equal(t, "tok", h.store.APIToken())
	assert.Equal(t, 1, h.syncer.refreshes)

	w, body = h.do(t, http.MethodDelete, "/api/connection", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["connected"])
	assert.Equal(t, 2, h.syncer.refreshes)
}

func TestTriggerSync(t *testing.T) {
	h := newHarness(t, nil)

	h.syncer.result = syncer.Result{Error: syncer.ErrNotConnected.Error(), At: now}
	w, _ := h.do(t, http.MethodPost, "/api/sync", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	h.syncer.result = syncer.Result{Success: true, Fetched: 3, Merged: 2, At: now}
	w, body := h.do(t, http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 2.0, body["merged"])

	h.syncer.result = syncer.Result{Error: "invalid API credential (HTTP 401)", At: now}
	w, body = h.do(t, http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["success"])
}

func TestOperatorLoginGuardsAPI(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("kasa1234"), bcrypt.MinCost)
	require.NoError(t, err)
	h := newHarness(t, func(d *Deps) {
		d.AuthDisabled = false
		d.JWTSecret = "s3cret"
		d.OperatorPasswordHash = string(hash)
		d.AccessTokenTTL = time.Hour
		// tokens are validated against the wall clock
		d.Clock = clock.Real()
	})

	w, _ := h.do(t, http.MethodGet, "/api/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = h.do(t, http.MethodPost, "/auth/login", gin.H{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := h.do(t, http.MethodPost, "/auth/login", gin.H{"password": "kasa1234"})
	require.Equal(t, http.StatusOK, w.Code)
	token := body["token"].(string)

	w, _ = h.do(t, http.MethodGet, "/api/orders", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIRefusedWithoutSecretUnlessAuthDisabled(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.AuthDisabled = false })
	seedOrders(h)

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/api/orders"},
		{http.MethodPut, "/api/orders"},
		{http.MethodDelete, "/api/orders/1"},
		{http.MethodPut, "/api/connection"},
		{http.MethodDelete, "/api/connection"},
	} {
		w, _ := h.do(t, req.method, req.path, gin.H{})
		assert.Equal(t, http.StatusUnauthorized, w.Code, req.method+" "+req.path)
	}
	assert.Len(t, h.store.Orders(), 2)
}

func TestLoginDisabledWithoutSecret(t *testing.T) {
	h := newHarness(t, nil)
	w, _ := h.do(t, http.MethodPost, "/auth/login", gin.H{"password": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, nil)

	w, body := h.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	w, _ = h.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pos_store_orders")
}
