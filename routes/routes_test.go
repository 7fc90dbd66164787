package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"crm-backend/config"
	"crm-backend/services"
	"crm-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "crm.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, config.Migrate(db))

	previous := config.DB
	config.DB = db
	t.Cleanup(func() { config.DB = previous })

	cfg := config.Config{
		Env:         "test",
		CORSOrigins: []string{"http://localhost:3000"},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	r, err := SetupRouter(cfg, services.NewOrderLedger(db))
	require.NoError(t, err)

	s := &testServer{t: t, router: r}
	if cfg.Auth.Enabled() {
		s.token, err = utils.GenerateToken(cfg.Auth.JWTSecret, "user-1", time.Hour)
		require.NoError(t, err)
	}
	return s
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func money(t *testing.T, v any) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(fmt.Sprint(v))
	require.NoError(t, err)
	return d
}

func assertMoney(t *testing.T, want string, v any) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(money(t, v)), "want %s, got %v", want, v)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return errBody["code"].(string)
}

func (s *testServer) createCustomer(phone string) uint {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/customers", gin.H{"name": "Dana", "phone": phone, "email": "dana@example.com"})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return uint(decode(s.t, w)["id"].(float64))
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(utils.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(utils.RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(utils.RequestIDHeader))
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.Auth.JWTSecret = "test-secret" })

	w := s.do(http.MethodGet, "/api/customers", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	s.token = ""
	w = s.do(http.MethodGet, "/api/customers", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	forged, err := utils.GenerateToken("other-secret", "user-1", time.Hour)
	require.NoError(t, err)
	s.token = forged
	w = s.do(http.MethodGet, "/api/customers", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.RateLimit = "2-M" })

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodGet, "/health", nil).Code)
}

func TestCustomerEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	id := s.createCustomer("+15554000001")

	w := s.do(http.MethodPost, "/api/customers", gin.H{"name": "Twin", "phone": "+15554000001"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", errorCode(t, w))

	w = s.do(http.MethodPost, "/api/customers", gin.H{"name": "Bad", "phone": "12"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPut, fmt.Sprintf("/api/customers/%d", id), gin.H{"address": "1 Main St"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1 Main St", decode(t, w)["address"])

	w = s.do(http.MethodGet, "/api/customers/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_argument", errorCode(t, w))

	w = s.do(http.MethodGet, "/api/customers/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/customers/%d", id), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, fmt.Sprintf("/api/customers/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServiceEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/api/services", gin.H{"name": "Website", "base_price": "1200.50", "is_active": false})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, "General", created["category"])
	assert.Equal(t, false, created["is_active"])
	assertMoney(t, "1200.50", created["base_price"])

	w = s.do(http.MethodPost, "/api/services", gin.H{"name": "Free", "base_price": "-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodGet, "/api/services?active=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &active))
	assert.Empty(t, active)
}

func TestOrderLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	customerID := s.createCustomer("+15554000002")

	w := s.do(http.MethodPost, "/api/services", gin.H{"name": "Copywriting", "base_price": "300"})
	require.Equal(t, http.StatusCreated, w.Code)
	serviceID := decode(t, w)["id"]

	w = s.do(http.MethodPost, "/api/orders", gin.H{
		"customer_id": customerID,
		"source":      "whatsapp",
		"items": []gin.H{
			{"description": "Landing page", "quantity": 1, "unit_price": "200"},
			{"service_id": serviceID, "quantity": 2},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode(t, w)
	orderID := uint(order["id"].(float64))
	assert.Regexp(t, `^ORD-\d{4}-0001$`, order["order_number"])
	assertMoney(t, "800", order["total"])
	assertMoney(t, "800", order["remaining_amount"])
	assert.Equal(t, "unpaid", order["payment_status"])
	items := order["items"].([]any)
	require.Len(t, items, 2)
	secondItem := uint(items[1].(map[string]any)["id"].(float64))

	orderPath := fmt.Sprintf("/api/orders/%d", orderID)

	w = s.do(http.MethodPost, orderPath+"/payments", gin.H{"amount": "800"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "paid", decode(t, w)["payment_status"])

	w = s.do(http.MethodDelete, fmt.Sprintf("%s/items/%d", orderPath, secondItem), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	afterDelete := decode(t, w)
	assertMoney(t, "200", afterDelete["subtotal"])
	assertMoney(t, "200", afterDelete["total"])
	assert.Equal(t, "paid", afterDelete["payment_status"])

	firstItem := uint(items[0].(map[string]any)["id"].(float64))
	w = s.do(http.MethodPut, fmt.Sprintf("%s/items/%d/progress", orderPath, firstItem), gin.H{"progress_percentage": 150})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	progressed := decode(t, w)
	assert.EqualValues(t, 100, progressed["progress_percentage"])
	assert.Equal(t, "completed", progressed["status"])
	assert.NotNil(t, progressed["end_date"])

	w = s.do(http.MethodPost, orderPath+"/items", gin.H{"description": "Extra", "quantity": 1, "unit_price": "50"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	added := decode(t, w)
	assertMoney(t, "250", added["order"].(map[string]any)["total"])

	w = s.do(http.MethodPut, orderPath+"/status", gin.H{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, decode(t, w)["actual_delivery_date"])

	w = s.do(http.MethodPut, orderPath+"/status", gin.H{"status": "pending"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPut, orderPath+"/payment-status", gin.H{"payment_status": "refunded"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "refunded", decode(t, w)["payment_status"])

	w = s.do(http.MethodPost, orderPath+"/payments", gin.H{"amount": "-5"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/orders/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total_orders"])

	w = s.do(http.MethodGet, fmt.Sprintf("/api/customers/%d/summary", customerID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["completed_orders"])

	w = s.do(http.MethodDelete, orderPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, orderPath, nil).Code)

	w = s.do(http.MethodPost, orderPath+"/restore", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assertMoney(t, "250", decode(t, w)["total"])
}

func TestCreateOrderValidationErrors(t *testing.T) {
	s := newTestServer(t, nil)
	customerID := s.createCustomer("+15554000003")

	w := s.do(http.MethodPost, "/api/orders", gin.H{
		"customer_id": customerID,
		"source":      "website",
		"items":       []gin.H{{"description": "x", "quantity": 0, "unit_price": "5"}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	errBody := decode(t, w)["error"].(map[string]any)
	assert.Equal(t, "validation_failed", errBody["code"])
	assert.Contains(t, errBody["fields"], "items.0.quantity")

	w = s.do(http.MethodPost, "/api/orders", gin.H{
		"customer_id": 999,
		"source":      "website",
		"items":       []gin.H{{"description": "x", "quantity": 1, "unit_price": "5"}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/orders?customer_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/orders?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddPaymentRequiresAmount(t *testing.T) {
	s := newTestServer(t, nil)
	customerID := s.createCustomer("+15554000004")

	w := s.do(http.MethodPost, "/api/orders", gin.H{
		"customer_id": customerID,
		"source":      "phone",
		"items":       []gin.H{{"description": "Logo", "quantity": 1, "unit_price": "120"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	orderPath := fmt.Sprintf("/api/orders/%d", uint(decode(t, w)["id"].(float64)))

	w = s.do(http.MethodPost, orderPath+"/payments", gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "invalid_argument", errorCode(t, w))

	w = s.do(http.MethodGet, orderPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	order := decode(t, w)
	assertMoney(t, "0", order["paid_amount"])
	assert.Equal(t, "unpaid", order["payment_status"])
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	cfg := corsConfig(nil)
	assert.True(t, cfg.AllowAllOrigins)
	assert.False(t, corsConfig([]string{"https://crm.example.com"}).AllowAllOrigins)
}
