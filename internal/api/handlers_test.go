package api

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gcmtshop/cca-payments/internal/domain"
	"github.com/gcmtshop/cca-payments/internal/metrics"
	"github.com/gcmtshop/cca-payments/internal/payment"
	"github.com/gcmtshop/cca-payments/internal/platform/ccavenue"
	"github.com/gcmtshop/cca-payments/internal/platform/store"
)

const testKey = ccavenue.Secret("0123456789ABCDEF0123456789ABCDEF")

type testServer struct {
	router *gin.Engine
	sqlDB  *sql.DB
}

func newTestServer(t *testing.T, limiter *IPRateLimiter, opts ...func(*RouterConfig)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, store.AutoMigrate(db))

	gw, err := ccavenue.NewAdapter(testKey, "AVAC01")
	require.NoError(t, err)

	log, _ := logtest.NewNullLogger()
	reg := prometheus.NewRegistry()
	svc := payment.NewService(store.NewOrderRepository(db), gw, nil, payment.Settings{
		MerchantID:      "M1",
		RedirectURL:     "https://pay.example/api/v1/payments/callback",
		CancelURL:       "https://pay.example/api/v1/payments/cancel",
		DefaultCurrency: "INR",
		DefaultLanguage: "EN",
	}, log, metrics.New(reg))

	handler := NewHandler(svc, Redirects{
		SuccessBase: "https://shop.example",
		FailureBase: "https://shop.example",
	}, log)
	cfg := RouterConfig{
		GinMode:        gin.TestMode,
		AllowedOrigins: []string{"https://gcmtshop.com", "http://localhost:3000"},
		Limiter:        limiter,
		Log:            log,
		Gatherer:       reg,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	router := SetupRouter(handler, cfg)
	return &testServer{router: router, sqlDB: sqlDB}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) createOrder(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *testServer) postCallback(t *testing.T, path, encResp string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"encResp": {encResp}}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func encrypt(t *testing.T, payload string) string {
	t.Helper()
	env, err := ccavenue.Encrypt(payload, testKey)
	require.NoError(t, err)
	return env
}

func TestCreateOrder(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.createOrder(t, `{"order_id":"O100","amount":250.00,"billing_name":"Asha Rao"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp domain.CheckoutResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "AVAC01", resp.AccessCode)

	plain, err := ccavenue.Decrypt(resp.EncRequest, testKey)
	require.NoError(t, err)
	assert.Contains(t, plain, "order_id=O100&amount=250.00&currency=INR")
	assert.Contains(t, plain, "billing_name=Asha%20Rao&merchant_param1=1")
}

func TestCreateOrder_Validation(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name    string
		body    string
		missing []string
		invalid []string
	}{
		{name: "missing amount", body: `{}`, missing: []string{"amount"}},
		{name: "negative amount", body: `{"amount":"-5"}`, invalid: []string{"amount"}},
		{name: "zero amount", body: `{"amount":0}`, invalid: []string{"amount"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.createOrder(t, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, "VALIDATION_ERROR", resp.Code)
			assert.Equal(t, tt.missing, resp.MissingFields)
			assert.Equal(t, tt.invalid, resp.InvalidFields)
		})
	}
}

func TestCreateOrder_BadJSON(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.createOrder(t, `{"amount":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestCallback_ConfirmsAndRedirects(t *testing.T) {
	srv := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, srv.createOrder(t, `{"order_id":"O100","amount":"250.00"}`).Code)

	env := encrypt(t, "order_id=O100&order_status=Success&merchant_param1=1&tracking_id=3100")

	w := srv.postCallback(t, "/api/v1/payments/callback", env)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://shop.example/order-confirmation/1", w.Header().Get("Location"))

	// A replayed callback lands on the same page without another write.
	w = srv.postCallback(t, "/api/v1/payments/callback", env)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://shop.example/order-confirmation/1", w.Header().Get("Location"))

	// A late failure cannot undo the confirmation.
	w = srv.postCallback(t, "/api/v1/payments/cancel",
		encrypt(t, "order_id=O100&order_status=Aborted&merchant_param1=1"))
	assert.Equal(t, "https://shop.example/order-confirmation/1", w.Header().Get("Location"))
}

func TestCallback_CancelViaQuery(t *testing.T) {
	srv := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, srv.createOrder(t, `{"order_id":"O7","amount":"10"}`).Code)

	env := encrypt(t, "order_id=O7&order_status=Aborted&merchant_param1=1")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/cancel?encResp="+env, nil)
	w := srv.do(req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://shop.example/payment-failure/1", w.Header().Get("Location"))
}

func TestCallback_RejectedPayloadsShareOneRedirect(t *testing.T) {
	srv := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, srv.createOrder(t, `{"order_id":"O100","amount":"250.00"}`).Code)

	good := encrypt(t, "order_id=O100&order_status=Success&merchant_param1=1")
	tampered := []byte(good)
	if tampered[0] == '0' {
		tampered[0] = '1'
	} else {
		tampered[0] = '0'
	}

	for name, encResp := range map[string]string{
		"not hex":       "zz-not-hex",
		"tampered":      string(tampered),
		"missing keys":  encrypt(t, "order_id=O100&order_status=Success"),
		"unknown order": encrypt(t, "order_id=O999&order_status=Success&merchant_param1=999"),
	} {
		t.Run(name, func(t *testing.T) {
			w := srv.postCallback(t, "/api/v1/payments/callback", encResp)
			assert.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, "https://shop.example/payment-failure", w.Header().Get("Location"))
		})
	}
}

func TestCallback_MissingEncResp(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.postCallback(t, "/api/v1/payments/callback", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_ENC_RESP")
}

func TestCallback_StorageFailureReturns500(t *testing.T) {
	srv := newTestServer(t, nil)
	require.NoError(t, srv.sqlDB.Close())

	w := srv.postCallback(t, "/api/v1/payments/callback",
		encrypt(t, "order_id=O100&order_status=Success&merchant_param1=1"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "STORAGE_ERROR")
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/payments/orders", nil)
	req.Header.Set("Origin", "https://gcmtshop.com")
	w := srv.do(req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://gcmtshop.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/payments/orders", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = srv.do(req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCheckoutRateLimit(t *testing.T) {
	srv := newTestServer(t, NewIPRateLimiter(0.001, 1))

	assert.Equal(t, http.StatusOK, srv.createOrder(t, `{"amount":"1"}`).Code)
	w := srv.createOrder(t, `{"amount":"1"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	// Callbacks are not limited.
	w = srv.postCallback(t, "/api/v1/payments/callback",
		encrypt(t, "order_id=O1&order_status=Success&merchant_param1=1"))
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	srv.postCallback(t, "/api/v1/payments/callback", "00")
	w = srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `gateway_decrypt_failures_total{reason="malformed-hex"} 1`)
}

func TestCheckoutRateLimit_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	srv := newTestServer(t, NewIPRateLimiter(0.001, 1))

	codes := map[int]int{}
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/orders", strings.NewReader(`{"amount":"1"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.9:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		codes[srv.do(req).Code]++
	}
	assert.Equal(t, map[int]int{http.StatusOK: 1, http.StatusTooManyRequests: 4}, codes)
}

func TestCheckoutRateLimit_TrustedProxyForwardsClientIP(t *testing.T) {
	srv := newTestServer(t, NewIPRateLimiter(0.001, 1), func(cfg *RouterConfig) {
		cfg.TrustedProxies = []string{"203.0.113.0/24"}
	})

	send := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/orders", strings.NewReader(`{"amount":"1"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.9:40000"
		req.Header.Set("X-Forwarded-For", client)
		return srv.do(req).Code
	}

	assert.Equal(t, http.StatusOK, send("198.51.100.1"))
	assert.Equal(t, http.StatusOK, send("198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.1"))
}

func TestCreateOrder_DuplicateOrderID(t *testing.T) {
	srv := newTestServer(t, nil)

	require.Equal(t, http.StatusOK, srv.createOrder(t, `{"amount":"10","order_id":"DUP1"}`).Code)

	w := srv.createOrder(t, `{"amount":"10","order_id":"DUP1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "DUPLICATE_ORDER", resp.Code)
}

func TestCreateOrder_OverlongFields(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.createOrder(t, `{"amount":"10","order_id":"`+strings.Repeat("X", 41)+`","currency":"RUPEE"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Equal(t, []string{"order_id", "currency"}, resp.InvalidFields)
}
