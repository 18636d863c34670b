package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-core/internal/address"
	"github.com/angelmondragon/storefront-core/internal/cart"
	"github.com/angelmondragon/storefront-core/internal/checkout"
	"github.com/angelmondragon/storefront-core/internal/delivery"
	"github.com/angelmondragon/storefront-core/internal/orders"
	"github.com/angelmondragon/storefront-core/internal/pricing"
	pkgAuth "github.com/angelmondragon/storefront-core/pkg/auth"
	"github.com/angelmondragon/storefront-core/pkg/commerce"
	"github.com/angelmondragon/storefront-core/pkg/config"
	"github.com/angelmondragon/storefront-core/pkg/enums"
	"github.com/angelmondragon/storefront-core/pkg/metrics"
	"github.com/angelmondragon/storefront-core/pkg/money"
	"github.com/angelmondragon/storefront-core/pkg/pagination"
	pkgredis "github.com/angelmondragon/storefront-core/pkg/redis"
	"github.com/angelmondragon/storefront-core/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubRedis struct {
	stubPinger
	data    map[string]string
	allowed bool
}

func (s *stubRedis) Get(_ context.Context, key string) (string, error) {
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return "", pkgredis.ErrNil
}

func (s *stubRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key], _ = value.(string)
	return true, nil
}

func (s *stubRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *stubRedis) IdempotencyKey(scope, id string) string {
	return "test:idem:" + scope + ":" + id
}

func (s *stubRedis) FixedWindowAllow(context.Context, string, int64, time.Duration) (bool, int64, error) {
	if s.allowed {
		return true, 1, nil
	}
	return false, 99, nil
}

type stubCart struct{ cart.Service }

func (stubCart) Fetch(context.Context, commerce.Session) (*cart.Cart, error) {
	return &cart.Cart{}, nil
}

type stubCheckout struct {
	checkout.Service
	commits int
}

func (s *stubCheckout) Commit(context.Context, commerce.Session, string, checkout.Request) (*checkout.Result, error) {
	s.commits++
	return &checkout.Result{OrderID: "o1"}, nil
}

type stubOrders struct {
	orders.Service
	cancels int
}

func (s *stubOrders) Cancel(_ context.Context, _ commerce.Session, orderID, _ string) (*orders.Order, error) {
	s.cancels++
	return &orders.Order{ID: types.ID(orderID), Status: enums.OrderStatusCancelled}, nil
}

type stubDelivery struct{ delivery.Service }

func (stubDelivery) ListOrders(context.Context, commerce.Session, pagination.Params) (*orders.Page, error) {
	return &orders.Page{Orders: []orders.Order{}}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Env: "test"},
		JWT:      config.JWTConfig{Secret: "secret", Issuer: "storefront"},
		Checkout: config.CheckoutConfig{ReplayTTL: time.Hour},
		Coupons:  config.CouponsConfig{ApplyWindow: time.Minute, ApplyLimit: 5},
		CORS:     config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
}

type testRouter struct {
	handler  http.Handler
	redis    *stubRedis
	checkout *stubCheckout
	orders   *stubOrders
}

func newTestRouter(t *testing.T, cfg *config.Config) testRouter {
	t.Helper()
	engine, err := pricing.NewEngine(pricing.Rules{FreeShippingThreshold: money.FromInt(10000), FlatShippingFee: money.FromInt(500)})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	var addresses address.Service
	registry := prometheus.NewRegistry()
	metrics.NewStorefront(registry)

	store := &stubRedis{data: map[string]string{}, allowed: true}
	checkoutSvc := &stubCheckout{}
	orderSvc := &stubOrders{}
	handler := NewRouter(cfg, nil, stubPinger{}, store, registry, Services{
		Cart:      stubCart{},
		Addresses: addresses,
		Pricing:   engine,
		Checkout:  checkoutSvc,
		Orders:    orderSvc,
		Delivery:  stubDelivery{},
	})
	return testRouter{handler: handler, redis: store, checkout: checkoutSvc, orders: orderSvc}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.Actor) string {
	t.Helper()
	token, err := pkgAuth.MintToken(cfg.JWT, time.Now(), time.Hour, pkgAuth.TokenPayload{UserID: "u1", Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(t, testConfig())
	resp := httptest.NewRecorder()
	router.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestHealthReady(t *testing.T) {
	router := newTestRouter(t, testConfig())
	resp := httptest.NewRecorder()
	router.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, testConfig())
	resp := httptest.NewRecorder()
	router.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestCustomerGroupRejectsMissingToken(t *testing.T) {
	router := newTestRouter(t, testConfig())
	resp := httptest.NewRecorder()
	router.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestCustomerGroupAcceptsTokenHeader(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Token", buildToken(t, cfg, ""))
	resp := httptest.NewRecorder()
	router.handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestAgentGroupRequiresAgentRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg)

	customer := httptest.NewRequest(http.MethodGet, "/api/agent/v1/orders", nil)
	customer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorCustomer))
	resp := httptest.NewRecorder()
	router.handler.ServeHTTP(resp, customer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}

	agent := httptest.NewRequest(http.MethodGet, "/api/agent/v1/orders", nil)
	agent.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorAgent))
	resp = httptest.NewRecorder()
	router.handler.ServeHTTP(resp, agent)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for agent got %d", resp.Code)
	}
}

func TestCheckoutRequiresIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg)
	body := `{"shipping_address_id":"a1","same_as_shipping":true,"payment_method":"cod"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Token", buildToken(t, cfg, enums.ActorCustomer))
	resp := httptest.NewRecorder()
	router.handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without key got %d", resp.Code)
	}
	if router.checkout.commits != 0 {
		t.Fatalf("commit should not run without a key")
	}
}

func TestCheckoutReplayServedFromRedis(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg)
	token := buildToken(t, cfg, enums.ActorCustomer)
	body := `{"shipping_address_id":"a1","same_as_shipping":true,"payment_method":"cod"}`

	var codes []int
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
		req.Header.Set("Token", token)
		req.Header.Set("Idempotency-Key", "k-1")
		resp := httptest.NewRecorder()
		router.handler.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)

		var env struct {
			Data struct {
				OrderID string `json:"order_id"`
			} `json:"data"`
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil || env.Data.OrderID != "o1" {
			t.Fatalf("unexpected body %s", resp.Body.String())
		}
	}
	if codes[0] != http.StatusCreated || codes[1] != http.StatusCreated {
		t.Fatalf("unexpected codes %v", codes)
	}
	if router.checkout.commits != 1 {
		t.Fatalf("expected one commit, got %d", router.checkout.commits)
	}
}

func TestCouponApplyRateLimited(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg)
	router.redis.allowed = false

	req := httptest.NewRequest(http.MethodPost, "/api/v1/coupons/apply", strings.NewReader(`{"code":"SAVE10"}`))
	req.Header.Set("Token", buildToken(t, cfg, enums.ActorCustomer))
	resp := httptest.NewRecorder()
	router.handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
}

func TestCustomerGroupRejectsTokenSignedWithAnotherSecret(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg)

	forged, err := pkgAuth.MintToken(config.JWTConfig{Secret: "attacker", Issuer: cfg.JWT.Issuer}, time.Now(), time.Hour, pkgAuth.TokenPayload{UserID: "victim"})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		req := httptest.NewRequest(method, "/api/v1/coupons/applied", nil)
		req.Header.Set("Token", forged)
		resp := httptest.NewRecorder()
		router.handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 for forged token got %d", method, resp.Code)
		}
	}
}

func TestOrderCancelReplayServedFromRedis(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg)
	token := buildToken(t, cfg, enums.ActorCustomer)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/501/cancel", strings.NewReader(`{"notes":"changed my mind"}`))
		req.Header.Set("Token", token)
		req.Header.Set("Idempotency-Key", "cancel-1")
		resp := httptest.NewRecorder()
		router.handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
		}
	}
	if router.orders.cancels != 1 {
		t.Fatalf("expected one cancel, got %d", router.orders.cancels)
	}
}
