package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/storefront-core/internal/checkout"
	"github.com/angelmondragon/storefront-core/pkg/commerce"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
)

type stubCheckoutService struct {
	result  *checkout.Result
	err     error
	key     string
	req     checkout.Request
	payload map[string]any
}

func (s *stubCheckoutService) Review(ctx context.Context, session commerce.Session, req checkout.Request) (*checkout.Review, error) {
	s.req = req
	return &checkout.Review{}, s.err
}

func (s *stubCheckoutService) Commit(ctx context.Context, session commerce.Session, idempotencyKey string, req checkout.Request) (*checkout.Result, error) {
	s.key, s.req = idempotencyKey, req
	return s.result, s.err
}

func (s *stubCheckoutService) VerifyPayment(ctx context.Context, session commerce.Session, orderID string, payload map[string]any) (json.RawMessage, error) {
	s.payload = payload
	return json.RawMessage(`{"payment_status":"paid"}`), s.err
}

const checkoutBody = `{"shipping_address_id":"a1","same_as_shipping":true,"payment_method":"cod"}`

func TestCheckoutCommitCreated(t *testing.T) {
	svc := &stubCheckoutService{result: &checkout.Result{OrderID: "o1"}}
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody)))
	req.Header.Set("Idempotency-Key", "k-1")
	resp := httptest.NewRecorder()
	CheckoutCommit(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.key != "k-1" || svc.req.ShippingAddressID != "a1" || !svc.req.SameAsShipping {
		t.Fatalf("unexpected commit call key=%q req=%+v", svc.key, svc.req)
	}
}

func TestCheckoutCommitReplayIsOK(t *testing.T) {
	svc := &stubCheckoutService{result: &checkout.Result{OrderID: "o1", Replayed: true}}
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody)))
	req.Header.Set("Idempotency-Key", "k-1")
	resp := httptest.NewRecorder()
	CheckoutCommit(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestCheckoutCommitIdempotencyConflict(t *testing.T) {
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeIdempotency, "checkout already in progress for this key")}
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody)))
	req.Header.Set("Idempotency-Key", "k-1")
	resp := httptest.NewRecorder()
	CheckoutCommit(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if env := decodeEnvelope(t, resp.Body.Bytes()); env.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("unexpected code %s", env.Error.Code)
	}
}

func TestCheckoutReviewRejectsUnknownFields(t *testing.T) {
	svc := &stubCheckoutService{}
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/checkout/review", strings.NewReader(`{"cart_id":"x"}`)))
	resp := httptest.NewRecorder()
	CheckoutReview(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCheckoutVerifyPaymentForwardsPayload(t *testing.T) {
	svc := &stubCheckoutService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/o1/verify-payment", strings.NewReader(`{"payment_id":"pay_1"}`))
	req = withSession(withParams(req, "orderId", "o1"))
	resp := httptest.NewRecorder()
	CheckoutVerifyPayment(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.payload["payment_id"] != "pay_1" {
		t.Fatalf("unexpected payload %v", svc.payload)
	}
}
