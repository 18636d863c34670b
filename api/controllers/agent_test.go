package controllers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/storefront-core/internal/delivery"
	"github.com/angelmondragon/storefront-core/internal/orders"
	"github.com/angelmondragon/storefront-core/pkg/commerce"
	"github.com/angelmondragon/storefront-core/pkg/enums"
	"github.com/angelmondragon/storefront-core/pkg/pagination"
)

type stubDeliveryService struct {
	order  *orders.Order
	err    error
	calls  int
	status enums.OrderStatus
	lat    float64
	lng    float64
	proof  delivery.Proof
}

func (s *stubDeliveryService) ListOrders(ctx context.Context, session commerce.Session, params pagination.Params) (*orders.Page, error) {
	s.calls++
	return &orders.Page{Orders: []orders.Order{}}, s.err
}

func (s *stubDeliveryService) Get(ctx context.Context, session commerce.Session, orderID string) (*orders.Order, error) {
	s.calls++
	return s.order, s.err
}

func (s *stubDeliveryService) UpdateStatus(ctx context.Context, session commerce.Session, orderID string, status enums.OrderStatus, notes string) (*orders.Order, error) {
	s.calls++
	s.status = status
	return s.order, s.err
}

func (s *stubDeliveryService) AddLocation(ctx context.Context, session commerce.Session, orderID string, lat, lng float64) (*orders.Order, error) {
	s.calls++
	s.lat, s.lng = lat, lng
	return s.order, s.err
}

func (s *stubDeliveryService) UploadProof(ctx context.Context, session commerce.Session, orderID string, proof delivery.Proof) (*orders.Order, error) {
	s.calls++
	s.proof = proof
	return s.order, s.err
}

func outForDeliveryOrder() *orders.Order {
	return &orders.Order{ID: "o1", Status: enums.OrderStatusOutForDelivery}
}

func agentRequest(method, path string, body *bytes.Buffer) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, body)
	}
	return withSession(withParams(req, "orderId", "o1"))
}

func TestAgentUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc := &stubDeliveryService{order: outForDeliveryOrder()}
	resp := httptest.NewRecorder()
	AgentUpdateStatus(svc, nil).ServeHTTP(resp, agentRequest(http.MethodPost, "/api/agent/v1/orders/o1/status", bytes.NewBufferString(`{"status":"shipped"}`)))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("expected no service call")
	}
}

func TestAgentUpdateStatusDelivered(t *testing.T) {
	svc := &stubDeliveryService{order: outForDeliveryOrder()}
	resp := httptest.NewRecorder()
	AgentUpdateStatus(svc, nil).ServeHTTP(resp, agentRequest(http.MethodPost, "/api/agent/v1/orders/o1/status", bytes.NewBufferString(`{"status":"delivered","notes":"left at door"}`)))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.status != enums.OrderStatusDelivered {
		t.Fatalf("unexpected status %s", svc.status)
	}
}

func TestAgentAddLocationValidatesCoordinates(t *testing.T) {
	svc := &stubDeliveryService{order: outForDeliveryOrder()}

	resp := httptest.NewRecorder()
	AgentAddLocation(svc, nil).ServeHTTP(resp, agentRequest(http.MethodPost, "/api/agent/v1/orders/o1/locations", bytes.NewBufferString(`{"longitude":77.5}`)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing latitude got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	AgentAddLocation(svc, nil).ServeHTTP(resp, agentRequest(http.MethodPost, "/api/agent/v1/orders/o1/locations", bytes.NewBufferString(`{"latitude":91,"longitude":77.5}`)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out of range latitude got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("expected no service call, got %d", svc.calls)
	}

	resp = httptest.NewRecorder()
	AgentAddLocation(svc, nil).ServeHTTP(resp, agentRequest(http.MethodPost, "/api/agent/v1/orders/o1/locations", bytes.NewBufferString(`{"latitude":0,"longitude":77.5}`)))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for the equator got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.lat != 0 || svc.lng != 77.5 {
		t.Fatalf("unexpected coordinates %v %v", svc.lat, svc.lng)
	}
}

func TestAgentUploadProofReadsMultipart(t *testing.T) {
	svc := &stubDeliveryService{order: outForDeliveryOrder()}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("proof", "door.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\nrest"))
	_ = mw.Close()

	req := agentRequest(http.MethodPost, "/api/agent/v1/orders/o1/proof", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := httptest.NewRecorder()
	AgentUploadProof(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.proof.FileName != "door.png" || !strings.HasPrefix(string(svc.proof.Content), "\x89PNG") {
		t.Fatalf("unexpected proof %q", svc.proof.FileName)
	}
}

func TestAgentUploadProofRequiresFile(t *testing.T) {
	svc := &stubDeliveryService{order: outForDeliveryOrder()}
	req := agentRequest(http.MethodPost, "/api/agent/v1/orders/o1/proof", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	AgentUploadProof(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("expected no service call")
	}
}
