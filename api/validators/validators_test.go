package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
)

type qtyBody struct {
	Qty int `json:"qty" validate:"required,min=1"`
}

type notesBody struct {
	Notes string `json:"notes" validate:"max=10"`
}

func TestDecodeJSONBodyValidatesTags(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"qty":0}`))
	var body qtyBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok || details["qty"] == "" {
		t.Fatalf("expected qty detail, got %#v", pkgerrors.As(err).Details())
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"qty":2,"extra":true}`))
	var body qtyBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeOptionalJSONBodyAcceptsEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	var body notesBody
	if err := DecodeOptionalJSONBody(req, &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"notes":"far too long for this"}`))
	if err := DecodeOptionalJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONObject(t *testing.T) {
	out, err := DecodeJSONObject(httptest.NewRequest(http.MethodPost, "/", nil))
	if err != nil || len(out) != 0 {
		t.Fatalf("expected empty map, got %v %v", out, err)
	}

	out, err = DecodeJSONObject(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"razorpay_payment_id":"pay_1"}`)))
	if err != nil || out["razorpay_payment_id"] != "pay_1" {
		t.Fatalf("unexpected payload %v %v", out, err)
	}

	if _, err := DecodeJSONObject(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`[1]`))); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for array body, got %v", err)
	}
}

func TestParseQueryIntBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&per_page=500", nil)
	page, err := ParseQueryInt(req, "page", 1, 1, 1000)
	if err != nil || page != 3 {
		t.Fatalf("expected page 3, got %d %v", page, err)
	}
	if _, err := ParseQueryInt(req, "per_page", 20, 1, 100); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected out of range error, got %v", err)
	}
	def, err := ParseQueryInt(req, "missing", 20, 1, 100)
	if err != nil || def != 20 {
		t.Fatalf("expected default, got %d %v", def, err)
	}
}
