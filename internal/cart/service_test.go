package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-core/internal/address"
	"github.com/angelmondragon/storefront-core/internal/pricing"
	"github.com/angelmondragon/storefront-core/pkg/commerce"
	"github.com/angelmondragon/storefront-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
	"github.com/angelmondragon/storefront-core/pkg/money"
)

var session = commerce.Session{Token: "tok", UserID: "u1", Scope: enums.ActorCustomer}

const oneLineCart = `{"data":{"cart_items":[{"id":"ci-1","qty":2,"total_price":"2000","variant_id":"v-1",
	"product":{"id":"p-1","name":"Tea","variants":[{"id":"v-1","price":"1000","tax_rate":"5","stock_quantity":9}]}}]}}`

const emptyCart = `{"data":{"cart_items":[]}}`

type stubBackend struct {
	mu       sync.Mutex
	bodies   map[string]string
	errs     map[string]error
	requests []commerce.Request
}

func (s *stubBackend) Do(_ context.Context, _ commerce.Session, req commerce.Request) (*commerce.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if err := s.errs[req.Path]; err != nil {
		return nil, err
	}
	body, ok := s.bodies[req.Path]
	if !ok {
		body = `{"data":{}}`
	}
	return &commerce.Response{Status: http.StatusOK, Body: []byte(body)}, nil
}

func (s *stubBackend) paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.requests))
	for _, req := range s.requests {
		out = append(out, req.Method+" "+req.Path)
	}
	return out
}

type stubCoupons struct {
	mu      sync.Mutex
	coupon  *pricing.Coupon
	removed int
}

func (s *stubCoupons) Current(context.Context, commerce.Session) (*pricing.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coupon, nil
}

func (s *stubCoupons) Remove(context.Context, commerce.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupon = nil
	s.removed++
	return nil
}

type stubAddresses struct {
	list []address.Address
}

func (s stubAddresses) ListOrEmpty(context.Context, commerce.Session) []address.Address {
	if s.list == nil {
		return []address.Address{}
	}
	return s.list
}

func newTestService(t *testing.T, backend *stubBackend, coupons *stubCoupons, addresses stubAddresses) Service {
	t.Helper()
	engine, err := pricing.NewEngine(pricing.Rules{
		FreeShippingThreshold: money.FromInt(10000),
		FlatShippingFee:       money.FromInt(500),
		VariantPolicy:         pricing.VariantPolicyPriceThenFirst,
	})
	require.NoError(t, err)
	svc, err := NewService(backend, engine, coupons, addresses, nil)
	require.NoError(t, err)
	return svc
}

func TestNewServiceValidatesDeps(t *testing.T) {
	t.Parallel()
	engine, err := pricing.NewEngine(pricing.Rules{FlatShippingFee: money.FromInt(500), FreeShippingThreshold: money.FromInt(10000)})
	require.NoError(t, err)

	_, err = NewService(nil, engine, &stubCoupons{}, stubAddresses{}, nil)
	assert.Error(t, err)
	_, err = NewService(&stubBackend{}, nil, &stubCoupons{}, stubAddresses{}, nil)
	assert.Error(t, err)
	_, err = NewService(&stubBackend{}, engine, nil, stubAddresses{}, nil)
	assert.Error(t, err)
	_, err = NewService(&stubBackend{}, engine, &stubCoupons{}, nil, nil)
	assert.Error(t, err)
}

func TestFetchResolvesVariants(t *testing.T) {
	t.Parallel()
	backend := &stubBackend{bodies: map[string]string{"cart": oneLineCart}}
	svc := newTestService(t, backend, &stubCoupons{}, stubAddresses{})

	cart, err := svc.Fetch(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "v-1", cart.Items[0].Variant.ID.String())
	assert.Equal(t, enums.VariantResolvedByID, cart.Items[0].Resolution)
	assert.Equal(t, "2000.00", cart.Items[0].LineTotal().String())
}

func TestUpdateQtyRejectsZeroWithoutCallingBackend(t *testing.T) {
	t.Parallel()
	backend := &stubBackend{}
	svc := newTestService(t, backend, &stubCoupons{}, stubAddresses{})

	_, err := svc.UpdateQty(context.Background(), session, "ci-1", 0)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, backend.paths())
}

func TestUpdateQtyPatchesThenRefetches(t *testing.T) {
	t.Parallel()
	backend := &stubBackend{bodies: map[string]string{"cart": oneLineCart}}
	coupons := &stubCoupons{coupon: &pricing.Coupon{Code: "SAVE10"}}
	svc := newTestService(t, backend, coupons, stubAddresses{})

	cart, err := svc.UpdateQty(context.Background(), session, "ci-1", 3)
	require.NoError(t, err)
	assert.False(t, cart.IsEmpty())
	assert.Equal(t, []string{"PATCH cart/update_item", "GET cart"}, backend.paths())

	body, err := json.Marshal(backend.requests[0].Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cart_item_id":"ci-1","qty":3}`, string(body))
	assert.Zero(t, coupons.removed)
}

func TestRemoveLastItemClearsCoupon(t *testing.T) {
	t.Parallel()
	backend := &stubBackend{bodies: map[string]string{"cart": emptyCart}}
	coupons := &stubCoupons{coupon: &pricing.Coupon{Code: "SAVE10"}}
	svc := newTestService(t, backend, coupons, stubAddresses{})

	cart, err := svc.Remove(context.Background(), session, "ci-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, []string{"DELETE cart/remove_item", "GET cart"}, backend.paths())
	assert.Equal(t, 1, coupons.removed)
	assert.Nil(t, coupons.coupon)
}

func TestRemoveSurfacesBackendError(t *testing.T) {
	t.Parallel()
	backend := &stubBackend{errs: map[string]error{"cart/remove_item": pkgerrors.New(pkgerrors.CodeBackendRejected, "item not found")}}
	coupons := &stubCoupons{coupon: &pricing.Coupon{Code: "SAVE10"}}
	svc := newTestService(t, backend, coupons, stubAddresses{})

	_, err := svc.Remove(context.Background(), session, "ci-9")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBackendRejected))
	assert.Zero(t, coupons.removed)
}

func TestSummaryPricesCartWithCouponAndAddresses(t *testing.T) {
	t.Parallel()
	backend := &stubBackend{bodies: map[string]string{"cart": oneLineCart}}
	coupons := &stubCoupons{coupon: &pricing.Coupon{Code: "SAVE10", Type: enums.CouponTypePercent, Discount: money.FromInt(10)}}
	addresses := stubAddresses{list: []address.Address{{ID: "a1"}, {ID: "a2", IsDefault: true}}}
	svc := newTestService(t, backend, coupons, addresses)

	summary, err := svc.Summary(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, "2000.00", summary.Estimate.Subtotal.String())
	assert.Equal(t, "200.00", summary.Estimate.Discount.String())
	assert.Equal(t, "2400.00", summary.Estimate.Total.String())
	require.NotNil(t, summary.DefaultAddress)
	assert.Equal(t, "a2", summary.DefaultAddress.ID.String())
	assert.Len(t, summary.Addresses, 2)
}

func TestSummaryEmptyCartDropsStaleCoupon(t *testing.T) {
	t.Parallel()
	backend := &stubBackend{bodies: map[string]string{"cart": emptyCart}}
	coupons := &stubCoupons{coupon: &pricing.Coupon{Code: "SAVE10"}}
	svc := newTestService(t, backend, coupons, stubAddresses{})

	summary, err := svc.Summary(context.Background(), session)
	require.NoError(t, err)
	assert.Nil(t, summary.Estimate.Coupon)
	assert.True(t, summary.Estimate.Total.IsZero())
	assert.Equal(t, 1, coupons.removed)
	assert.Nil(t, summary.DefaultAddress)
	assert.NotNil(t, summary.Addresses)
}

func TestSummaryFailsWhenCartFetchFails(t *testing.T) {
	t.Parallel()
	backend := &stubBackend{errs: map[string]error{"cart": errors.New("boom")}}
	svc := newTestService(t, backend, &stubCoupons{}, stubAddresses{})

	_, err := svc.Summary(context.Background(), session)
	assert.Error(t, err)
}
