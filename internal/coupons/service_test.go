package coupons

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-core/pkg/commerce"
	"github.com/angelmondragon/storefront-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
	"github.com/angelmondragon/storefront-core/pkg/money"
	"github.com/angelmondragon/storefront-core/pkg/redis"
)

var session = commerce.Session{Token: "tok", UserID: "u1", Scope: enums.ActorCustomer}

type stubBackend struct {
	mu       sync.Mutex
	requests []commerce.Request
	body     string
	err      error
}

func (s *stubBackend) Do(_ context.Context, _ commerce.Session, req commerce.Request) (*commerce.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &commerce.Response{Status: http.StatusOK, Body: []byte(s.body)}, nil
}

func newTestService(t *testing.T, backend *stubBackend, slots SlotStore) Service {
	t.Helper()
	svc, err := NewService(backend, slots, nil, nil)
	require.NoError(t, err)
	return svc
}

func TestApplyStoresServerResponse(t *testing.T) {
	backend := &stubBackend{body: `{"data":{"discount":"10","type":"%","message":"10% off","final_amount":"900"}}`}
	slots := NewMemorySlotStore()
	svc := newTestService(t, backend, slots)

	coupon, err := svc.Apply(context.Background(), session, " SAVE10 ", money.FromInt(1000))
	require.NoError(t, err)

	assert.Equal(t, "SAVE10", coupon.Code)
	assert.Equal(t, enums.CouponTypePercent, coupon.Type)
	assert.Equal(t, "900.00", coupon.FinalAmount.String())
	assert.Equal(t, "10% off", coupon.Message)

	require.Len(t, backend.requests, 1)
	req := backend.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "offers/SAVE10/apply", req.Path)
	body, _ := json.Marshal(req.Body)
	assert.JSONEq(t, `{"total_amount":1000.00}`, string(body))

	current, err := svc.Current(context.Background(), session)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "SAVE10", current.Code)
}

func TestApplyFailureLeavesSlotUntouched(t *testing.T) {
	slots := NewMemorySlotStore()
	backend := &stubBackend{body: `{"discount":50,"message":"ok"}`}
	svc := newTestService(t, backend, slots)

	_, err := svc.Apply(context.Background(), session, "FIRST", money.FromInt(1000))
	require.NoError(t, err)

	backend.err = pkgerrors.New(pkgerrors.CodeBackendRejected, "Coupon expired")
	_, err = svc.Apply(context.Background(), session, "EXPIRED", money.FromInt(1000))
	require.Error(t, err)

	current, err := svc.Current(context.Background(), session)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "FIRST", current.Code)
}

func TestApplyFailureCreatesNoSlot(t *testing.T) {
	slots := NewMemorySlotStore()
	backend := &stubBackend{err: pkgerrors.New(pkgerrors.CodeBackendRejected, "Invalid coupon")}
	svc := newTestService(t, backend, slots)

	_, err := svc.Apply(context.Background(), session, "NOPE", money.FromInt(1000))
	require.Error(t, err)

	current, err := svc.Current(context.Background(), session)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestReapplyOverwrites(t *testing.T) {
	backend := &stubBackend{body: `{"discount":50}`}
	svc := newTestService(t, backend, NewMemorySlotStore())

	_, err := svc.Apply(context.Background(), session, "A", money.FromInt(1000))
	require.NoError(t, err)
	_, err = svc.Apply(context.Background(), session, "B", money.FromInt(1000))
	require.NoError(t, err)

	current, err := svc.Current(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, "B", current.Code)
}

func TestApplyValidatesBeforeCallingBackend(t *testing.T) {
	backend := &stubBackend{}
	svc := newTestService(t, backend, NewMemorySlotStore())

	_, err := svc.Apply(context.Background(), session, "   ", money.FromInt(1000))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.Apply(context.Background(), session, "X", money.FromInt(-1))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, backend.requests)
}

func TestRemoveIsIdempotent(t *testing.T) {
	backend := &stubBackend{body: `{"discount":50}`}
	svc := newTestService(t, backend, NewMemorySlotStore())
	_, err := svc.Apply(context.Background(), session, "A", money.FromInt(1000))
	require.NoError(t, err)

	require.NoError(t, svc.Remove(context.Background(), session))
	require.NoError(t, svc.Remove(context.Background(), session))

	current, err := svc.Current(context.Background(), session)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestListDecodesOffers(t *testing.T) {
	backend := &stubBackend{body: `{"data":[{"code":"SAVE10","discount":"10","type":"%","min_order_amount":500}]}`}
	svc := newTestService(t, backend, NewMemorySlotStore())

	offers, err := svc.List(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "SAVE10", offers[0].Code)
	assert.Equal(t, "500.00", offers[0].MinOrderAmount.String())
}

type fakeKV struct {
	data map[string]string
	ttls map[string]time.Duration
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", redis.ErrNil
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeKV) CouponSlotKey(userID string) string { return "sf:coupon_slot:" + userID }

func TestRedisSlotStoreRoundTrip(t *testing.T) {
	kv := &fakeKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
	store, err := NewRedisSlotStore(kv, 24*time.Hour)
	require.NoError(t, err)

	ctx := context.Background()
	missing, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	final := money.FromInt(900)
	require.NoError(t, store.Put(ctx, "u1", Slot{Coupon: couponFixture(&final), Subtotal: "1000.00"}))
	assert.Equal(t, 24*time.Hour, kv.ttls["sf:coupon_slot:u1"])

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "SAVE10", got.Coupon.Code)
	assert.Equal(t, "900.00", got.Coupon.FinalAmount.String())

	require.NoError(t, store.Clear(ctx, "u1"))
	require.NoError(t, store.Clear(ctx, "u1"))
	got, err = store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
