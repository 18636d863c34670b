package coupons

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-core/internal/pricing"
	"github.com/angelmondragon/storefront-core/pkg/commerce"
	"github.com/angelmondragon/storefront-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
	"github.com/angelmondragon/storefront-core/pkg/logger"
	"github.com/angelmondragon/storefront-core/pkg/metrics"
	"github.com/angelmondragon/storefront-core/pkg/money"
)

type backend interface {
	Do(ctx context.Context, session commerce.Session, req commerce.Request) (*commerce.Response, error)
}

// Offer is a coupon advertised by the backend.
type Offer struct {
	Code           string           `json:"code"`
	Title          string           `json:"title,omitempty"`
	Description    string           `json:"description,omitempty"`
	Discount       money.Amount     `json:"discount"`
	Type           enums.CouponType `json:"type,omitempty"`
	MinOrderAmount *money.Amount    `json:"min_order_amount,omitempty"`
	ValidUntil     string           `json:"valid_until,omitempty"`
}

// Service resolves coupon codes against the backend and owns the applied-coupon slot.
type Service interface {
	List(ctx context.Context, session commerce.Session) ([]Offer, error)
	Apply(ctx context.Context, session commerce.Session, code string, subtotal money.Amount) (*pricing.Coupon, error)
	Remove(ctx context.Context, session commerce.Session) error
	Current(ctx context.Context, session commerce.Session) (*pricing.Coupon, error)
}

type service struct {
	backend backend
	slots   SlotStore
	metrics *metrics.Storefront
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(backend backend, slots SlotStore, m *metrics.Storefront, logg *logger.Logger) (Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("commerce backend required")
	}
	if slots == nil {
		return nil, fmt.Errorf("coupon slot store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{backend: backend, slots: slots, metrics: m, logg: logg, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, session commerce.Session) ([]Offer, error) {
	resp, err := s.backend.Do(ctx, session, commerce.Request{
		Operation: "offers.list",
		Method:    http.MethodGet,
		Path:      "offers",
	})
	if err != nil {
		return nil, err
	}
	offers := []Offer{}
	if err := resp.DecodeData(&offers); err != nil {
		return nil, err
	}
	return offers, nil
}

type applyResponse struct {
	Code        string        `json:"code"`
	Discount    money.Amount  `json:"discount"`
	Type        string        `json:"type"`
	Message     string        `json:"message"`
	FinalAmount *money.Amount `json:"final_amount"`
}

// Apply validates code for subtotal. On success the slot is overwritten; on
// any failure the existing slot is left as it was.
func (s *service) Apply(ctx context.Context, session commerce.Session, code string, subtotal money.Amount) (*pricing.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if subtotal.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subtotal must not be negative")
	}

	resp, err := s.backend.Do(ctx, session, commerce.Request{
		Operation: "offers.apply",
		Method:    http.MethodPost,
		Path:      fmt.Sprintf("offers/%s/apply", url.PathEscape(code)),
		Body:      map[string]any{"total_amount": subtotal.Round()},
	})
	if err != nil {
		s.metrics.IncCouponApply(applyOutcome(err))
		return nil, err
	}

	var payload applyResponse
	if err := resp.DecodeData(&payload); err != nil {
		s.metrics.IncCouponApply("error")
		return nil, err
	}
	if payload.Message == "" {
		payload.Message = resp.Message()
	}

	couponType, err := enums.ParseCouponType(strings.TrimSpace(payload.Type))
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "coupon_type", payload.Type), "unknown coupon type treated as flat")
		couponType = enums.CouponTypeNone
	}

	coupon := pricing.Coupon{
		Code:        code,
		Discount:    payload.Discount,
		Type:        couponType,
		Message:     payload.Message,
		FinalAmount: payload.FinalAmount,
	}
	if payload.Code != "" {
		coupon.Code = payload.Code
	}

	if err := s.slots.Put(ctx, session.Key(), Slot{Coupon: coupon, Subtotal: subtotal.String(), AppliedAt: s.now().UTC()}); err != nil {
		s.metrics.IncCouponApply("error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist applied coupon")
	}
	s.metrics.IncCouponApply("applied")
	return &coupon, nil
}

func (s *service) Remove(ctx context.Context, session commerce.Session) error {
	if err := s.slots.Clear(ctx, session.Key()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear applied coupon")
	}
	return nil
}

func (s *service) Current(ctx context.Context, session commerce.Session) (*pricing.Coupon, error) {
	slot, err := s.slots.Get(ctx, session.Key())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read applied coupon")
	}
	if slot == nil {
		return nil, nil
	}
	coupon := slot.Coupon
	return &coupon, nil
}

func applyOutcome(err error) string {
	if pkgerrors.IsCode(err, pkgerrors.CodeBackendRejected) {
		return "rejected"
	}
	return "error"
}
