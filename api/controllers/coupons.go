package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-core/api/responses"
	"github.com/angelmondragon/storefront-core/api/validators"
	"github.com/angelmondragon/storefront-core/internal/cart"
	"github.com/angelmondragon/storefront-core/internal/coupons"
	"github.com/angelmondragon/storefront-core/internal/pricing"
	"github.com/angelmondragon/storefront-core/pkg/commerce"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
	"github.com/angelmondragon/storefront-core/pkg/logger"
	"github.com/angelmondragon/storefront-core/pkg/money"
)

type couponService interface {
	List(ctx context.Context, session commerce.Session) ([]coupons.Offer, error)
	Apply(ctx context.Context, session commerce.Session, code string, subtotal money.Amount) (*pricing.Coupon, error)
	Remove(ctx context.Context, session commerce.Session) error
	Current(ctx context.Context, session commerce.Session) (*pricing.Coupon, error)
}

type cartReader interface {
	Fetch(ctx context.Context, session commerce.Session) (*cart.Cart, error)
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type appliedCouponResponse struct {
	Coupon   *pricing.Coupon   `json:"coupon"`
	Estimate *pricing.Estimate `json:"estimate,omitempty"`
}

func CouponList(svc couponService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := sessionFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offers, err := svc.List(r.Context(), session)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offers)
	}
}

func CouponApplied(svc couponService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := sessionFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		coupon, err := svc.Current(r.Context(), session)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, appliedCouponResponse{Coupon: coupon})
	}
}

// CouponApply validates a code against the current cart subtotal and returns
// the re-priced estimate.
func CouponApply(svc couponService, carts cartReader, engine *pricing.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := sessionFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body applyCouponRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := carts.Fetch(r.Context(), session)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if c.IsEmpty() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty"))
			return
		}
		subtotal := engine.Estimate(c.Items, nil).Subtotal

		coupon, err := svc.Apply(r.Context(), session, body.Code, subtotal)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		estimate := engine.Estimate(c.Items, coupon)
		responses.WriteSuccess(w, appliedCouponResponse{Coupon: coupon, Estimate: &estimate})
	}
}

func CouponRemove(svc couponService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := sessionFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Remove(r.Context(), session); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, appliedCouponResponse{})
	}
}
