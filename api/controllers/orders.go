package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-core/api/responses"
	"github.com/angelmondragon/storefront-core/api/validators"
	"github.com/angelmondragon/storefront-core/internal/orders"
	"github.com/angelmondragon/storefront-core/pkg/commerce"
	"github.com/angelmondragon/storefront-core/pkg/enums"
	"github.com/angelmondragon/storefront-core/pkg/logger"
	"github.com/angelmondragon/storefront-core/pkg/pagination"
)

type orderService interface {
	List(ctx context.Context, session commerce.Session, params pagination.Params) (*orders.Page, error)
	Get(ctx context.Context, session commerce.Session, orderID string) (*orders.Order, error)
	Track(ctx context.Context, session commerce.Session, orderID string) (*orders.Tracking, error)
	Cancel(ctx context.Context, session commerce.Session, orderID, notes string) (*orders.Order, error)
	RequestReturn(ctx context.Context, session commerce.Session, orderID, notes string) (*orders.Order, error)
}

type transitionRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

// orderView decorates the backend order with the state the UI renders from.
type orderView struct {
	*orders.Order
	CurrentStatus    enums.OrderStatus `json:"current_status"`
	StatusLabel      string            `json:"status_label"`
	AvailableActions []orders.Action   `json:"available_actions"`
	Position         *orders.Location  `json:"current_position,omitempty"`
}

func viewOf(o *orders.Order) orderView {
	current := o.CurrentStatus()
	view := orderView{
		Order:            o,
		CurrentStatus:    current,
		StatusLabel:      current.Label(),
		AvailableActions: orders.AvailableActions(*o),
	}
	if pos, ok := o.CurrentPosition(); ok {
		view.Position = &pos
	}
	return view
}

func OrderList(svc orderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := sessionFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), session, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func OrderDetail(svc orderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, orderID, err := orderRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		o, err := svc.Get(r.Context(), session, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, viewOf(o))
	}
}

func OrderTrack(svc orderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, orderID, err := orderRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tracking, err := svc.Track(r.Context(), session, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tracking)
	}
}

// OrderTimeline renders the status history oldest first.
func OrderTimeline(svc orderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, orderID, err := orderRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		o, err := svc.Get(r.Context(), session, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders.Timeline(*o))
	}
}

func OrderCancel(svc orderService, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(func(ctx context.Context, session commerce.Session, orderID, notes string) (*orders.Order, error) {
		return svc.Cancel(ctx, session, orderID, notes)
	}, logg)
}

func OrderReturn(svc orderService, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(func(ctx context.Context, session commerce.Session, orderID, notes string) (*orders.Order, error) {
		return svc.RequestReturn(ctx, session, orderID, notes)
	}, logg)
}

type transitionFunc func(ctx context.Context, session commerce.Session, orderID, notes string) (*orders.Order, error)

func orderTransition(apply transitionFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, orderID, err := orderRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body transitionRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		o, err := apply(r.Context(), session, orderID, validators.SanitizeString(body.Notes, 500))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, viewOf(o))
	}
}

func orderRequest(r *http.Request) (commerce.Session, string, error) {
	session, err := sessionFrom(r)
	if err != nil {
		return commerce.Session{}, "", err
	}
	orderID, err := urlParam(r, "orderId", "order id")
	if err != nil {
		return commerce.Session{}, "", err
	}
	return session, orderID, nil
}
